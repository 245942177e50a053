package mocks

import (
	gatt "github.com/oblakr24/blescanner/pkg/gatt"
	mock "github.com/stretchr/testify/mock"
)

// MockPeripheral is a testify mock of gatt.Peripheral
type MockPeripheral struct {
	mock.Mock
}

type MockPeripheral_Expecter struct {
	mock *mock.Mock
}

func (_m *MockPeripheral) EXPECT() *MockPeripheral_Expecter {
	return &MockPeripheral_Expecter{mock: &_m.Mock}
}

// Address provides a mock function with no fields
func (_m *MockPeripheral) Address() string {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Address")
	}

	var r0 string
	if rf, ok := ret.Get(0).(func() string); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(string)
	}

	return r0
}

// MockPeripheral_Address_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'Address'
type MockPeripheral_Address_Call struct {
	*mock.Call
}

// Address is a helper method to define mock.On call
func (_e *MockPeripheral_Expecter) Address() *MockPeripheral_Address_Call {
	return &MockPeripheral_Address_Call{Call: _e.mock.On("Address")}
}

func (_c *MockPeripheral_Address_Call) Run(run func()) *MockPeripheral_Address_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run()
	})
	return _c
}

func (_c *MockPeripheral_Address_Call) Return(_a0 string) *MockPeripheral_Address_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *MockPeripheral_Address_Call) RunAndReturn(run func() string) *MockPeripheral_Address_Call {
	_c.Call.Return(run)
	return _c
}

// Connect provides a mock function with given fields: cb
func (_m *MockPeripheral) Connect(cb gatt.Callback) (gatt.Handle, error) {
	ret := _m.Called(cb)

	if len(ret) == 0 {
		panic("no return value specified for Connect")
	}

	var r0 gatt.Handle
	var r1 error
	if rf, ok := ret.Get(0).(func(gatt.Callback) (gatt.Handle, error)); ok {
		return rf(cb)
	}
	if rf, ok := ret.Get(0).(func(gatt.Callback) gatt.Handle); ok {
		r0 = rf(cb)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(gatt.Handle)
		}
	}

	if rf, ok := ret.Get(1).(func(gatt.Callback) error); ok {
		r1 = rf(cb)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// MockPeripheral_Connect_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'Connect'
type MockPeripheral_Connect_Call struct {
	*mock.Call
}

// Connect is a helper method to define mock.On call
//   - cb gatt.Callback
func (_e *MockPeripheral_Expecter) Connect(cb interface{}) *MockPeripheral_Connect_Call {
	return &MockPeripheral_Connect_Call{Call: _e.mock.On("Connect", cb)}
}

func (_c *MockPeripheral_Connect_Call) Run(run func(cb gatt.Callback)) *MockPeripheral_Connect_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(gatt.Callback))
	})
	return _c
}

func (_c *MockPeripheral_Connect_Call) Return(_a0 gatt.Handle, _a1 error) *MockPeripheral_Connect_Call {
	_c.Call.Return(_a0, _a1)
	return _c
}

func (_c *MockPeripheral_Connect_Call) RunAndReturn(run func(gatt.Callback) (gatt.Handle, error)) *MockPeripheral_Connect_Call {
	_c.Call.Return(run)
	return _c
}

// Name provides a mock function with no fields
func (_m *MockPeripheral) Name() string {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Name")
	}

	var r0 string
	if rf, ok := ret.Get(0).(func() string); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(string)
	}

	return r0
}

// MockPeripheral_Name_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'Name'
type MockPeripheral_Name_Call struct {
	*mock.Call
}

// Name is a helper method to define mock.On call
func (_e *MockPeripheral_Expecter) Name() *MockPeripheral_Name_Call {
	return &MockPeripheral_Name_Call{Call: _e.mock.On("Name")}
}

func (_c *MockPeripheral_Name_Call) Run(run func()) *MockPeripheral_Name_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run()
	})
	return _c
}

func (_c *MockPeripheral_Name_Call) Return(_a0 string) *MockPeripheral_Name_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *MockPeripheral_Name_Call) RunAndReturn(run func() string) *MockPeripheral_Name_Call {
	_c.Call.Return(run)
	return _c
}

// NewMockPeripheral creates a new instance of MockPeripheral. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockPeripheral(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPeripheral {
	mock := &MockPeripheral{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
