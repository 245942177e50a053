package mocks

import mock "github.com/stretchr/testify/mock"

// MockAdapter is a testify mock of gatt.Adapter
type MockAdapter struct {
	mock.Mock
}

type MockAdapter_Expecter struct {
	mock *mock.Mock
}

func (_m *MockAdapter) EXPECT() *MockAdapter_Expecter {
	return &MockAdapter_Expecter{mock: &_m.Mock}
}

// Enabled provides a mock function with no fields
func (_m *MockAdapter) Enabled() bool {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Enabled")
	}

	var r0 bool
	if rf, ok := ret.Get(0).(func() bool); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(bool)
	}

	return r0
}

// MockAdapter_Enabled_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'Enabled'
type MockAdapter_Enabled_Call struct {
	*mock.Call
}

// Enabled is a helper method to define mock.On call
func (_e *MockAdapter_Expecter) Enabled() *MockAdapter_Enabled_Call {
	return &MockAdapter_Enabled_Call{Call: _e.mock.On("Enabled")}
}

func (_c *MockAdapter_Enabled_Call) Run(run func()) *MockAdapter_Enabled_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run()
	})
	return _c
}

func (_c *MockAdapter_Enabled_Call) Return(_a0 bool) *MockAdapter_Enabled_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *MockAdapter_Enabled_Call) RunAndReturn(run func() bool) *MockAdapter_Enabled_Call {
	_c.Call.Return(run)
	return _c
}

// Supported provides a mock function with no fields
func (_m *MockAdapter) Supported() bool {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Supported")
	}

	var r0 bool
	if rf, ok := ret.Get(0).(func() bool); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(bool)
	}

	return r0
}

// MockAdapter_Supported_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'Supported'
type MockAdapter_Supported_Call struct {
	*mock.Call
}

// Supported is a helper method to define mock.On call
func (_e *MockAdapter_Expecter) Supported() *MockAdapter_Supported_Call {
	return &MockAdapter_Supported_Call{Call: _e.mock.On("Supported")}
}

func (_c *MockAdapter_Supported_Call) Run(run func()) *MockAdapter_Supported_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run()
	})
	return _c
}

func (_c *MockAdapter_Supported_Call) Return(_a0 bool) *MockAdapter_Supported_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *MockAdapter_Supported_Call) RunAndReturn(run func() bool) *MockAdapter_Supported_Call {
	_c.Call.Return(run)
	return _c
}

// NewMockAdapter creates a new instance of MockAdapter. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockAdapter(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAdapter {
	mock := &MockAdapter{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
