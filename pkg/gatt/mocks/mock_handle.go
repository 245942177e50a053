package mocks

import (
	gatt "github.com/oblakr24/blescanner/pkg/gatt"
	mock "github.com/stretchr/testify/mock"
)

// MockHandle is a testify mock of gatt.Handle
type MockHandle struct {
	mock.Mock
}

type MockHandle_Expecter struct {
	mock *mock.Mock
}

func (_m *MockHandle) EXPECT() *MockHandle_Expecter {
	return &MockHandle_Expecter{mock: &_m.Mock}
}

// Close provides a mock function with no fields
func (_m *MockHandle) Close() {
	_m.Called()
}

// MockHandle_Close_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'Close'
type MockHandle_Close_Call struct {
	*mock.Call
}

// Close is a helper method to define mock.On call
func (_e *MockHandle_Expecter) Close() *MockHandle_Close_Call {
	return &MockHandle_Close_Call{Call: _e.mock.On("Close")}
}

func (_c *MockHandle_Close_Call) Run(run func()) *MockHandle_Close_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run()
	})
	return _c
}

func (_c *MockHandle_Close_Call) Return() *MockHandle_Close_Call {
	_c.Call.Return()
	return _c
}

func (_c *MockHandle_Close_Call) RunAndReturn(run func()) *MockHandle_Close_Call {
	_c.Run(run)
	return _c
}

// Disconnect provides a mock function with no fields
func (_m *MockHandle) Disconnect() {
	_m.Called()
}

// MockHandle_Disconnect_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'Disconnect'
type MockHandle_Disconnect_Call struct {
	*mock.Call
}

// Disconnect is a helper method to define mock.On call
func (_e *MockHandle_Expecter) Disconnect() *MockHandle_Disconnect_Call {
	return &MockHandle_Disconnect_Call{Call: _e.mock.On("Disconnect")}
}

func (_c *MockHandle_Disconnect_Call) Run(run func()) *MockHandle_Disconnect_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run()
	})
	return _c
}

func (_c *MockHandle_Disconnect_Call) Return() *MockHandle_Disconnect_Call {
	_c.Call.Return()
	return _c
}

func (_c *MockHandle_Disconnect_Call) RunAndReturn(run func()) *MockHandle_Disconnect_Call {
	_c.Run(run)
	return _c
}

// DiscoverServices provides a mock function with no fields
func (_m *MockHandle) DiscoverServices() bool {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for DiscoverServices")
	}

	var r0 bool
	if rf, ok := ret.Get(0).(func() bool); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(bool)
	}

	return r0
}

// MockHandle_DiscoverServices_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'DiscoverServices'
type MockHandle_DiscoverServices_Call struct {
	*mock.Call
}

// DiscoverServices is a helper method to define mock.On call
func (_e *MockHandle_Expecter) DiscoverServices() *MockHandle_DiscoverServices_Call {
	return &MockHandle_DiscoverServices_Call{Call: _e.mock.On("DiscoverServices")}
}

func (_c *MockHandle_DiscoverServices_Call) Run(run func()) *MockHandle_DiscoverServices_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run()
	})
	return _c
}

func (_c *MockHandle_DiscoverServices_Call) Return(_a0 bool) *MockHandle_DiscoverServices_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *MockHandle_DiscoverServices_Call) RunAndReturn(run func() bool) *MockHandle_DiscoverServices_Call {
	_c.Call.Return(run)
	return _c
}

// ReadCharacteristic provides a mock function with given fields: c
func (_m *MockHandle) ReadCharacteristic(c *gatt.Characteristic) bool {
	ret := _m.Called(c)

	if len(ret) == 0 {
		panic("no return value specified for ReadCharacteristic")
	}

	var r0 bool
	if rf, ok := ret.Get(0).(func(*gatt.Characteristic) bool); ok {
		r0 = rf(c)
	} else {
		r0 = ret.Get(0).(bool)
	}

	return r0
}

// MockHandle_ReadCharacteristic_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'ReadCharacteristic'
type MockHandle_ReadCharacteristic_Call struct {
	*mock.Call
}

// ReadCharacteristic is a helper method to define mock.On call
//   - c *gatt.Characteristic
func (_e *MockHandle_Expecter) ReadCharacteristic(c interface{}) *MockHandle_ReadCharacteristic_Call {
	return &MockHandle_ReadCharacteristic_Call{Call: _e.mock.On("ReadCharacteristic", c)}
}

func (_c *MockHandle_ReadCharacteristic_Call) Run(run func(c *gatt.Characteristic)) *MockHandle_ReadCharacteristic_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(*gatt.Characteristic))
	})
	return _c
}

func (_c *MockHandle_ReadCharacteristic_Call) Return(_a0 bool) *MockHandle_ReadCharacteristic_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *MockHandle_ReadCharacteristic_Call) RunAndReturn(run func(*gatt.Characteristic) bool) *MockHandle_ReadCharacteristic_Call {
	_c.Call.Return(run)
	return _c
}

// SetNotification provides a mock function with given fields: c, enable
func (_m *MockHandle) SetNotification(c *gatt.Characteristic, enable bool) bool {
	ret := _m.Called(c, enable)

	if len(ret) == 0 {
		panic("no return value specified for SetNotification")
	}

	var r0 bool
	if rf, ok := ret.Get(0).(func(*gatt.Characteristic, bool) bool); ok {
		r0 = rf(c, enable)
	} else {
		r0 = ret.Get(0).(bool)
	}

	return r0
}

// MockHandle_SetNotification_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'SetNotification'
type MockHandle_SetNotification_Call struct {
	*mock.Call
}

// SetNotification is a helper method to define mock.On call
//   - c *gatt.Characteristic
//   - enable bool
func (_e *MockHandle_Expecter) SetNotification(c interface{}, enable interface{}) *MockHandle_SetNotification_Call {
	return &MockHandle_SetNotification_Call{Call: _e.mock.On("SetNotification", c, enable)}
}

func (_c *MockHandle_SetNotification_Call) Run(run func(c *gatt.Characteristic, enable bool)) *MockHandle_SetNotification_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(*gatt.Characteristic), args[1].(bool))
	})
	return _c
}

func (_c *MockHandle_SetNotification_Call) Return(_a0 bool) *MockHandle_SetNotification_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *MockHandle_SetNotification_Call) RunAndReturn(run func(*gatt.Characteristic, bool) bool) *MockHandle_SetNotification_Call {
	_c.Call.Return(run)
	return _c
}

// WriteCharacteristic provides a mock function with given fields: c, value
func (_m *MockHandle) WriteCharacteristic(c *gatt.Characteristic, value []byte) bool {
	ret := _m.Called(c, value)

	if len(ret) == 0 {
		panic("no return value specified for WriteCharacteristic")
	}

	var r0 bool
	if rf, ok := ret.Get(0).(func(*gatt.Characteristic, []byte) bool); ok {
		r0 = rf(c, value)
	} else {
		r0 = ret.Get(0).(bool)
	}

	return r0
}

// MockHandle_WriteCharacteristic_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'WriteCharacteristic'
type MockHandle_WriteCharacteristic_Call struct {
	*mock.Call
}

// WriteCharacteristic is a helper method to define mock.On call
//   - c *gatt.Characteristic
//   - value []byte
func (_e *MockHandle_Expecter) WriteCharacteristic(c interface{}, value interface{}) *MockHandle_WriteCharacteristic_Call {
	return &MockHandle_WriteCharacteristic_Call{Call: _e.mock.On("WriteCharacteristic", c, value)}
}

func (_c *MockHandle_WriteCharacteristic_Call) Run(run func(c *gatt.Characteristic, value []byte)) *MockHandle_WriteCharacteristic_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(*gatt.Characteristic), args[1].([]byte))
	})
	return _c
}

func (_c *MockHandle_WriteCharacteristic_Call) Return(_a0 bool) *MockHandle_WriteCharacteristic_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *MockHandle_WriteCharacteristic_Call) RunAndReturn(run func(*gatt.Characteristic, []byte) bool) *MockHandle_WriteCharacteristic_Call {
	_c.Call.Return(run)
	return _c
}

// NewMockHandle creates a new instance of MockHandle. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockHandle(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockHandle {
	mock := &MockHandle{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
