package mocks

import (
	gatt "github.com/oblakr24/blescanner/pkg/gatt"
	mock "github.com/stretchr/testify/mock"
)

// MockScanner is a testify mock of gatt.Scanner
type MockScanner struct {
	mock.Mock
}

type MockScanner_Expecter struct {
	mock *mock.Mock
}

func (_m *MockScanner) EXPECT() *MockScanner_Expecter {
	return &MockScanner_Expecter{mock: &_m.Mock}
}

// StartScan provides a mock function with given fields: settings, cb
func (_m *MockScanner) StartScan(settings gatt.ScanSettings, cb gatt.ScanCallback) error {
	ret := _m.Called(settings, cb)

	if len(ret) == 0 {
		panic("no return value specified for StartScan")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(gatt.ScanSettings, gatt.ScanCallback) error); ok {
		r0 = rf(settings, cb)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// MockScanner_StartScan_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'StartScan'
type MockScanner_StartScan_Call struct {
	*mock.Call
}

// StartScan is a helper method to define mock.On call
//   - settings gatt.ScanSettings
//   - cb gatt.ScanCallback
func (_e *MockScanner_Expecter) StartScan(settings interface{}, cb interface{}) *MockScanner_StartScan_Call {
	return &MockScanner_StartScan_Call{Call: _e.mock.On("StartScan", settings, cb)}
}

func (_c *MockScanner_StartScan_Call) Run(run func(settings gatt.ScanSettings, cb gatt.ScanCallback)) *MockScanner_StartScan_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(gatt.ScanSettings), args[1].(gatt.ScanCallback))
	})
	return _c
}

func (_c *MockScanner_StartScan_Call) Return(_a0 error) *MockScanner_StartScan_Call {
	_c.Call.Return(_a0)
	return _c
}

func (_c *MockScanner_StartScan_Call) RunAndReturn(run func(gatt.ScanSettings, gatt.ScanCallback) error) *MockScanner_StartScan_Call {
	_c.Call.Return(run)
	return _c
}

// StopScan provides a mock function with no fields
func (_m *MockScanner) StopScan() {
	_m.Called()
}

// MockScanner_StopScan_Call is a *mock.Call that shadows Run/Return methods with type explicit version for method 'StopScan'
type MockScanner_StopScan_Call struct {
	*mock.Call
}

// StopScan is a helper method to define mock.On call
func (_e *MockScanner_Expecter) StopScan() *MockScanner_StopScan_Call {
	return &MockScanner_StopScan_Call{Call: _e.mock.On("StopScan")}
}

func (_c *MockScanner_StopScan_Call) Run(run func()) *MockScanner_StopScan_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run()
	})
	return _c
}

func (_c *MockScanner_StopScan_Call) Return() *MockScanner_StopScan_Call {
	_c.Call.Return()
	return _c
}

func (_c *MockScanner_StopScan_Call) RunAndReturn(run func()) *MockScanner_StopScan_Call {
	_c.Run(run)
	return _c
}

// NewMockScanner creates a new instance of MockScanner. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockScanner(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockScanner {
	mock := &MockScanner{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
