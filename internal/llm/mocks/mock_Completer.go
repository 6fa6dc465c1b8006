// Package mocks provides test doubles for the llm package.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	llm "thriftscan/valuator/internal/llm"
)

// MockCompleter is a mock type for the Completer interface.
type MockCompleter struct {
	mock.Mock
}

// Complete provides a mock function with given fields: ctx, req
func (_m *MockCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for Complete")
	}

	if rf, ok := ret.Get(0).(func(context.Context, llm.Request) (*llm.Response, error)); ok {
		return rf(ctx, req)
	}

	var r0 *llm.Response
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*llm.Response)
	}
	return r0, ret.Error(1)
}

// NewMockCompleter creates a MockCompleter and registers a cleanup that
// asserts its expectations.
func NewMockCompleter(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockCompleter {
	m := &MockCompleter{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
