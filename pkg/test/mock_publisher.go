// Package test contains testify mocks shared by package tests.
package test

import (
	"github.com/stretchr/testify/mock"

	"github.com/Raikerian/go-konference/internal/events"
)

// MockPublisher is a testify mock of events.Publisher.
type MockPublisher struct {
	mock.Mock
}

// NewMockPublisher creates a MockPublisher whose expectations are asserted
// when the test ends.
func NewMockPublisher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPublisher {
	m := &MockPublisher{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// Publish provides a mock function with given fields: name, fields
func (m *MockPublisher) Publish(name string, fields events.Fields) {
	m.Called(name, fields)
}

var _ events.Publisher = (*MockPublisher)(nil)
