package mocks

import (
	"testing"

	"go.uber.org/mock/gomock"
)

// NewMockWalletClientForTest creates a new mock WalletClient for testing
func NewMockWalletClientForTest(t *testing.T) *MockWalletClient {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockWalletClient(ctrl)
}

// NewMockAuthClientForTest creates a new mock AuthClient for testing
func NewMockAuthClientForTest(t *testing.T) *MockAuthClient {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockAuthClient(ctrl)
}

// NewMockResourceClientForTest creates a new mock ResourceClient for testing
func NewMockResourceClientForTest(t *testing.T) *MockResourceClient {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockResourceClient(ctrl)
}

// NewMockPublisherForTest creates a new mock Publisher for testing
func NewMockPublisherForTest(t *testing.T) *MockPublisher {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockPublisher(ctrl)
}

// NewMockNotifierForTest creates a new mock Notifier for testing
func NewMockNotifierForTest(t *testing.T) *MockNotifier {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockNotifier(ctrl)
}
