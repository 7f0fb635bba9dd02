package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// --- Mock types ---

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() ProviderName {
	args := m.Called()
	return args.Get(0).(ProviderName)
}

func (m *MockProvider) NewLocator(ctx context.Context) (Locator, error) {
	args := m.Called(ctx)
	if l, ok := args.Get(0).(Locator); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) LoadSwapper(ctx context.Context, path string) (Swapper, error) {
	args := m.Called(ctx, path)
	if s, ok := args.Get(0).(Swapper); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Tests ---

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	p := new(MockProvider)
	p.On("Name").Return(ProviderInsight)

	assert.NoError(t, reg.Register(p))

	got, ok := reg.Get(ProviderInsight)
	assert.True(t, ok)
	assert.Equal(t, p, got)

	// Ensure a missing provider returns false
	_, ok = reg.Get("missing")
	assert.False(t, ok)

	_, err := reg.Lookup("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	p.AssertExpectations(t)
}

func TestRegistry_RegisterTwice(t *testing.T) {
	reg := NewRegistry()
	p := new(MockProvider)
	p.On("Name").Return(ProviderInsight)

	assert.NoError(t, reg.Register(p))
	assert.ErrorIs(t, reg.Register(p), ErrAlreadyRegistered)
}

func TestRegistry_Close(t *testing.T) {
	reg := NewRegistry()

	ok := new(MockProvider)
	ok.On("Name").Return(ProviderName("a"))
	ok.On("Close").Return(nil)

	failing := new(MockProvider)
	failing.On("Name").Return(ProviderName("b"))
	failing.On("Close").Return(errors.New("close failed"))

	assert.NoError(t, reg.Register(ok))
	assert.NoError(t, reg.Register(failing))

	err := reg.Close()
	assert.EqualError(t, err, "close failed")
	ok.AssertCalled(t, "Close")
	failing.AssertCalled(t, "Close")
}
