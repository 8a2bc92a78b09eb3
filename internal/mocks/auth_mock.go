package mocks

import (
	"context"
	"sync"

	"github.com/benmeehan/signal-agent/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockAuthenticator is a mock implementation of login.Authenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context) (models.Credentials, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Credentials), args.Error(1)
}

// RecordingAuthSink records every authentication outcome it receives.
type RecordingAuthSink struct {
	mu       sync.Mutex
	tokens   []string
	failures []error
}

func (s *RecordingAuthSink) Authenticate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, token)
}

func (s *RecordingAuthSink) AuthenticationFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, err)
}

// Tokens returns the tokens reported so far.
func (s *RecordingAuthSink) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

// Failures returns the failures reported so far.
func (s *RecordingAuthSink) Failures() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.failures...)
}
