package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
)

var (
	ErrMissingToken  = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid bearer token")
	ErrNotConfigured = errors.New("token authentication is not configured")
)

// Service checks bearer tokens against a single bcrypt hash. The last token
// that matched is remembered so steady traffic does not pay for bcrypt on
// every request.
type Service struct {
	hash string

	mu       sync.RWMutex
	accepted string
}

// NewService creates a token checker for the given bcrypt hash. An empty
// hash rejects every token.
func NewService(hash string) *Service {
	return &Service{hash: strings.TrimSpace(hash)}
}

// Authenticate validates a raw Authorization header value.
func (s *Service) Authenticate(header string) error {
	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return ErrMissingToken
	}
	if s.hash == "" {
		return ErrNotConfigured
	}

	s.mu.RLock()
	cached := s.accepted
	s.mu.RUnlock()
	if cached != "" && subtle.ConstantTimeCompare([]byte(cached), []byte(token)) == 1 {
		return nil
	}

	if err := CheckToken(s.hash, token); err != nil {
		return ErrInvalidToken
	}

	s.mu.Lock()
	s.accepted = token
	s.mu.Unlock()
	return nil
}
