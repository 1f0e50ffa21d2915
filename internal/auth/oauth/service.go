package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/yoshapihoff/bricks/authenticator/internal/auth/oauth/interfaces"
	"github.com/yoshapihoff/bricks/authenticator/internal/auth/oauth/oauthtypes"
	"golang.org/x/oauth2"
)

var ErrMissingCode = errors.New("callback carries neither a code nor an error")

// OutcomeKind is the state a provider session ended up in
type OutcomeKind int

const (
	SessionCancelled OutcomeKind = iota + 1
	SessionOpened
	SessionFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case SessionCancelled:
		return "cancelled"
	case SessionOpened:
		return "opened"
	case SessionFailed:
		return "failed"
	}
	return "unknown"
}

// SessionOutcome is the tagged result of opening a session.
// Token is set only for SessionOpened, Err only for SessionFailed.
type SessionOutcome struct {
	Kind  OutcomeKind
	Token *oauth2.Token
	Err   error
}

// Callback holds the query parameters the provider redirects back with
type Callback struct {
	State            string
	Code             string
	Error            string
	ErrorReason      string
	ErrorDescription string
}

// CallbackError is a provider error reported on the redirect
type CallbackError struct {
	Code        string
	Reason      string
	Description string
}

func (e *CallbackError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	}
	return e.Code
}

// Service opens sessions with a single identity provider
type Service struct {
	provider interfaces.Provider
}

// NewService creates a session service over the given provider
func NewService(provider interfaces.Provider) *Service {
	return &Service{provider: provider}
}

// ProviderName returns the name of the underlying provider
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// GetAuthURL returns the authorization URL for state. forceLogin makes the
// provider show its login UI again.
func (s *Service) GetAuthURL(state string, forceLogin bool) string {
	return s.provider.GetAuthURL(state, forceLogin)
}

// Resolve turns the provider redirect into exactly one session outcome
func (s *Service) Resolve(ctx context.Context, cb Callback) SessionOutcome {
	if cb.Error != "" || cb.ErrorReason != "" {
		if cb.Error == "access_denied" || cb.ErrorReason == "user_denied" {
			return SessionOutcome{Kind: SessionCancelled}
		}
		return SessionOutcome{
			Kind: SessionFailed,
			Err: &CallbackError{
				Code:        cb.Error,
				Reason:      cb.ErrorReason,
				Description: cb.ErrorDescription,
			},
		}
	}

	if cb.Code == "" {
		return SessionOutcome{Kind: SessionFailed, Err: ErrMissingCode}
	}

	token, err := s.provider.Exchange(ctx, cb.Code)
	if err != nil {
		return SessionOutcome{Kind: SessionFailed, Err: fmt.Errorf("failed to exchange code: %w", err)}
	}

	return SessionOutcome{Kind: SessionOpened, Token: token}
}

// FetchProfile issues the provider's "me" request. Errors are returned as
// the provider produced them so callers can inspect the cause chain.
func (s *Service) FetchProfile(ctx context.Context, token *oauth2.Token) (*oauthtypes.UserProfile, error) {
	return s.provider.GetUserProfile(ctx, token)
}

// GenerateState generates a random URL-safe state value
func GenerateState() (string, error) {
	return generateRandomString(32)
}

// generateRandomString generates a random string of the given length
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
