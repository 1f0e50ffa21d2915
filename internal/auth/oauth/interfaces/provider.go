package interfaces

import (
	"context"

	"github.com/yoshapihoff/bricks/authenticator/internal/auth/oauth/oauthtypes"
	"golang.org/x/oauth2"
)

// Provider defines the identity provider the authenticator opens sessions with
type Provider interface {
	// GetAuthURL returns the URL to redirect the user to for authentication.
	// forceLogin asks the provider to re-prompt even for a signed in user.
	GetAuthURL(state string, forceLogin bool) string

	// Exchange exchanges an authorization code for a token
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// GetUserProfile issues the "who am I" request for the token's owner
	GetUserProfile(ctx context.Context, token *oauth2.Token) (*oauthtypes.UserProfile, error)

	// Name returns the name of the provider (e.g., "facebook")
	Name() string
}
