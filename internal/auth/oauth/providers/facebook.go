package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/yoshapihoff/bricks/authenticator/internal/auth/oauth/interfaces"
	"github.com/yoshapihoff/bricks/authenticator/internal/auth/oauth/oauthtypes"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

// Ensure facebookProvider implements interfaces.Provider
var _ interfaces.Provider = (*facebookProvider)(nil)

const (
	defaultGraphURL     = "https://graph.facebook.com"
	defaultGraphVersion = "v19.0"
)

// FacebookConfig configures the Facebook provider. Endpoint, GraphURL and
// HTTPClient are only overridden in tests.
type FacebookConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	GraphVersion string
	Scopes       []string
	Endpoint     *oauth2.Endpoint
	GraphURL     string
	HTTPClient   *http.Client
}

type facebookProvider struct {
	config       *oauth2.Config
	graphURL     string
	graphVersion string
	httpClient   *http.Client
}

// GraphError is the error object returned by the Graph API
type GraphError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}

func (e *GraphError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("graph api error %d", e.Code)
	}
	return e.Message
}

// NewFacebookProvider creates a new Facebook OAuth provider
func NewFacebookProvider(cfg FacebookConfig) interfaces.Provider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"email", "public_profile"}
	}

	endpoint := facebook.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}

	graphURL := strings.TrimRight(cfg.GraphURL, "/")
	if graphURL == "" {
		graphURL = defaultGraphURL
	}

	version := cfg.GraphVersion
	if version == "" {
		version = defaultGraphVersion
	}

	return &facebookProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		graphURL:     graphURL,
		graphVersion: version,
		httpClient:   cfg.HTTPClient,
	}
}

func (f *facebookProvider) Name() string {
	return "facebook"
}

func (f *facebookProvider) GetAuthURL(state string, forceLogin bool) string {
	if forceLogin {
		return f.config.AuthCodeURL(state, oauth2.SetAuthURLParam("auth_type", "reauthenticate"))
	}
	return f.config.AuthCodeURL(state)
}

func (f *facebookProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return f.config.Exchange(f.clientContext(ctx), code)
}

func (f *facebookProvider) GetUserProfile(ctx context.Context, token *oauth2.Token) (*oauthtypes.UserProfile, error) {
	query := url.Values{}
	query.Set("fields", "id,name,email")
	if f.config.ClientSecret != "" {
		query.Set("appsecret_proof", appSecretProof(token.AccessToken, f.config.ClientSecret))
	}
	meURL := fmt.Sprintf("%s/%s/me?%s", f.graphURL, f.graphVersion, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}

	client := f.config.Client(f.clientContext(ctx), token)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope struct {
			Error *GraphError `json:"error"`
		}
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
			return nil, fmt.Errorf("failed to get user profile: %w", envelope.Error)
		}
		return nil, fmt.Errorf("failed to get user profile: status %d", resp.StatusCode)
	}

	var profile oauthtypes.UserProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user profile: %w", err)
	}

	return &profile, nil
}

func (f *facebookProvider) clientContext(ctx context.Context) context.Context {
	if f.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
}

// appSecretProof signs the access token with the app secret as the Graph API expects
func appSecretProof(accessToken, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(accessToken))
	return hex.EncodeToString(mac.Sum(nil))
}
