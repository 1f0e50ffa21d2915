package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yoshapihoff/bricks/authenticator/internal/auth"
	"github.com/yoshapihoff/bricks/authenticator/internal/auth/oauth"
	"github.com/yoshapihoff/bricks/authenticator/internal/auth/oauth/oauthtypes"
	"github.com/yoshapihoff/bricks/authenticator/internal/domain"
	"github.com/yoshapihoff/bricks/authenticator/internal/flowstate"
	"github.com/yoshapihoff/bricks/authenticator/internal/repository/memory"
	"github.com/yoshapihoff/bricks/authenticator/internal/service"
	"golang.org/x/oauth2"
)

type mockFlow struct {
	mock.Mock
}

func (m *mockFlow) StartLogin(ctx context.Context, launch domain.LaunchParams) *domain.Step {
	return m.Called(launch).Get(0).(*domain.Step)
}

func (m *mockFlow) Complete(ctx context.Context, cb oauth.Callback) *domain.Step {
	return m.Called(cb).Get(0).(*domain.Step)
}

func (m *mockFlow) Abandon(ctx context.Context, state string) error {
	return m.Called(state).Error(0)
}

type mockAccounts struct {
	mock.Mock
}

func (m *mockAccounts) Persist(ctx context.Context, identifier, credential string, isNewAccount, isConfirmingExisting bool) (*domain.FlowResult, error) {
	args := m.Called(identifier, credential, isNewAccount, isConfirmingExisting)
	result, _ := args.Get(0).(*domain.FlowResult)
	return result, args.Error(1)
}

func (m *mockAccounts) Get(ctx context.Context, name string) (*domain.Account, error) {
	args := m.Called(name)
	account, _ := args.Get(0).(*domain.Account)
	return account, args.Error(1)
}

func (m *mockAccounts) Unlink(ctx context.Context, name string) error {
	return m.Called(name).Error(0)
}

func newTestRouter(flow *mockFlow, accounts *mockAccounts) (*mux.Router, *auth.DefaultJWTService) {
	jwtSvc := auth.NewJWTService(auth.JWTConfig{Secret: "secret", Expiration: time.Hour})
	r := mux.NewRouter()
	NewAuthenticatorHandler(flow, accounts, jwtSvc).RegisterRoutes(r)
	return r, jwtSvc
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLoginRedirects(t *testing.T) {
	flow := &mockFlow{}
	flow.On("StartLogin", domain.LaunchParams{RequestNewAccount: true}).Return(&domain.Step{
		Action:   domain.ActionRedirect,
		UI:       domain.UIState{Progress: true},
		State:    "s",
		Redirect: "https://www.facebook.com/dialog/oauth?state=s",
	})
	r, _ := newTestRouter(flow, &mockAccounts{})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/authenticator/facebook/login?request_new_account=true", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://www.facebook.com/dialog/oauth?state=s", rec.Header().Get("Location"))
}

func TestLoginJSONFormat(t *testing.T) {
	flow := &mockFlow{}
	flow.On("StartLogin", domain.LaunchParams{ConfirmCredentials: true, RequestNewAccount: true}).Return(&domain.Step{
		Action:   domain.ActionRedirect,
		UI:       domain.UIState{Progress: true},
		State:    "s",
		Redirect: "https://facebook.test",
	})
	r, _ := newTestRouter(flow, &mockAccounts{})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/authenticator/facebook/login?confirm_credentials=1&format=json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "redirect", body["action"])
	assert.Equal(t, "s", body["state"])
	assert.Equal(t, true, body["ui"].(map[string]any)["progress"])
}

func TestLoginDefaultsToNewAccount(t *testing.T) {
	flow := &mockFlow{}
	flow.On("StartLogin", domain.LaunchParams{RequestNewAccount: true}).Return(&domain.Step{
		Action:   domain.ActionRedirect,
		Redirect: "https://facebook.test",
	})
	r, _ := newTestRouter(flow, &mockAccounts{})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/authenticator/facebook/login", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	flow.AssertExpectations(t)
}

func TestLoginUpdateOnly(t *testing.T) {
	flow := &mockFlow{}
	flow.On("StartLogin", domain.LaunchParams{}).Return(&domain.Step{
		Action:   domain.ActionRedirect,
		Redirect: "https://facebook.test",
	})
	r, _ := newTestRouter(flow, &mockAccounts{})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/authenticator/facebook/login?request_new_account=false", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	flow.AssertExpectations(t)
}

func TestLoginRejectsBadFlag(t *testing.T) {
	r, _ := newTestRouter(&mockFlow{}, &mockAccounts{})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/authenticator/facebook/login?request_new_account=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginOpenFailure(t *testing.T) {
	flow := &mockFlow{}
	flow.On("StartLogin", domain.LaunchParams{RequestNewAccount: true}).Return(&domain.Step{Action: domain.ActionError})
	r, _ := newTestRouter(flow, &mockAccounts{})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/authenticator/facebook/login", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCallbackPassesParameters(t *testing.T) {
	flow := &mockFlow{}
	flow.On("Complete", oauth.Callback{
		State:            "s",
		Error:            "access_denied",
		ErrorReason:      "user_denied",
		ErrorDescription: "Permissions error",
	}).Return(&domain.Step{
		Action: domain.ActionNotice,
		UI:     domain.UIState{Notice: "Login cancelled"},
	})
	r, _ := newTestRouter(flow, &mockAccounts{})

	rec := serve(r, httptest.NewRequest(http.MethodGet,
		"/authenticator/facebook/callback?state=s&error=access_denied&error_reason=user_denied&error_description=Permissions+error", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"notice":"Login cancelled"`)
}

func TestCallbackFinish(t *testing.T) {
	flow := &mockFlow{}
	flow.On("Complete", oauth.Callback{State: "s", Code: "c"}).Return(&domain.Step{
		Action:   domain.ActionFinish,
		Redirect: "/",
		Result: &domain.FlowResult{
			AccountAdded: true,
			AccountName:  "a@b.com",
			AccountType:  domain.AccountType,
			Token:        "jwt",
		},
	})
	r, _ := newTestRouter(flow, &mockAccounts{})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/authenticator/facebook/callback?state=s&code=c", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var step domain.Step
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &step))
	assert.Equal(t, domain.ActionFinish, step.Action)
	assert.True(t, step.Result.AccountAdded)
	assert.Equal(t, "a@b.com", step.Result.AccountName)
}

func TestCallbackLateIsGone(t *testing.T) {
	flow := &mockFlow{}
	flow.On("Complete", mock.Anything).Return(&domain.Step{Action: domain.ActionNone})
	r, _ := newTestRouter(flow, &mockAccounts{})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/authenticator/facebook/callback?state=gone", nil))
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestAbandon(t *testing.T) {
	flow := &mockFlow{}
	flow.On("Abandon", "s").Return(nil)
	flow.On("Abandon", "missing").Return(domain.ErrFlowNotFound)
	r, _ := newTestRouter(flow, &mockAccounts{})

	rec := serve(r, httptest.NewRequest(http.MethodDelete, "/authenticator/flows/s", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodDelete, "/authenticator/flows/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAccount(t *testing.T) {
	accounts := &mockAccounts{}
	accounts.On("Get", "a@b.com").Return(&domain.Account{
		Name:       "a@b.com",
		Type:       domain.AccountType,
		AuthType:   domain.AuthTypeFacebook,
		Credential: "secret-token",
	}, nil)
	r, jwtSvc := newTestRouter(&mockFlow{}, accounts)

	token, err := jwtSvc.GenerateToken("a@b.com", domain.AccountType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/accounts/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := serve(r, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"auth_type":"facebook"`)
	assert.NotContains(t, rec.Body.String(), "secret-token")
}

func TestGetAccountMissing(t *testing.T) {
	accounts := &mockAccounts{}
	accounts.On("Get", "gone@b.com").Return(nil, domain.ErrAccountNotFound)
	r, jwtSvc := newTestRouter(&mockFlow{}, accounts)

	token, err := jwtSvc.GenerateToken("gone@b.com", domain.AccountType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/accounts/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusNotFound, serve(r, req).Code)

	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/accounts/me", nil)).Code)
}

func TestUnlinkAccount(t *testing.T) {
	accounts := &mockAccounts{}
	accounts.On("Unlink", "a@b.com").Return(nil).Once()
	accounts.On("Unlink", "a@b.com").Return(domain.ErrAccountNotFound)
	r, jwtSvc := newTestRouter(&mockFlow{}, accounts)

	token, err := jwtSvc.GenerateToken("a@b.com", domain.AccountType)
	require.NoError(t, err)

	unlink := func() int {
		req := httptest.NewRequest(http.MethodDelete, "/accounts/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		return serve(r, req).Code
	}

	assert.Equal(t, http.StatusNoContent, unlink())
	assert.Equal(t, http.StatusNotFound, unlink())
	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodDelete, "/accounts/me", nil)).Code)
}

// stubSessions opens every session and returns a fixed profile
type stubSessions struct {
	email string
}

func (s stubSessions) ProviderName() string { return "facebook" }

func (s stubSessions) GetAuthURL(state string, forceLogin bool) string {
	return "https://facebook.test/dialog?state=" + state
}

func (s stubSessions) Resolve(ctx context.Context, cb oauth.Callback) oauth.SessionOutcome {
	return oauth.SessionOutcome{Kind: oauth.SessionOpened, Token: &oauth2.Token{AccessToken: "fb-token"}}
}

func (s stubSessions) FetchProfile(ctx context.Context, token *oauth2.Token) (*oauthtypes.UserProfile, error) {
	return &oauthtypes.UserProfile{ID: "1", Email: s.email}, nil
}

func TestFirstLoginWithoutFlagsStoresAccount(t *testing.T) {
	jwtSvc := auth.NewJWTService(auth.JWTConfig{Secret: "secret", Expiration: time.Hour})
	accounts := service.NewAccountService(memory.NewAccountRepository(), jwtSvc, nil)
	coordinator := service.NewLoginCoordinator(stubSessions{email: "a@b.com"}, flowstate.NewMemoryStore(), accounts, service.CoordinatorOptions{})
	r := mux.NewRouter()
	NewAuthenticatorHandler(coordinator, accounts, jwtSvc).RegisterRoutes(r)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/authenticator/facebook/login?format=json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var start domain.Step
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &start))
	require.Equal(t, domain.ActionRedirect, start.Action)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/authenticator/facebook/callback?state="+start.State+"&code=c", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var step domain.Step
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &step))
	assert.Equal(t, domain.ActionFinish, step.Action)
	assert.Equal(t, service.NoticeLoggedIn, step.UI.Notice)
	require.NotNil(t, step.Result)
	assert.True(t, step.Result.AccountAdded)

	account, err := accounts.Get(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "fb-token", account.Credential)
}
