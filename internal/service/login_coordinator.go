package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/yoshapihoff/bricks/authenticator/internal/auth/oauth"
	"github.com/yoshapihoff/bricks/authenticator/internal/auth/oauth/oauthtypes"
	"github.com/yoshapihoff/bricks/authenticator/internal/domain"
	"golang.org/x/oauth2"
)

// Notices shown to the user
const (
	NoticeLoginCancelled = "Login cancelled"
	NoticeLoginFailed    = "Login failed"
	NoticeConnectFailed  = "Unable to connect to Facebook"
	NoticeSessionOpened  = "Logged in with Facebook."
	NoticeLoggedIn       = "Logged in."
)

// SessionOpener is the provider-facing side of the flow
type SessionOpener interface {
	ProviderName() string
	GetAuthURL(state string, forceLogin bool) string
	Resolve(ctx context.Context, cb oauth.Callback) oauth.SessionOutcome
	FetchProfile(ctx context.Context, token *oauth2.Token) (*oauthtypes.UserProfile, error)
}

// CoordinatorOptions holds the behaviour switches of the login flow.
// The zero value reproduces the historical behaviour: session and open
// errors are silent and the profile fetch shows no progress.
type CoordinatorOptions struct {
	FlowTTL              time.Duration
	MainScreenURL        string
	SurfaceSessionErrors bool
	SurfaceOpenErrors    bool
	ProfileFetchProgress bool
}

// LoginCoordinator drives one Facebook login from launch to account result
type LoginCoordinator struct {
	sessions SessionOpener
	flows    domain.FlowStore
	accounts domain.AccountService
	opts     CoordinatorOptions
	newState func() (string, error)
	now      func() time.Time
}

func NewLoginCoordinator(sessions SessionOpener, flows domain.FlowStore, accounts domain.AccountService, opts CoordinatorOptions) *LoginCoordinator {
	if opts.FlowTTL <= 0 {
		opts.FlowTTL = 10 * time.Minute
	}
	return &LoginCoordinator{
		sessions: sessions,
		flows:    flows,
		accounts: accounts,
		opts:     opts,
		newState: oauth.GenerateState,
		now:      time.Now,
	}
}

// StartLogin shows the connecting indicator and sends the user to the provider
func (c *LoginCoordinator) StartLogin(ctx context.Context, launch domain.LaunchParams) *domain.Step {
	state, err := c.newState()
	if err != nil {
		return c.openFailed(err)
	}

	flow := domain.Flow{
		State:     state,
		Launch:    launch,
		CreatedAt: c.now().UTC(),
	}
	if err := c.flows.Save(ctx, flow, c.opts.FlowTTL); err != nil {
		return c.openFailed(err)
	}

	return &domain.Step{
		Action:   domain.ActionRedirect,
		UI:       domain.UIState{Progress: true},
		State:    state,
		Redirect: c.sessions.GetAuthURL(state, launch.ConfirmCredentials),
	}
}

func (c *LoginCoordinator) openFailed(err error) *domain.Step {
	log.Printf("Failed to open %s session: %v", c.sessions.ProviderName(), err)
	step := &domain.Step{Action: domain.ActionError, Err: err}
	if c.opts.SurfaceOpenErrors {
		step.UI.Notice = NoticeConnectFailed
	}
	return step
}

// Complete handles the provider redirect for a pending flow. A callback for a
// flow that was abandoned, expired or already completed does nothing.
func (c *LoginCoordinator) Complete(ctx context.Context, cb oauth.Callback) *domain.Step {
	flow, err := c.flows.Take(ctx, cb.State)
	if err != nil {
		if errors.Is(err, domain.ErrFlowNotFound) {
			log.Printf("Ignoring callback for unknown login flow")
			return &domain.Step{Action: domain.ActionNone, Err: err}
		}
		log.Printf("Failed to load login flow: %v", err)
		return &domain.Step{Action: domain.ActionError, Err: err}
	}

	outcome := c.sessions.Resolve(ctx, cb)
	step := c.HandleSession(outcome)
	if step.Action != domain.ActionProceed {
		return step
	}

	return c.FetchProfile(ctx, *flow, outcome.Token)
}

// HandleSession maps a session outcome to exactly one UI action
func (c *LoginCoordinator) HandleSession(outcome oauth.SessionOutcome) *domain.Step {
	switch outcome.Kind {
	case oauth.SessionCancelled:
		return &domain.Step{
			Action: domain.ActionNotice,
			UI:     domain.UIState{Notice: NoticeLoginCancelled},
		}
	case oauth.SessionOpened:
		return &domain.Step{
			Action: domain.ActionProceed,
			UI: domain.UIState{
				Progress: c.opts.ProfileFetchProgress,
				Notice:   NoticeSessionOpened,
			},
		}
	}

	err := outcome.Err
	if err == nil {
		err = errors.New("unknown session state")
	}
	log.Printf("%s session failed: %v", c.sessions.ProviderName(), err)

	step := &domain.Step{Action: domain.ActionError, Err: err}
	if c.opts.SurfaceSessionErrors {
		step.UI.Notice = err.Error()
	}
	return step
}

// FetchProfile issues the single "me" request and reports the result.
// There is no retry: a failed fetch ends the flow.
func (c *LoginCoordinator) FetchProfile(ctx context.Context, flow domain.Flow, token *oauth2.Token) *domain.Step {
	if token == nil {
		return &domain.Step{Action: domain.ActionError, Err: errors.New("session has no token")}
	}

	profile, err := c.sessions.FetchProfile(ctx, token)
	if err != nil {
		cause := errors.Unwrap(err)
		if cause == nil {
			cause = err
		}
		log.Printf("Failed to fetch %s profile: %v", c.sessions.ProviderName(), err)
		return &domain.Step{
			Action: domain.ActionNotice,
			UI:     domain.UIState{Notice: cause.Error()},
			Err:    err,
		}
	}

	step := c.ReportAuthResult(ctx, flow, profile.Email, token.AccessToken)
	if step.Action == domain.ActionFinish {
		step.Redirect = c.opts.MainScreenURL
	}
	return step
}

// ReportAuthResult persists the account when identifier is present and
// hands the result back to the launcher
func (c *LoginCoordinator) ReportAuthResult(ctx context.Context, flow domain.Flow, identifier, credential string) *domain.Step {
	if strings.TrimSpace(identifier) == "" {
		return &domain.Step{
			Action: domain.ActionNotice,
			UI:     domain.UIState{Notice: NoticeLoginFailed},
			Result: &domain.FlowResult{},
			Err:    domain.ErrEmptyIdentifier,
		}
	}

	result, err := c.accounts.Persist(ctx, identifier, credential, flow.Launch.RequestNewAccount, flow.Launch.ConfirmCredentials)
	if err != nil {
		log.Printf("Failed to persist account: %v", err)
		return &domain.Step{
			Action: domain.ActionNotice,
			UI:     domain.UIState{Notice: NoticeLoginFailed},
			Result: &domain.FlowResult{},
			Err:    err,
		}
	}

	return &domain.Step{
		Action: domain.ActionFinish,
		UI:     domain.UIState{Notice: NoticeLoggedIn},
		Result: result,
	}
}

// Abandon drops a pending flow so that a late callback becomes a no-op
func (c *LoginCoordinator) Abandon(ctx context.Context, state string) error {
	return c.flows.Delete(ctx, state)
}
