package domain

import (
	"context"
	"errors"
	"time"
)

var ErrFlowNotFound = errors.New("login flow not found")

// LaunchParams are supplied by whoever starts the login flow
type LaunchParams struct {
	ConfirmCredentials bool `json:"confirm_credentials"`
	RequestNewAccount  bool `json:"request_new_account"`
}

// Flow is a launched login flow waiting for the provider callback
type Flow struct {
	State     string       `json:"state"`
	Launch    LaunchParams `json:"launch"`
	CreatedAt time.Time    `json:"created_at"`
}

// FlowStore keeps pending flows between the redirect and the callback.
// Take removes the flow, so every flow completes at most once.
type FlowStore interface {
	Save(ctx context.Context, flow Flow, ttl time.Duration) error
	Take(ctx context.Context, state string) (*Flow, error)
	Delete(ctx context.Context, state string) error
}

// Action is the single terminal thing a step asks the caller to do
type Action string

const (
	ActionNone     Action = "none"
	ActionRedirect Action = "redirect"
	ActionNotice   Action = "notice"
	ActionProceed  Action = "proceed"
	ActionError    Action = "error"
	ActionFinish   Action = "finish"
)

// UIState is what the launcher should display after a step
type UIState struct {
	Progress bool   `json:"progress"`
	Notice   string `json:"notice,omitempty"`
}

// Step is the outcome of one coordinator operation
type Step struct {
	Action   Action      `json:"action"`
	UI       UIState     `json:"ui"`
	State    string      `json:"state,omitempty"`
	Redirect string      `json:"redirect,omitempty"`
	Result   *FlowResult `json:"result,omitempty"`
	Err      error       `json:"-"`
}
