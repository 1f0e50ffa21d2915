package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	// AccountType identifies accounts linked through Facebook in the account store
	AccountType = "com.yoshapihoff.bricks.facebook"

	// AuthTypeKey is the user-data key carrying the auth type of an account
	AuthTypeKey = "auth_type"

	// AuthTypeFacebook is the auth type stored for every Facebook account
	AuthTypeFacebook = "facebook"
)

// Common errors
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrEmptyIdentifier = errors.New("account identifier is empty")
)

// Account is a record in the account store. There is at most one account
// per (Name, Type) pair.
type Account struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	AuthType   string    `json:"auth_type"`
	Credential string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FlowResult is handed back to whoever launched the login flow
type FlowResult struct {
	AccountAdded bool   `json:"account_added"`
	AccountName  string `json:"account_name,omitempty"`
	AccountType  string `json:"account_type,omitempty"`
	Token        string `json:"token,omitempty"`
}

// AccountRepository defines the interface for account store operations
type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	Find(ctx context.Context, name, accountType string) (*Account, error)
	UpdateCredential(ctx context.Context, name, accountType, credential, authType string) error
	Delete(ctx context.Context, name, accountType string) error
	CreateTables(ctx context.Context) error
}

// AccountService defines the account persister
type AccountService interface {
	Persist(ctx context.Context, identifier, credential string, isNewAccount, isConfirmingExisting bool) (*FlowResult, error)
	Get(ctx context.Context, name string) (*Account, error)
	Unlink(ctx context.Context, name string) error
}
