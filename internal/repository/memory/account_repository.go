package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yoshapihoff/bricks/authenticator/internal/domain"
)

type accountKey struct {
	name        string
	accountType string
}

// AccountRepository keeps accounts in process memory. It backs
// ACCOUNT_STORE=memory and the service tests.
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[accountKey]domain.Account
	now      func() time.Time
}

var _ domain.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[accountKey]domain.Account),
		now:      time.Now,
	}
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := accountKey{account.Name, account.Type}
	if _, exists := r.accounts[key]; exists {
		return domain.ErrAccountExists
	}

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := r.now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	r.accounts[key] = *account
	return nil
}

func (r *AccountRepository) Find(ctx context.Context, name, accountType string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[accountKey{name, accountType}]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &account, nil
}

func (r *AccountRepository) UpdateCredential(ctx context.Context, name, accountType, credential, authType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := accountKey{name, accountType}
	account, ok := r.accounts[key]
	if !ok {
		return domain.ErrAccountNotFound
	}

	account.Credential = credential
	account.AuthType = authType
	account.UpdatedAt = r.now().UTC()
	r.accounts[key] = account
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, name, accountType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := accountKey{name, accountType}
	if _, ok := r.accounts[key]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(r.accounts, key)
	return nil
}

func (r *AccountRepository) CreateTables(ctx context.Context) error {
	return nil
}

// Len returns the number of stored accounts
func (r *AccountRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}
