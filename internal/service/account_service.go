package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yoshapihoff/bricks/authenticator/internal/domain"
	"github.com/yoshapihoff/bricks/authenticator/internal/events"
)

// ResultSigner signs the token returned with a successful flow result
type ResultSigner interface {
	GenerateToken(accountName, accountType string) (string, error)
}

// EventPublisher receives an event for every persisted account
type EventPublisher interface {
	Publish(ev events.AccountEvent)
}

type AccountService struct {
	accountRepo domain.AccountRepository
	signer      ResultSigner
	publisher   EventPublisher
	now         func() time.Time
}

var _ domain.AccountService = (*AccountService)(nil)

func NewAccountService(accountRepo domain.AccountRepository, signer ResultSigner, publisher EventPublisher) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		signer:      signer,
		publisher:   publisher,
		now:         time.Now,
	}
}

// Persist writes the credential for identifier and returns the flow result.
// A confirm-credentials flow updates in place, a new-account flow creates
// the account and any other flow updates it. Every branch creates the
// account when none is stored yet and updates it when one already exists.
func (s *AccountService) Persist(ctx context.Context, identifier, credential string, isNewAccount, isConfirmingExisting bool) (*domain.FlowResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, domain.ErrEmptyIdentifier
	}

	var (
		action  events.AccountAction
		created bool
		err     error
	)
	switch {
	case isConfirmingExisting:
		created, err = s.update(ctx, identifier, credential)
		action = events.AccountConfirmed
	case isNewAccount:
		err = s.create(ctx, identifier, credential)
		created = err == nil
		if errors.Is(err, domain.ErrAccountExists) {
			created, err = s.update(ctx, identifier, credential)
		}
		action = events.AccountUpdated
	default:
		created, err = s.update(ctx, identifier, credential)
		action = events.AccountUpdated
	}
	if err != nil {
		return nil, err
	}
	if created {
		action = events.AccountCreated
	}

	token, err := s.signer.GenerateToken(identifier, domain.AccountType)
	if err != nil {
		return nil, fmt.Errorf("failed to sign result: %w", err)
	}

	s.publish(identifier, action)

	return &domain.FlowResult{
		AccountAdded: true,
		AccountName:  identifier,
		AccountType:  domain.AccountType,
		Token:        token,
	}, nil
}

func (s *AccountService) create(ctx context.Context, identifier, credential string) error {
	err := s.accountRepo.Create(ctx, &domain.Account{
		Name:       identifier,
		Type:       domain.AccountType,
		AuthType:   domain.AuthTypeFacebook,
		Credential: credential,
	})
	if err != nil && !errors.Is(err, domain.ErrAccountExists) {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return err
}

// update sets credential and auth type in place and reports whether the
// account had to be created first. Writing the values the account already
// holds is a no-op.
func (s *AccountService) update(ctx context.Context, identifier, credential string) (bool, error) {
	existing, err := s.accountRepo.Find(ctx, identifier, domain.AccountType)
	if errors.Is(err, domain.ErrAccountNotFound) {
		err = s.create(ctx, identifier, credential)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, domain.ErrAccountExists) {
			return false, err
		}
		// created concurrently, update the winner
		existing, err = s.accountRepo.Find(ctx, identifier, domain.AccountType)
	}
	if err != nil {
		return false, fmt.Errorf("failed to find account: %w", err)
	}

	if existing.Credential == credential && existing.AuthType == domain.AuthTypeFacebook {
		return false, nil
	}

	if err := s.accountRepo.UpdateCredential(ctx, identifier, domain.AccountType, credential, domain.AuthTypeFacebook); err != nil {
		return false, fmt.Errorf("failed to update account: %w", err)
	}
	return false, nil
}

// Unlink removes the Facebook account stored under name
func (s *AccountService) Unlink(ctx context.Context, name string) error {
	if err := s.accountRepo.Delete(ctx, name, domain.AccountType); err != nil {
		return err
	}
	s.publish(name, events.AccountUnlinked)
	return nil
}

func (s *AccountService) publish(name string, action events.AccountAction) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(events.AccountEvent{
		AccountName: name,
		AccountType: domain.AccountType,
		AuthType:    domain.AuthTypeFacebook,
		Action:      action,
		OccurredAt:  s.now().UTC(),
	})
}

// Get returns the Facebook account stored under name
func (s *AccountService) Get(ctx context.Context, name string) (*domain.Account, error) {
	return s.accountRepo.Find(ctx, name, domain.AccountType)
}
