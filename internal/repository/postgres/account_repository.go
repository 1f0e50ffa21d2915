package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/yoshapihoff/bricks/authenticator/internal/domain"
)

// CredentialSealer encrypts credentials at rest
type CredentialSealer interface {
	Seal(plaintext string) ([]byte, error)
	Open(sealed []byte) (string, error)
}

type accountRepository struct {
	db     *sql.DB
	sealer CredentialSealer
}

func NewAccountRepository(db *sql.DB, sealer CredentialSealer) domain.AccountRepository {
	return &accountRepository{db: db, sealer: sealer}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, name, type, auth_type, credential, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name, type) DO NOTHING
		RETURNING id, created_at, updated_at
	`

	sealed, err := r.sealer.Seal(account.Credential)
	if err != nil {
		return err
	}

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	err = r.db.QueryRowContext(
		ctx,
		query,
		account.ID,
		account.Name,
		account.Type,
		account.AuthType,
		sealed,
		account.CreatedAt,
		account.UpdatedAt,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrAccountExists
		}
		return err
	}

	return nil
}

func (r *accountRepository) Find(ctx context.Context, name, accountType string) (*domain.Account, error) {
	query := `
		SELECT id, name, type, auth_type, credential, created_at, updated_at
		FROM accounts
		WHERE name = $1 AND type = $2
	`

	var account domain.Account
	var sealed []byte
	err := r.db.QueryRowContext(ctx, query, name, accountType).Scan(
		&account.ID,
		&account.Name,
		&account.Type,
		&account.AuthType,
		&sealed,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}

	account.Credential, err = r.sealer.Open(sealed)
	if err != nil {
		return nil, err
	}

	return &account, nil
}

func (r *accountRepository) UpdateCredential(ctx context.Context, name, accountType, credential, authType string) error {
	updatedAt := time.Now().UTC()

	sealed, err := r.sealer.Seal(credential)
	if err != nil {
		return err
	}

	query := `
		UPDATE accounts
		SET credential = $3, auth_type = $4, updated_at = $5
		WHERE name = $1 AND type = $2
		RETURNING updated_at
	`
	err = r.db.QueryRowContext(
		ctx,
		query,
		name,
		accountType,
		sealed,
		authType,
		updatedAt,
	).Scan(&updatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrAccountNotFound
		}
		return err
	}

	return nil
}

func (r *accountRepository) Delete(ctx context.Context, name, accountType string) error {
	query := `DELETE FROM accounts WHERE name = $1 AND type = $2`

	result, err := r.db.ExecContext(ctx, query, name, accountType)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// CreateTables creates the necessary database tables
func (r *accountRepository) CreateTables(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			name VARCHAR(320) NOT NULL,
			type VARCHAR(255) NOT NULL,
			auth_type VARCHAR(64) NOT NULL,
			credential BYTEA NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			CONSTRAINT uq_accounts_name_type UNIQUE (name, type)
		);
	`

	_, err := r.db.ExecContext(ctx, query)
	return err
}
