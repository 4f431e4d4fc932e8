package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/parcelpeer/authcore/internal/domain/user"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
	tx Transactor
}

func NewUserRepo(db *DB, tx Transactor) *UserRepo { return &UserRepo{db: db, tx: tx} }

const (
	qUserByID = `
SELECT id, email, password_hash, role, created_at, updated_at
FROM users
WHERE id = $1;`

	qUserByEmail = `
SELECT id, email, password_hash, role, created_at, updated_at
FROM users
WHERE email = $1;`

	qUserSetPassword = `
UPDATE users
SET password_hash = $2,
    updated_at    = NOW()
WHERE id = $1;`

	qCredentialEvent = `
INSERT INTO credential_events (user_id, kind)
VALUES ($1, 'password_change');`
)

func (r *UserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	return QueryOne[user.User](ctx, r.db, qUserByID, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return QueryOne[user.User](ctx, r.db, qUserByEmail, email)
}

// UpdatePassword writes the new hash and the audit row in one
// transaction; a failure of either leaves both untouched.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.tx.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, qUserSetPassword, id, passwordHash)
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, qCredentialEvent, id); err != nil {
			return fmt.Errorf("record credential event: %w", err)
		}
		return nil
	})
}
