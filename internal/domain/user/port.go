package user

import "context"

type Repo interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// UpdatePassword replaces the stored hash and records the change
	// in the credential audit trail, atomically.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}
