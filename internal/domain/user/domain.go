package user

import (
	"time"
)

// Role partitions what a user may do in the marketplace. The set is
// closed; anything else coming off the wire is rejected.
type Role string

const (
	RoleUser    Role = "user"
	RoleCarrier Role = "carrier"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleCarrier, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
