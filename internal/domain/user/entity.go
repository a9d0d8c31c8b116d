package user

import (
	"time"

	"github.com/google/uuid"
)

// User entity. Used for login and for attributing bookings to a principal;
// registration and profile management live outside this service.
type User struct {
	id           uuid.UUID
	username     string
	passwordHash string
	role         Role
	createdAt    time.Time
}

func ReconstructUser(id uuid.UUID, username, passwordHash string, role Role, createdAt time.Time) *User {
	return &User{
		id:           id,
		username:     username,
		passwordHash: passwordHash,
		role:         role,
		createdAt:    createdAt,
	}
}

func (u *User) ID() uuid.UUID        { return u.id }
func (u *User) Username() string     { return u.username }
func (u *User) PasswordHash() string { return u.passwordHash }
func (u *User) Role() Role           { return u.role }
func (u *User) CreatedAt() time.Time { return u.createdAt }
