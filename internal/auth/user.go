// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User represents a registered account. Within this subsystem a user is
// immutable after creation; there are no profile edits here.
type User struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// NewUser creates a validated User with a freshly generated ID.
// The email is stored and compared exactly as submitted; a case variant is a
// distinct account.
func NewUser(email, passwordHash string) (*User, error) {
	if !strings.Contains(email, "@") {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email must contain @")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}, nil
}

// UserRepository manages user persistence. The store enforces email
// uniqueness atomically; there is no check-then-insert in this package.
type UserRepository interface {
	// Create stores a new user. A uniqueness violation on the email is
	// reported as an error wrapping ErrDuplicateEmail.
	Create(ctx context.Context, user *User) error

	// GetByEmail retrieves a user by exact email match.
	// Returns an error wrapping ErrNotFound if no such user exists.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// Delete removes a user.
	Delete(ctx context.Context, id ulid.ULID) error
}
