// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import "strings"

// MinPasswordLength is the minimum accepted password length in bytes.
const MinPasswordLength = 8

// Field names used in FieldErrors maps.
const (
	FieldEmail    = "email"
	FieldPassword = "password"
	FieldGeneral  = "general"
)

// Validation messages shown to end users.
const (
	MsgInvalidEmail  = "Please enter a valid email address."
	MsgShortPassword = "Password must be at least 8 characters long."
)

// Credentials holds raw sign-in input. It is never persisted; the password
// is discarded as soon as it has been hashed or verified.
type Credentials struct {
	Email    string
	Password string
}

// FieldErrors maps an input field name to a human-readable message.
type FieldErrors map[string]string

// ValidateCredentials performs the syntactic checks that run before any I/O:
// the email must contain an "@" (full RFC validation is a deliberate
// non-goal) and the password must be at least MinPasswordLength characters.
// Both rules are evaluated independently so a caller always sees every
// violated field at once; a nil map means the input passed.
func ValidateCredentials(email, password string) (Credentials, FieldErrors) {
	errs := FieldErrors{}

	if !strings.Contains(email, "@") {
		errs[FieldEmail] = MsgInvalidEmail
	}
	if len(password) < MinPasswordLength {
		errs[FieldPassword] = MsgShortPassword
	}

	if len(errs) > 0 {
		return Credentials{}, errs
	}
	return Credentials{Email: email, Password: password}, nil
}
