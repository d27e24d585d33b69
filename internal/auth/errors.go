// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned by UserRepository.Create when the email is
// already registered. Repositories must surface uniqueness violations through
// this sentinel so callers never match on storage-engine error codes.
var ErrDuplicateEmail = errors.New("email already registered")
