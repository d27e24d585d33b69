// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package auth implements credential authentication and session lifecycle.
//
// # Domain Types
//
// Domain types (User, Session) should be created using their constructors:
//   - NewUser - creates a User with a validated email and password hash
//   - NewSession - creates a Session with a validated user and expiry
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Two services coordinate the domain:
//   - SessionManager - mints, verifies, and destroys sessions; the sole
//     writer of session state. Verification returns an optional cookie
//     instruction so the transport decision stays explicit and testable.
//   - Service - composes credential validation, the user repository, the
//     password hasher, and the SessionManager into the signup, login,
//     logout, and verify flows. Business failures come back as Result
//     values; only infrastructure faults are returned as errors.
package auth
