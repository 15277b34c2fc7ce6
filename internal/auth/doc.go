// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

// Package auth provides user registration, login, session-backed identity,
// and the time-boxed password-reset flow.
//
// # Domain Types
//
// User records are created with NewUser, which validates inputs before any
// repository sees them. SessionRecord values are created with
// NewSessionRecord. Direct struct initialization bypasses validation and may
// create invalid state.
//
// # Contracts
//
// The package defines the collaborator contracts the service consumes:
//   - UserRepository - persistence for user records
//   - TokenStore - TTL key-value storage for reset tokens
//   - Session - the per-request identity binding capability
//   - Notifier - reset-email dispatch
//   - PasswordHasher - credential hashing and verification
//
// Service orchestrates them into the public operations. Caller-correctable
// failures are returned as FieldError values inside a Response, never as
// errors; error returns are reserved for internal faults.
package auth
