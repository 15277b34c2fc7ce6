// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

package auth

import "strings"

// Registration policy constraints.
const (
	MinUsernameLength = 3
	MinPasswordLength = 6
)

// FieldError attributes a validation failure to a single named input field.
// FieldError values are data, not errors: they travel in a Response and are
// safe to show to the caller.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateRegistration checks registration fields against policy.
// Rules are evaluated in order and the first failure short-circuits, so at
// most one FieldError is returned per call. A nil result means valid.
//
// The username may not contain an @ because login accepts a username or an
// email and disambiguates on that character.
func ValidateRegistration(username, email, password string) []FieldError {
	if len(username) < MinUsernameLength {
		return []FieldError{{Field: "username", Message: "length must be at least 3"}}
	}
	if strings.Contains(username, "@") {
		return []FieldError{{Field: "username", Message: "cannot include an @"}}
	}
	if !strings.Contains(email, "@") {
		return []FieldError{{Field: "email", Message: "invalid email"}}
	}
	if len(password) < MinPasswordLength {
		return []FieldError{{Field: "password", Message: "length must be at least 6"}}
	}
	return nil
}
