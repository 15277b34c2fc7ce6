// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
// An expired reset token is indistinguishable from one that never existed;
// both surface as ErrNotFound from the token store.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a storage-level uniqueness constraint is
// violated (duplicate username or email).
var ErrConflict = errors.New("already exists")
