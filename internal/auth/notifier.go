// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

package auth

import "context"

// Notifier dispatches the password-reset email. Dispatch is fire-and-forget
// from the service's perspective: a delivery failure is logged by the caller
// and never surfaced to the user who requested the reset.
type Notifier interface {
	SendResetEmail(ctx context.Context, to, resetLink, username string) error
}
