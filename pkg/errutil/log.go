// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

// Package errutil logs and asserts on the coded oops errors the auth
// service produces. Repository and transport faults carry a code and
// key/value context; these helpers surface both without callers
// unwrapping by hand.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err through logger at error level. When err is an oops
// error the code and context land as separate attributes, so a fault
// like SESSION_BIND_FAILED stays queryable in JSON log output. Plain
// errors log with the error string alone.
func LogError(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{
			"error", oopsErr.Error(),
		}
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		logger.Error(msg, attrs...)
	} else {
		logger.Error(msg, "error", err)
	}
}
