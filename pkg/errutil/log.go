// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

// Package errutil holds helpers for logging and asserting oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code and context.
// For standard errors, it logs the error string. args are appended as
// additional attributes.
func LogError(logger *slog.Logger, msg string, err error, args ...any) {
	LogErrorContext(context.Background(), logger, msg, err, args...)
}

// LogErrorContext is LogError with a context, so trace IDs carried by ctx
// reach the log handler.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error, args ...any) {
	attrs := make([]any, 0, len(args)+6)
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs = append(attrs, "error", oopsErr.Error())
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if errCtx := oopsErr.Context(); len(errCtx) > 0 {
			attrs = append(attrs, "context", errCtx)
		}
	} else {
		attrs = append(attrs, "error", err)
	}
	attrs = append(attrs, args...)
	logger.ErrorContext(ctx, msg, attrs...)
}
