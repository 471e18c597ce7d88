package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/campus-booking/internal/ledger"
	"github.com/example/campus-booking/internal/logging"
	"github.com/example/campus-booking/internal/recurrence"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrResourceRetired):
		return "resource_retired"
	case errors.Is(err, ledger.ErrCancellationWindowClosed):
		return "cancellation_window_closed"
	case errors.Is(err, ledger.ErrVersionMismatch):
		return "version_conflict"
	case errors.Is(err, ledger.ErrBookingCancelled), errors.Is(err, ledger.ErrBookingCompleted):
		return "terminal_state"
	case errors.Is(err, recurrence.ErrTooManyOccurrences):
		return "series_too_long"
	}

	var conflictErr *ledger.ConflictError
	if errors.As(err, &conflictErr) {
		return "slot_conflict"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
