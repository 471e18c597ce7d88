package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/ledger"
	"github.com/example/campus-booking/internal/logging"
	"github.com/example/campus-booking/internal/recurrence"
)

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts []conflictDetail  `json:"conflicts,omitempty"`
}

// conflictDetail names one occurrence of a request that collided with a
// committed booking, including the exact overlapping span.
type conflictDetail struct {
	BookingID      string    `json:"booking_id"`
	RequestedStart time.Time `json:"requested_start"`
	RequestedEnd   time.Time `json:"requested_end"`
	ExistingStart  time.Time `json:"existing_start"`
	ExistingEnd    time.Time `json:"existing_end"`
	OverlapStart   time.Time `json:"overlap_start"`
	OverlapEnd     time.Time `json:"overlap_end"`
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

// handleServiceError translates application and ledger errors into the JSON
// error envelope.
func (r responder) handleServiceError(c echo.Context, err error) error {
	ctx := c.Request().Context()
	if err == nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "unknown error"})
	}

	var conflictErr *ledger.ConflictError
	if errors.As(err, &conflictErr) {
		return c.JSON(http.StatusConflict, errorResponse{
			ErrorCode: "slot_conflict",
			Message:   "the requested time collides with committed bookings",
			Conflicts: conflictDetails(conflictErr),
		})
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "validation_failed",
			Message:   "the request is invalid",
			Errors:    vErr.FieldErrors,
		})
	}

	switch {
	case errors.Is(err, application.ErrNotFound), errors.Is(err, ledger.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{
			ErrorCode: "not_found",
			Message:   "the requested record does not exist",
		})
	case errors.Is(err, application.ErrUnauthorized), errors.Is(err, ledger.ErrNotOwner):
		return c.JSON(http.StatusForbidden, errorResponse{
			ErrorCode: "forbidden",
			Message:   "you do not have permission for this operation",
		})
	case errors.Is(err, application.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, errorResponse{
			ErrorCode: "invalid_credentials",
			Message:   "email or password is incorrect",
		})
	case errors.Is(err, application.ErrAlreadyExists):
		return c.JSON(http.StatusConflict, errorResponse{
			ErrorCode: "already_exists",
			Message:   "a record with the same identity already exists",
		})
	case errors.Is(err, application.ErrResourceRetired):
		return c.JSON(http.StatusConflict, errorResponse{
			ErrorCode: "resource_retired",
			Message:   "the resource is retired and no longer accepts bookings",
		})
	case errors.Is(err, ledger.ErrCancellationWindowClosed):
		return c.JSON(http.StatusConflict, errorResponse{
			ErrorCode: "cancellation_window_closed",
			Message:   "the booking starts too soon to be cancelled",
		})
	case errors.Is(err, ledger.ErrVersionMismatch):
		return c.JSON(http.StatusConflict, errorResponse{
			ErrorCode: "version_conflict",
			Message:   "the booking was modified concurrently; re-read and retry",
		})
	case errors.Is(err, ledger.ErrBookingCancelled), errors.Is(err, ledger.ErrBookingCompleted):
		return c.JSON(http.StatusConflict, errorResponse{
			ErrorCode: "terminal_state",
			Message:   "the booking is in a terminal state",
		})
	case errors.Is(err, ledger.ErrInvalidExtension):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "invalid_extension",
			Message:   "the new end must be later than the current end",
		})
	case errors.Is(err, recurrence.ErrTooManyOccurrences):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "series_too_long",
			Message:   "the recurrence rule expands to too many occurrences",
		})
	}

	r.loggerFor(ctx).ErrorContext(ctx, "request failed", "error", err)
	return c.JSON(http.StatusInternalServerError, errorResponse{
		ErrorCode: "internal_error",
		Message:   "an internal error occurred",
	})
}

func conflictDetails(err *ledger.ConflictError) []conflictDetail {
	details := make([]conflictDetail, 0, len(err.Conflicts))
	for _, conflict := range err.Conflicts {
		details = append(details, conflictDetail{
			BookingID:      conflict.BookingID,
			RequestedStart: conflict.Requested.Start,
			RequestedEnd:   conflict.Requested.End,
			ExistingStart:  conflict.Existing.Start,
			ExistingEnd:    conflict.Existing.End,
			OverlapStart:   conflict.Overlap.Start,
			OverlapEnd:     conflict.Overlap.End,
		})
	}
	return details
}
