package http

import (
	"fmt"
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/labstack/echo/v4"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/ledger"
)

// BookingHandler serves booking lifecycle requests.
type BookingHandler struct {
	scheduler *application.SchedulerService
	responder responder
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(scheduler *application.SchedulerService, responder responder) *BookingHandler {
	return &BookingHandler{scheduler: scheduler, responder: responder}
}

type recurrenceRequest struct {
	Frequency string    `json:"frequency"`
	Until     time.Time `json:"until"`
}

type createBookingRequest struct {
	ResourceID string             `json:"resource_id"`
	Start      time.Time          `json:"start"`
	End        time.Time          `json:"end"`
	PartySize  int                `json:"party_size"`
	Purpose    string             `json:"purpose"`
	Recurrence *recurrenceRequest `json:"recurrence,omitempty"`
}

type bookingsResponse struct {
	Bookings []bookingPayload `json:"bookings"`
}

// Create commits a booking request, recurring or not.
func (h *BookingHandler) Create(c echo.Context) error {
	principal, ok := principalFrom(c)
	if !ok {
		return h.responder.handleServiceError(c, application.ErrUnauthorized)
	}

	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode: "malformed_body",
			Message:   "the request body is not valid JSON",
		})
	}

	input := application.BookingInput{
		ResourceID: req.ResourceID,
		Start:      req.Start,
		End:        req.End,
		PartySize:  req.PartySize,
		Purpose:    req.Purpose,
	}
	if req.Recurrence != nil {
		input.Recurrence = &application.RecurrenceInput{
			Frequency: req.Recurrence.Frequency,
			Until:     req.Recurrence.Until,
		}
	}

	views, err := h.scheduler.Book(c.Request().Context(), application.CreateBookingParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, bookingsResponse{Bookings: toBookingPayloads(views)})
}

// List returns the principal's bookings. Admins may pass owner_id to list
// another owner's bookings.
func (h *BookingHandler) List(c echo.Context) error {
	principal, ok := principalFrom(c)
	if !ok {
		return h.responder.handleServiceError(c, application.ErrUnauthorized)
	}

	views, err := h.scheduler.ListForOwner(c.Request().Context(), application.ListBookingsParams{
		Principal: principal,
		OwnerID:   c.QueryParam("owner_id"),
	})
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, bookingsResponse{Bookings: toBookingPayloads(views)})
}

// Get returns a single booking with its derived status.
func (h *BookingHandler) Get(c echo.Context) error {
	principal, ok := principalFrom(c)
	if !ok {
		return h.responder.handleServiceError(c, application.ErrUnauthorized)
	}

	view, err := h.scheduler.GetBooking(c.Request().Context(), principal, c.Param("id"))
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingPayload(view))
}

// Cancel transitions a booking to cancelled. Repeating a cancel returns the
// terminal record again.
func (h *BookingHandler) Cancel(c echo.Context) error {
	principal, ok := principalFrom(c)
	if !ok {
		return h.responder.handleServiceError(c, application.ErrUnauthorized)
	}

	view, err := h.scheduler.Cancel(c.Request().Context(), application.CancelBookingParams{
		Principal: principal,
		BookingID: c.Param("id"),
	})
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingPayload(view))
}

type extendBookingRequest struct {
	NewEnd  time.Time `json:"new_end"`
	Version int       `json:"version"`
}

// Extend moves a booking's end later under optimistic concurrency.
func (h *BookingHandler) Extend(c echo.Context) error {
	principal, ok := principalFrom(c)
	if !ok {
		return h.responder.handleServiceError(c, application.ErrUnauthorized)
	}

	var req extendBookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode: "malformed_body",
			Message:   "the request body is not valid JSON",
		})
	}

	view, err := h.scheduler.Extend(c.Request().Context(), application.ExtendBookingParams{
		Principal:       principal,
		BookingID:       c.Param("id"),
		NewEnd:          req.NewEnd,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingPayload(view))
}

// Calendar exports the owner's non-cancelled bookings as an iCalendar feed.
func (h *BookingHandler) Calendar(c echo.Context) error {
	principal, ok := principalFrom(c)
	if !ok {
		return h.responder.handleServiceError(c, application.ErrUnauthorized)
	}

	views, err := h.scheduler.ListForOwner(c.Request().Context(), application.ListBookingsParams{
		Principal: principal,
		OwnerID:   c.QueryParam("owner_id"),
	})
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//campus-booking//bookingd//EN")

	for _, view := range views {
		if view.Status == ledger.StatusCancelled {
			continue
		}
		event := cal.AddEvent(view.ID)
		event.SetCreatedTime(view.CreatedAt)
		event.SetDtStampTime(view.UpdatedAt)
		event.SetStartAt(view.Interval.Start)
		event.SetEndAt(view.Interval.End)
		event.SetSummary(eventSummary(view))
		event.SetLocation(view.ResourceID)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/calendar; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="bookings.ics"`)
	return c.String(http.StatusOK, cal.Serialize())
}

func eventSummary(view application.BookingView) string {
	if view.Purpose != "" {
		return view.Purpose
	}
	return fmt.Sprintf("Booking for %d", view.PartySize)
}
