package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/campus-booking/internal/application"
)

// AvailabilityHandler serves free-slot and search queries.
type AvailabilityHandler struct {
	scheduler *application.SchedulerService
	responder responder
}

// NewAvailabilityHandler creates a new AvailabilityHandler.
func NewAvailabilityHandler(scheduler *application.SchedulerService, responder responder) *AvailabilityHandler {
	return &AvailabilityHandler{scheduler: scheduler, responder: responder}
}

type freeSlotsResponse struct {
	ResourceID string        `json:"resource_id"`
	FreeSlots  []slotPayload `json:"free_slots"`
}

// FreeSlots returns the free gaps of one resource inside a window.
func (h *AvailabilityHandler) FreeSlots(c echo.Context) error {
	window, fieldErrors := windowFromQuery(c)
	if fieldErrors != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "validation_failed",
			Message:   "the request is invalid",
			Errors:    fieldErrors,
		})
	}

	resourceID := c.QueryParam("resource_id")
	slots, err := h.scheduler.FreeSlots(c.Request().Context(), application.AvailabilityQuery{
		ResourceID: resourceID,
		Window:     window,
	})
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, freeSlotsResponse{
		ResourceID: resourceID,
		FreeSlots:  toSlotPayloads(slots),
	})
}

type nextFreeResponse struct {
	ResourceID string       `json:"resource_id"`
	Found      bool         `json:"found"`
	Slot       *slotPayload `json:"slot,omitempty"`
}

// NextFree returns the earliest sufficiently long gap after an instant.
func (h *AvailabilityHandler) NextFree(c echo.Context) error {
	after, err := parseTimeParam(c, "after")
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "validation_failed",
			Message:   "the request is invalid",
			Errors:    map[string]string{"after": "must be an RFC 3339 timestamp"},
		})
	}

	minDuration, err := parseDurationParam(c, "min_duration")
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "validation_failed",
			Message:   "the request is invalid",
			Errors:    map[string]string{"min_duration": "must be a duration such as 30m or 1h"},
		})
	}

	resourceID := c.QueryParam("resource_id")
	slot, found, err := h.scheduler.NextFree(c.Request().Context(), application.NextFreeQuery{
		ResourceID:  resourceID,
		After:       after,
		MinDuration: minDuration,
	})
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}

	response := nextFreeResponse{ResourceID: resourceID, Found: found}
	if found {
		response.Slot = &slotPayload{Start: slot.Start, End: slot.End}
	}
	return c.JSON(http.StatusOK, response)
}

type searchResponse struct {
	Results []searchResultPayload `json:"results"`
}

// Search returns resources able to host the party in the window, tightest
// capacity fit first.
func (h *AvailabilityHandler) Search(c echo.Context) error {
	window, fieldErrors := windowFromQuery(c)
	if fieldErrors != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "validation_failed",
			Message:   "the request is invalid",
			Errors:    fieldErrors,
		})
	}

	partySize, err := parseIntParam(c, "party_size")
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "validation_failed",
			Message:   "the request is invalid",
			Errors:    map[string]string{"party_size": "must be an integer"},
		})
	}

	results, err := h.scheduler.SearchAvailability(c.Request().Context(), application.SearchParams{
		Window:     window,
		PartySize:  partySize,
		Building:   c.QueryParam("building"),
		Attributes: splitListParam(c.QueryParam("attributes")),
	})
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}

	payloads := make([]searchResultPayload, 0, len(results))
	for _, result := range results {
		payloads = append(payloads, searchResultPayload{
			Resource:  toResourcePayload(result.Resource),
			FreeSlots: toSlotPayloads(result.FreeSlots),
		})
	}
	return c.JSON(http.StatusOK, searchResponse{Results: payloads})
}

func parseDurationParam(c echo.Context, name string) (time.Duration, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func parseIntParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func splitListParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
