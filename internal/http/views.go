package http

import (
	"time"

	"github.com/example/campus-booking/internal/application"
	"github.com/example/campus-booking/internal/interval"
)

type bookingPayload struct {
	ID          string     `json:"id"`
	ResourceID  string     `json:"resource_id"`
	OwnerID     string     `json:"owner_id"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	PartySize   int        `json:"party_size"`
	Purpose     string     `json:"purpose,omitempty"`
	SeriesID    *string    `json:"series_id,omitempty"`
	Status      string     `json:"status"`
	Version     int        `json:"version"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type slotPayload struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type resourcePayload struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Capacity   int       `json:"capacity"`
	Attributes []string  `json:"attributes"`
	Building   string    `json:"building,omitempty"`
	Floor      int       `json:"floor"`
	Retired    bool      `json:"retired"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type accountPayload struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type searchResultPayload struct {
	Resource  resourcePayload `json:"resource"`
	FreeSlots []slotPayload   `json:"free_slots"`
}

func toBookingPayload(view application.BookingView) bookingPayload {
	return bookingPayload{
		ID:          view.ID,
		ResourceID:  view.ResourceID,
		OwnerID:     view.OwnerID,
		Start:       view.Interval.Start,
		End:         view.Interval.End,
		PartySize:   view.PartySize,
		Purpose:     view.Purpose,
		SeriesID:    view.SeriesID,
		Status:      string(view.Status),
		Version:     view.Version,
		CancelledAt: view.CancelledAt,
		CreatedAt:   view.CreatedAt,
		UpdatedAt:   view.UpdatedAt,
	}
}

func toBookingPayloads(views []application.BookingView) []bookingPayload {
	payloads := make([]bookingPayload, 0, len(views))
	for _, view := range views {
		payloads = append(payloads, toBookingPayload(view))
	}
	return payloads
}

func toSlotPayloads(slots []interval.Interval) []slotPayload {
	payloads := make([]slotPayload, 0, len(slots))
	for _, slot := range slots {
		payloads = append(payloads, slotPayload{Start: slot.Start, End: slot.End})
	}
	return payloads
}

func toResourcePayload(resource application.Resource) resourcePayload {
	return resourcePayload{
		ID:         resource.ID,
		Name:       resource.Name,
		Capacity:   resource.Capacity,
		Attributes: resource.Attributes,
		Building:   resource.Building,
		Floor:      resource.Floor,
		Retired:    resource.Retired,
		CreatedAt:  resource.CreatedAt,
		UpdatedAt:  resource.UpdatedAt,
	}
}

func toAccountPayload(account application.Account) accountPayload {
	return accountPayload{
		ID:          account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		IsAdmin:     account.IsAdmin,
		CreatedAt:   account.CreatedAt,
		UpdatedAt:   account.UpdatedAt,
	}
}
