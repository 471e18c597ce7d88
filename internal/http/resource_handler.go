package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/campus-booking/internal/application"
)

// ResourceHandler serves resource catalog requests.
type ResourceHandler struct {
	resources *application.ResourceService
	responder responder
}

// NewResourceHandler creates a new ResourceHandler.
func NewResourceHandler(resources *application.ResourceService, responder responder) *ResourceHandler {
	return &ResourceHandler{resources: resources, responder: responder}
}

type resourceRequest struct {
	Name       string   `json:"name"`
	Capacity   int      `json:"capacity"`
	Attributes []string `json:"attributes"`
	Building   string   `json:"building"`
	Floor      int      `json:"floor"`
}

func (r resourceRequest) toInput() application.ResourceInput {
	return application.ResourceInput{
		Name:       r.Name,
		Capacity:   r.Capacity,
		Attributes: r.Attributes,
		Building:   r.Building,
		Floor:      r.Floor,
	}
}

type resourcesResponse struct {
	Resources []resourcePayload `json:"resources"`
}

// Create registers a new bookable resource. Admin only.
func (h *ResourceHandler) Create(c echo.Context) error {
	principal, ok := principalFrom(c)
	if !ok {
		return h.responder.handleServiceError(c, application.ErrUnauthorized)
	}

	var req resourceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode: "malformed_body",
			Message:   "the request body is not valid JSON",
		})
	}

	resource, err := h.resources.CreateResource(c.Request().Context(), application.CreateResourceParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toResourcePayload(resource))
}

// Update replaces a resource's attributes. Admin only.
func (h *ResourceHandler) Update(c echo.Context) error {
	principal, ok := principalFrom(c)
	if !ok {
		return h.responder.handleServiceError(c, application.ErrUnauthorized)
	}

	var req resourceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode: "malformed_body",
			Message:   "the request body is not valid JSON",
		})
	}

	resource, err := h.resources.UpdateResource(c.Request().Context(), application.UpdateResourceParams{
		Principal:  principal,
		ResourceID: c.Param("id"),
		Input:      req.toInput(),
	})
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toResourcePayload(resource))
}

// Retire removes a resource from new bookings while keeping its history.
func (h *ResourceHandler) Retire(c echo.Context) error {
	principal, ok := principalFrom(c)
	if !ok {
		return h.responder.handleServiceError(c, application.ErrUnauthorized)
	}

	if err := h.resources.RetireResource(c.Request().Context(), principal, c.Param("id")); err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Get returns a single resource.
func (h *ResourceHandler) Get(c echo.Context) error {
	resource, err := h.resources.GetResource(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toResourcePayload(resource))
}

// List returns catalog resources matching the query filters.
func (h *ResourceHandler) List(c echo.Context) error {
	minCapacity, err := parseIntParam(c, "min_capacity")
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "validation_failed",
			Message:   "the request is invalid",
			Errors:    map[string]string{"min_capacity": "must be an integer"},
		})
	}

	resources, err := h.resources.ListResources(c.Request().Context(), application.ListResourcesParams{
		MinCapacity:    minCapacity,
		Building:       c.QueryParam("building"),
		Attributes:     splitListParam(c.QueryParam("attributes")),
		IncludeRetired: c.QueryParam("include_retired") == "true",
	})
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}

	payloads := make([]resourcePayload, 0, len(resources))
	for _, resource := range resources {
		payloads = append(payloads, toResourcePayload(resource))
	}
	return c.JSON(http.StatusOK, resourcesResponse{Resources: payloads})
}
