package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/campus-booking/internal/application"
)

// AuthHandler serves login requests.
type AuthHandler struct {
	auth      *application.AuthService
	responder responder
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *application.AuthService, responder responder) *AuthHandler {
	return &AuthHandler{auth: auth, responder: responder}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Account   accountPayload `json:"account"`
}

// Login exchanges credentials for a bearer token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode: "malformed_body",
			Message:   "the request body is not valid JSON",
		})
	}

	result, err := h.auth.Authenticate(c.Request().Context(), application.AuthenticateParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}

	return c.JSON(http.StatusOK, loginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Account:   toAccountPayload(result.Account),
	})
}
