package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/example/campus-booking/internal/application"
)

// AccountHandler serves account administration requests.
type AccountHandler struct {
	accounts  *application.AccountService
	responder responder
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *application.AccountService, responder responder) *AccountHandler {
	return &AccountHandler{accounts: accounts, responder: responder}
}

type accountRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	IsAdmin     bool   `json:"is_admin"`
}

func (r accountRequest) toInput() application.AccountInput {
	return application.AccountInput{
		Email:       r.Email,
		DisplayName: r.DisplayName,
		Password:    r.Password,
		IsAdmin:     r.IsAdmin,
	}
}

type accountsResponse struct {
	Accounts []accountPayload `json:"accounts"`
}

// Create registers a new owner account. Admin only.
func (h *AccountHandler) Create(c echo.Context) error {
	principal, ok := principalFrom(c)
	if !ok {
		return h.responder.handleServiceError(c, application.ErrUnauthorized)
	}

	var req accountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode: "malformed_body",
			Message:   "the request body is not valid JSON",
		})
	}

	account, err := h.accounts.CreateAccount(c.Request().Context(), application.CreateAccountParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toAccountPayload(account))
}

// Update changes an account's profile. Owners may edit themselves; only
// admins may change the admin flag.
func (h *AccountHandler) Update(c echo.Context) error {
	principal, ok := principalFrom(c)
	if !ok {
		return h.responder.handleServiceError(c, application.ErrUnauthorized)
	}

	var req accountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			ErrorCode: "malformed_body",
			Message:   "the request body is not valid JSON",
		})
	}

	account, err := h.accounts.UpdateAccount(c.Request().Context(), application.UpdateAccountParams{
		Principal: principal,
		AccountID: c.Param("id"),
		Input:     req.toInput(),
	})
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toAccountPayload(account))
}

// Get returns one account. Owners see themselves; admins see all.
func (h *AccountHandler) Get(c echo.Context) error {
	principal, ok := principalFrom(c)
	if !ok {
		return h.responder.handleServiceError(c, application.ErrUnauthorized)
	}

	account, err := h.accounts.GetAccount(c.Request().Context(), principal, c.Param("id"))
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toAccountPayload(account))
}

// List returns all accounts. Admin only.
func (h *AccountHandler) List(c echo.Context) error {
	principal, ok := principalFrom(c)
	if !ok {
		return h.responder.handleServiceError(c, application.ErrUnauthorized)
	}

	accounts, err := h.accounts.ListAccounts(c.Request().Context(), principal)
	if err != nil {
		return h.responder.handleServiceError(c, err)
	}

	payloads := make([]accountPayload, 0, len(accounts))
	for _, account := range accounts {
		payloads = append(payloads, toAccountPayload(account))
	}
	return c.JSON(http.StatusOK, accountsResponse{Accounts: payloads})
}
