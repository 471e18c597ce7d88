package http

import (
	"github.com/labstack/echo/v4"

	"github.com/example/campus-booking/internal/application"
)

const principalContextKey = "principal"

// setPrincipal stores the authenticated principal on the Echo context.
func setPrincipal(c echo.Context, principal application.Principal) {
	c.Set(principalContextKey, principal)
}

// principalFrom extracts the authenticated principal from the Echo context.
func principalFrom(c echo.Context) (application.Principal, bool) {
	principal, ok := c.Get(principalContextKey).(application.Principal)
	return principal, ok
}
