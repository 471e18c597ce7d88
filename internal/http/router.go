package http

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/example/campus-booking/internal/application"
)

// RouterConfig wires the HTTP surface's dependencies.
type RouterConfig struct {
	Auth      *application.AuthService
	Scheduler *application.SchedulerService
	Resources *application.ResourceService
	Accounts  *application.AccountService
	Logger    *slog.Logger
}

// NewRouter builds the Echo instance with all routes registered.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(RequestLogger(cfg.Logger))

	responder := newResponder(cfg.Logger)
	authHandler := NewAuthHandler(cfg.Auth, responder)
	bookingHandler := NewBookingHandler(cfg.Scheduler, responder)
	availabilityHandler := NewAvailabilityHandler(cfg.Scheduler, responder)
	resourceHandler := NewResourceHandler(cfg.Resources, responder)
	accountHandler := NewAccountHandler(cfg.Accounts, responder)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.POST("/login", authHandler.Login)

	authed := e.Group("", RequireAuth(cfg.Auth))

	authed.POST("/bookings", bookingHandler.Create)
	authed.GET("/bookings", bookingHandler.List)
	authed.GET("/bookings/calendar.ics", bookingHandler.Calendar)
	authed.GET("/bookings/:id", bookingHandler.Get)
	authed.POST("/bookings/:id/cancel", bookingHandler.Cancel)
	authed.POST("/bookings/:id/extend", bookingHandler.Extend)

	authed.GET("/availability", availabilityHandler.FreeSlots)
	authed.GET("/availability/next", availabilityHandler.NextFree)
	authed.GET("/search", availabilityHandler.Search)

	authed.GET("/resources", resourceHandler.List)
	authed.GET("/resources/:id", resourceHandler.Get)
	authed.POST("/resources", resourceHandler.Create)
	authed.PUT("/resources/:id", resourceHandler.Update)
	authed.POST("/resources/:id/retire", resourceHandler.Retire)

	authed.POST("/accounts", accountHandler.Create)
	authed.GET("/accounts", accountHandler.List)
	authed.GET("/accounts/:id", accountHandler.Get)
	authed.PUT("/accounts/:id", accountHandler.Update)

	return e
}
