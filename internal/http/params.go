package http

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/campus-booking/internal/interval"
)

// parseTimeParam reads an RFC 3339 query parameter. A missing parameter
// yields the zero time without error.
func parseTimeParam(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

// windowFromQuery builds the availability window from from/to query
// parameters. Field errors are collected per parameter name.
func windowFromQuery(c echo.Context) (interval.Interval, map[string]string) {
	fieldErrors := map[string]string{}

	from, err := parseTimeParam(c, "from")
	if err != nil {
		fieldErrors["from"] = "must be an RFC 3339 timestamp"
	} else if from.IsZero() {
		fieldErrors["from"] = "from is required"
	}

	to, err := parseTimeParam(c, "to")
	if err != nil {
		fieldErrors["to"] = "must be an RFC 3339 timestamp"
	} else if to.IsZero() {
		fieldErrors["to"] = "to is required"
	}

	if len(fieldErrors) > 0 {
		return interval.Interval{}, fieldErrors
	}

	window, err := interval.New(from, to)
	if err != nil {
		return interval.Interval{}, map[string]string{"to": "to must be after from"}
	}
	return window, nil
}
