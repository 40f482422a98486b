package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger checks one backing dependency.
type Pinger func(ctx context.Context) error

// Health reports liveness plus the state of each named dependency. Any
// failing dependency turns the response into a 503.
func Health(checks map[string]Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				deps[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "up"
		}
		msg := "ok"
		if status != http.StatusOK {
			msg = "degraded"
		}
		return c.JSON(status, Envelope{Code: status, Message: msg, Data: deps})
	}
}
