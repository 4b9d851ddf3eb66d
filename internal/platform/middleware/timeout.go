package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// RequestTimeout puts a deadline on the request context. The handler runs
// on the request goroutine and its storage calls abort once the deadline
// passes; an error returned after that point is answered with 504.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	if timeout <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
		Timeout:      timeout,
		ErrorHandler: timedOut,
	})
}

func timedOut(err error, c echo.Context) error {
	expired := errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(c.Request().Context().Err(), context.DeadlineExceeded)
	if !expired || c.Response().Committed {
		return err
	}
	// No internal error: domain classifiers unwrap HTTPError and would
	// turn the wrapped storage fault back into a 500.
	return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
}
