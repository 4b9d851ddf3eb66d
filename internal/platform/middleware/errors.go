package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorClassifier maps a domain error onto a status and response body. ok is
// false for errors the classifier does not recognise.
type ErrorClassifier func(err error) (status int, body interface{}, ok bool)

// ErrorHandler renders errors as JSON. Errors classify recognises use its
// mapping. Anything else falls back to the echo.HTTPError code, or to a 500
// whose detail is only logged.
func ErrorHandler(logger zerolog.Logger, classify ErrorClassifier) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := resolve(classify, err)

		if status >= 500 {
			logger.Error().Err(err).
				Str("request_id", requestID(c)).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Str("request_id", requestID(c)).Msg("write error response")
		}
	}
}

func resolve(classify ErrorClassifier, err error) (int, interface{}) {
	if classify != nil {
		if status, body, ok := classify(err); ok {
			return status, body
		}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		switch m := he.Message.(type) {
		case string:
			if m != "" {
				msg = m
			}
		case nil:
		default:
			msg = fmt.Sprint(m)
		}
		return he.Code, map[string]string{"error": msg}
	}
	return http.StatusInternalServerError, map[string]string{"error": "internal server error"}
}

// Classifiers tries each classifier in order.
func Classifiers(cs ...ErrorClassifier) ErrorClassifier {
	return func(err error) (int, interface{}, bool) {
		for _, c := range cs {
			if status, body, ok := c(err); ok {
				return status, body, true
			}
		}
		return 0, nil, false
	}
}
