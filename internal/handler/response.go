package handler

import (
	"errors"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/skyhub/auth-service/internal/apperr"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    any               `json:"data"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func ok(c echo.Context, message string, data any) error {
	return c.JSON(http.StatusOK, Envelope{Code: http.StatusOK, Message: message, Data: data})
}

// ErrorHandler renders errors returned by handlers and middleware as an
// Envelope. *apperr.Error picks the status and business code; echo errors
// keep their status; anything else is a 500 whose cause is only logged.
func ErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := Envelope{Code: status, Message: "internal server error"}

		var ae *apperr.Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ae):
			status = ae.Status()
			body = Envelope{Code: ae.Code(), Message: ae.Message, Errors: ae.Fields}
			if ae.Kind == apperr.KindInternal {
				log.WithError(err).WithField("path", c.Path()).Error("request failed")
				if ae.Err != nil {
					log.WithError(ae.Err).Debug("internal cause")
				}
			}
		case errors.As(err, &he):
			status = he.Code
			body = Envelope{Code: he.Code, Message: fmt.Sprint(he.Message)}
		default:
			log.WithError(err).WithField("path", c.Path()).Error("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

// validatable is a request DTO with ozzo rules.
type validatable interface {
	Validate() error
}

// bind decodes the JSON body into dto and runs its rules. Rule failures
// come back as BadRequest with per-field messages.
func bind(c echo.Context, dto validatable) error {
	if err := c.Bind(dto); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	err := dto.Validate()
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for k, v := range verrs {
			fields[k] = v.Error()
		}
		return apperr.Invalid("validation failed", fields)
	}
	return apperr.BadRequest(err.Error())
}
