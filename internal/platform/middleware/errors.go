package middleware

import (
	"github.com/labstack/echo/v4"
)

// rejection is the body written when a middleware refuses a request before
// it reaches a handler. Handlers use the same shape via echo's error handler.
type rejection struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func reject(c echo.Context, status int, kind, msg string) error {
	if c.Response().Committed {
		return nil
	}
	return c.JSON(status, rejection{Error: kind, Message: msg})
}
