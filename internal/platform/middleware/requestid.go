package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestIDHeader is the header carrying the request correlation id.
const RequestIDHeader = "X-Request-ID"

// RequestIDKey is the echo context key the middleware stores the id under.
const RequestIDKey = "request_id"

// RequestID returns middleware that ensures every request carries a
// correlation id. An incoming X-Request-ID is preserved; otherwise a new
// uuid is generated. The id is stored on the context under RequestIDKey and
// set on the response before the handler runs, so error responses carry it
// too.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}

			c.Set(RequestIDKey, rid)
			c.Response().Header().Set(RequestIDHeader, rid)

			return next(c)
		}
	}
}
