package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mackenziemax/userhub/internal/apperror"
)

// paramKeyPrefix namespaces parsed path parameters in the Echo context.
const paramKeyPrefix = "param_int:"

// PositiveIntParam returns middleware that rejects the request with 400
// unless the named path parameter is a positive integer. The parsed value
// is available to handlers through IntParam.
func PositiveIntParam(name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			n, err := strconv.ParseInt(c.Param(name), 10, 64)
			if err != nil || n <= 0 {
				return apperror.NewBadRequest("invalid " + name)
			}
			c.Set(paramKeyPrefix+name, n)
			return next(c)
		}
	}
}

// IntParam returns the value stored by PositiveIntParam, or 0 if the
// middleware did not run for this route.
func IntParam(c echo.Context, name string) int64 {
	n, _ := c.Get(paramKeyPrefix + name).(int64)
	return n
}
