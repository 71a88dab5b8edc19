package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys written by JWTAuth.
const (
	ctxAccountID = "account_id"
	ctxRole      = "role"
)

// AccountID returns the authenticated account, if any.
func AccountID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxAccountID).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated role or "".
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// rateSubject identifies the caller for rate limiting: the account id when
// authenticated, "anon" otherwise.
func rateSubject(c echo.Context) string {
	if id, ok := AccountID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
