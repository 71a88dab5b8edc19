package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/service"
)

// fail writes the uniform error body.
func fail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": code, "message": msg})
}

// rejectionStatus maps a purchase rejection to its HTTP status.
func rejectionStatus(code service.RejectionCode) int {
	switch code {
	case service.EventNotFound:
		return http.StatusNotFound
	case service.MembershipRequired:
		return http.StatusForbidden
	case service.EventAlreadyOccurred, service.LotClosed, service.CategoryInactive, service.InsufficientInventory:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// failService writes the response for an error coming out of the service
// layer. unavailableStatus is used for ErrBackendUnavailable.
func failService(c echo.Context, err error, unavailableStatus int) error {
	if rej, ok := service.AsRejection(err); ok {
		body := echo.Map{"error": string(rej.Code), "message": rej.Message}
		if rej.Subject != "" {
			body["subject"] = rej.Subject
		}
		return c.JSON(rejectionStatus(rej.Code), body)
	}
	switch {
	case errors.Is(err, service.ErrNotFound):
		return fail(c, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, service.ErrTicketUsed):
		return fail(c, http.StatusConflict, "ticket_used", "ticket already used")
	case errors.Is(err, service.ErrUnknownOutcome):
		return fail(c, http.StatusUnprocessableEntity, "invalid_request", err.Error())
	case errors.Is(err, service.ErrBackendUnavailable):
		return fail(c, unavailableStatus, "backend_unavailable", "ticket ledger unavailable")
	}
	return fail(c, http.StatusInternalServerError, "internal", "internal error")
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// bindValid binds the body into dst and runs the echo validator. When ok is
// false the error response has already been written and err is what the
// handler should return.
func bindValid(c echo.Context, dst any) (ok bool, err error) {
	if err := c.Bind(dst); err != nil {
		return false, fail(c, http.StatusBadRequest, "invalid_body", "malformed request body")
	}
	if err := c.Validate(dst); err != nil {
		return false, fail(c, http.StatusUnprocessableEntity, "invalid_request", err.Error())
	}
	return true, nil
}
