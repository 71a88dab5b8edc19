package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// ScanHandler serves door devices.
type ScanHandler struct {
	svc *service.ValidationService
}

func NewScanHandler(svc *service.ValidationService) *ScanHandler {
	return &ScanHandler{svc: svc}
}

type scanReq struct {
	ScanCode string `json:"scan_code"`
	EventID  uint64 `json:"event_id" validate:"required"`
}

// Scan handles POST /v1/scan. Every classified scan is a 200 with the
// result in the body; only an unreachable ledger is an error, and it is a
// 503 so the device never shows it as "not found".
func (h *ScanHandler) Scan(c echo.Context) error {
	var body scanReq
	if ok, err := bindValid(c, &body); !ok {
		return err
	}
	out, err := h.svc.Scan(c.Request().Context(), model.ScanRequest{ScanCode: body.ScanCode, EventID: body.EventID})
	if err != nil {
		return failService(c, err, http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusOK, toScanResp(out))
}
