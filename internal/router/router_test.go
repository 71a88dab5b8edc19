package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository/memory"
	"github.com/iliyamo/event-ticketing/internal/service"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

const jwtSecret = "router-secret"

var now = time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)

type app struct {
	e     *echo.Echo
	store *memory.Store
	event uint64
	free  uint64
	paid  uint64
}

func newApp(t *testing.T) *app {
	t.Helper()
	s := memory.New()
	a := &app{e: echo.New(), store: s}
	a.event = s.AddEvent(model.Event{Name: "Harbour Nights", StartsAt: now.Add(72 * time.Hour)})
	lot := s.AddLot(model.SalesLot{EventID: a.event, Name: "General", Active: true,
		StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)})
	a.free = s.AddCategory(model.TicketCategory{LotID: lot, Name: "Guest list", Price: decimal.Zero,
		TotalUnits: 2, MaxPerPurchase: 2, Active: true})
	a.paid = s.AddCategory(model.TicketCategory{LotID: lot, Name: "Standing", Price: decimal.NewFromInt(35),
		TotalUnits: 10, MaxPerPurchase: 4, Active: true})

	clock := func() time.Time { return now }
	engine := config.EngineConfig{CommitMaxAttempts: 3, MembershipRoles: []string{model.RoleMember},
		PaymentCurrency: "EUR", PaymentWindow: 10 * time.Minute}
	log := zerolog.Nop()

	Register(a.e, Handlers{
		Auth:         handler.NewAuthHandler(config.Config{JWTSecret: jwtSecret}, nil, nil, log),
		Purchase:     handler.NewPurchaseHandler(service.NewReservationService(s, s, nil, engine, log).WithClock(clock)),
		Scan:         handler.NewScanHandler(service.NewValidationService(s, log).WithClock(clock)),
		Availability: handler.NewAvailabilityHandler(service.NewAvailabilityService(s).WithClock(clock)),
		Tickets:      handler.NewTicketHandler(service.NewTicketService(s, s, log), service.NewPaymentService(s, log)),
	}, Limiters{}, jwtSecret)
	return a
}

func (a *app) serve(t *testing.T, method, path string, id uint64, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if role != "" {
		tok, err := utils.NewAccessToken(jwtSecret, id, role, time.Hour, time.Now())
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *app) do(t *testing.T, method, path string, id uint64, role, body string) (int, map[string]any) {
	t.Helper()
	rec := a.serve(t, method, path, id, role, body)
	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func purchaseBody(category uint64, qty int) string {
	var att []string
	for i := 0; i < qty; i++ {
		n := strconv.Itoa(i + 1)
		att = append(att, `{"name":"Guest `+n+`","id_document":"P`+n+`","email":"g`+n+`@example.com"}`)
	}
	return `{"selections":[{"category_id":` + strconv.FormatUint(category, 10) + `,"quantity":` + strconv.Itoa(qty) +
		`,"attendees":[` + strings.Join(att, ",") + `]}]}`
}

func (a *app) purchasePath() string {
	return "/v1/events/" + strconv.FormatUint(a.event, 10) + "/purchases"
}

func (a *app) scanBody(code string) string {
	return `{"scan_code":"` + code + `","event_id":` + strconv.FormatUint(a.event, 10) + `}`
}

func decodeMap(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func firstTicket(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	list, ok := body["tickets"].([]any)
	require.True(t, ok, "tickets missing in %v", body)
	require.NotEmpty(t, list)
	return list[0].(map[string]any)
}

func TestPurchaseThenScanAtTheDoor(t *testing.T) {
	a := newApp(t)

	code, body := a.do(t, http.MethodPost, a.purchasePath(), 5, model.RoleBuyer, purchaseBody(a.free, 1))
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, false, body["payment_required"])
	tk := firstTicket(t, body)
	assert.Equal(t, "valid", tk["state"])
	scanCode := tk["scan_code"].(string)
	assert.NotContains(t, tk, "validation_token")

	rec := a.serve(t, http.MethodPost, a.purchasePath(), 6, model.RoleBuyer, purchaseBody(a.free, 1))
	require.Equal(t, http.StatusCreated, rec.Code)
	stored, err := a.store.TicketByScanCode(context.Background(), firstTicket(t, decodeMap(t, rec.Body.Bytes()))["scan_code"].(string))
	require.NoError(t, err)
	require.NotEmpty(t, stored.ValidationToken)
	assert.NotContains(t, rec.Body.String(), "validation_token")
	assert.NotContains(t, rec.Body.String(), stored.ValidationToken)

	code, body = a.do(t, http.MethodPost, "/v1/scan", 9, model.RoleBuyer, a.scanBody(scanCode))
	assert.Equal(t, http.StatusForbidden, code)

	code, body = a.do(t, http.MethodPost, "/v1/scan", 9, model.RoleStaff, a.scanBody(scanCode))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "admitted", body["result"])
	assert.Equal(t, "Guest 1", body["attendee_name"])
	assert.Equal(t, "P1", body["id_document"])

	code, body = a.do(t, http.MethodPost, "/v1/scan", 9, model.RoleStaff, a.scanBody(scanCode))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "already_used", body["result"])
	assert.NotEmpty(t, body["used_at"])

	code, body = a.do(t, http.MethodPost, "/v1/scan", 9, model.RoleStaff, a.scanBody("EV1-00000-00000"))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "not_found", body["result"])
}

func TestKioskScansLikeStaff(t *testing.T) {
	a := newApp(t)
	_, body := a.do(t, http.MethodPost, a.purchasePath(), 5, model.RoleBuyer, purchaseBody(a.free, 1))
	scanCode := firstTicket(t, body)["scan_code"].(string)

	code, body := a.do(t, http.MethodPost, "/v1/scan", 20, model.RoleKiosk, a.scanBody(scanCode))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "admitted", body["result"])
}

func TestPurchaseRejectionsMapToStatus(t *testing.T) {
	a := newApp(t)

	code, body := a.do(t, http.MethodPost, a.purchasePath(), 5, model.RoleBuyer, purchaseBody(a.free, 2))
	require.Equal(t, http.StatusCreated, code, body)

	code, body = a.do(t, http.MethodPost, a.purchasePath(), 6, model.RoleBuyer, purchaseBody(a.free, 1))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "InsufficientInventory", body["error"])

	code, body = a.do(t, http.MethodPost, "/v1/events/999/purchases", 6, model.RoleBuyer, purchaseBody(a.paid, 1))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "EventNotFound", body["error"])

	code, body = a.do(t, http.MethodPost, a.purchasePath(), 6, model.RoleBuyer, purchaseBody(a.paid, 5))
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "PurchaseLimitExceeded", body["error"])

	code, body = a.do(t, http.MethodPost, a.purchasePath(), 6, model.RoleBuyer, `{"selections":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "invalid_request", body["error"])

	code, _ = a.do(t, http.MethodPost, a.purchasePath(), 0, "", purchaseBody(a.paid, 1))
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAvailability(t *testing.T) {
	a := newApp(t)
	_, _ = a.do(t, http.MethodPost, a.purchasePath(), 5, model.RoleBuyer, purchaseBody(a.paid, 3))

	code, body := a.do(t, http.MethodGet, "/v1/categories/"+strconv.FormatUint(a.paid, 10)+"/availability", 0, "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(7), body["remaining"])
	assert.Equal(t, float64(3), body["sold"])

	code, body = a.do(t, http.MethodGet, "/v1/events/"+strconv.FormatUint(a.event, 10)+"/availability", 0, "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(9), body["remaining"])

	code, _ = a.do(t, http.MethodGet, "/v1/events/404/availability", 0, "", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = a.do(t, http.MethodGet, "/v1/events/abc/availability", 0, "", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPaymentAndCancellationByAdmin(t *testing.T) {
	a := newApp(t)

	code, body := a.do(t, http.MethodPost, a.purchasePath(), 5, model.RoleBuyer, purchaseBody(a.paid, 2))
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, true, body["payment_required"])
	payment := body["payment"].(map[string]any)
	assert.Equal(t, "70", payment["amount"])
	assert.Equal(t, "EUR", payment["currency"])
	orderID := body["order"].(map[string]any)["id"].(string)
	tk := firstTicket(t, body)
	assert.Equal(t, "pending", tk["state"])

	code, body = a.do(t, http.MethodPost, "/v1/scan", 9, model.RoleStaff, a.scanBody(tk["scan_code"].(string)))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "not_yet_valid", body["result"])

	paymentPath := "/v1/admin/orders/" + orderID + "/payment"
	code, _ = a.do(t, http.MethodPost, paymentPath, 5, model.RoleBuyer, `{"status":"paid"}`)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = a.do(t, http.MethodPost, paymentPath, 1, model.RoleAdmin, `{"status":"refunded"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	code, _ = a.do(t, http.MethodPost, "/v1/admin/orders/nope/payment", 1, model.RoleAdmin, `{"status":"paid"}`)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = a.do(t, http.MethodPost, paymentPath, 1, model.RoleAdmin, `{"status":"paid"}`)
	require.Equal(t, http.StatusOK, code)

	code, body = a.do(t, http.MethodGet, "/v1/my-tickets", 5, model.RoleBuyer, "")
	require.Equal(t, http.StatusOK, code)
	mine := body["tickets"].([]any)
	require.Len(t, mine, 2)
	for _, m := range mine {
		ticket := m.(map[string]any)
		assert.Equal(t, "valid", ticket["state"])
		assert.NotContains(t, ticket, "validation_token")
	}

	cancelPath := "/v1/admin/tickets/" + tk["id"].(string) + "/cancel"
	code, body = a.do(t, http.MethodPost, cancelPath, 1, model.RoleAdmin, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cancelled", body["state"])

	code, body = a.do(t, http.MethodGet, "/v1/categories/"+strconv.FormatUint(a.paid, 10)+"/availability", 0, "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(9), body["remaining"])

	code, _ = a.do(t, http.MethodPost, "/v1/admin/tickets/missing/cancel", 1, model.RoleAdmin, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t)

	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	a.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
