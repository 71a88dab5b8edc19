package doorsession

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// ErrBackendUnavailable is returned when the server could not classify the
// scan. The door must not treat it as an invalid ticket.
var ErrBackendUnavailable = errors.New("ticket service unavailable")

// Client calls POST /v1/scan for one event with a device access token.
type Client struct {
	base    string
	eventID uint64
	token   string
	http    *http.Client
}

func NewClient(baseURL string, eventID uint64, accessToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		base:    strings.TrimRight(baseURL, "/"),
		eventID: eventID,
		token:   accessToken,
		http:    &http.Client{Timeout: timeout},
	}
}

type scanRequest struct {
	ScanCode string `json:"scan_code"`
	EventID  uint64 `json:"event_id"`
}

type scanResponse struct {
	Result       model.ScanResult `json:"result"`
	TicketID     string           `json:"ticket_id"`
	AttendeeName string           `json:"attendee_name"`
	IDDocument   string           `json:"id_document"`
	CategoryName string           `json:"category_name"`
	UsedAt       *time.Time       `json:"used_at"`
	Error        string           `json:"error"`
	Message      string           `json:"message"`
}

// Scan implements Scanner. Transport errors and 5xx answers wrap
// ErrBackendUnavailable; 4xx answers (bad token, wrong role) are returned
// as plain errors.
func (c *Client) Scan(ctx context.Context, code string) (model.ScanOutcome, error) {
	body, err := json.Marshal(scanRequest{ScanCode: code, EventID: c.eventID})
	if err != nil {
		return model.ScanOutcome{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/scan", bytes.NewReader(body))
	if err != nil {
		return model.ScanOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return model.ScanOutcome{}, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	var sr scanResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&sr)
	switch {
	case resp.StatusCode >= 500:
		return model.ScanOutcome{}, fmt.Errorf("%w: status %d %s", ErrBackendUnavailable, resp.StatusCode, sr.Message)
	case resp.StatusCode != http.StatusOK:
		return model.ScanOutcome{}, fmt.Errorf("scan rejected: status %d %s: %s", resp.StatusCode, sr.Error, sr.Message)
	case decodeErr != nil:
		return model.ScanOutcome{}, fmt.Errorf("%w: decode response: %w", ErrBackendUnavailable, decodeErr)
	}
	return model.ScanOutcome{
		Result:       sr.Result,
		TicketID:     sr.TicketID,
		AttendeeName: sr.AttendeeName,
		IDDocument:   sr.IDDocument,
		CategoryName: sr.CategoryName,
		UsedAt:       sr.UsedAt,
	}, nil
}
