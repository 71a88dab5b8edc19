package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// TicketRepo reads tickets and performs the single-use transition.
type TicketRepo struct {
	db *sql.DB
}

func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// ticketColumns expects tickets aliased as t and ticket_categories as c.
const ticketColumns = `t.id, t.order_id, t.event_id, t.lot_id, t.category_id, c.name, t.account_id,
	t.attendee_name, t.attendee_document, t.attendee_email, t.attendee_phone,
	t.scan_code, t.validation_token, t.state, t.price, t.purchased_at, t.used_at, t.notes`

func scanTicket(row rowScanner) (model.Ticket, error) {
	var (
		t      model.Ticket
		phone  sql.NullString
		usedAt sql.NullTime
		notes  sql.NullString
		state  string
	)
	err := row.Scan(&t.ID, &t.OrderID, &t.EventID, &t.LotID, &t.CategoryID, &t.CategoryName, &t.AccountID,
		&t.AttendeeName, &t.AttendeeDocument, &t.AttendeeEmail, &phone,
		&t.ScanCode, &t.ValidationToken, &state, &t.Price, &t.PurchasedAt, &usedAt, &notes)
	if err != nil {
		return model.Ticket{}, err
	}
	t.State = model.TicketState(state)
	if phone.Valid {
		p := phone.String
		t.AttendeePhone = &p
	}
	if usedAt.Valid {
		u := usedAt.Time
		t.UsedAt = &u
	}
	t.Notes = notes.String
	return t, nil
}

func (r *TicketRepo) one(ctx context.Context, where string, arg any) (model.Ticket, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets t
		JOIN ticket_categories c ON c.id = t.category_id
		WHERE `+where+` LIMIT 1`, arg)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Ticket{}, ErrTicketNotFound
	}
	return t, err
}

// TicketByScanCode looks a ticket up by its printed code.
func (r *TicketRepo) TicketByScanCode(ctx context.Context, code string) (model.Ticket, error) {
	return r.one(ctx, `t.scan_code = ?`, code)
}

// TicketByID looks a ticket up by primary key.
func (r *TicketRepo) TicketByID(ctx context.Context, id string) (model.Ticket, error) {
	return r.one(ctx, `t.id = ?`, id)
}

// TicketsByAccount lists an account's tickets, newest first.
func (r *TicketRepo) TicketsByAccount(ctx context.Context, accountID uint64) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ticketColumns+` FROM tickets t
		JOIN ticket_categories c ON c.id = t.category_id
		WHERE t.account_id = ?
		ORDER BY t.purchased_at DESC, t.id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkUsed moves a valid ticket to used at the given instant. The UPDATE
// only matches while the row is still valid, so of any number of
// concurrent callers exactly one gets true.
func (r *TicketRepo) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET state = ?, used_at = ? WHERE id = ? AND state = ?`,
		string(model.TicketUsed), at, id, string(model.TicketValid))
	if err != nil {
		return false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
