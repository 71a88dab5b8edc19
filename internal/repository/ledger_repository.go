package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// LedgerRepo owns every write to the sold-unit counters. A counter only
// moves inside a transaction that also inserts or cancels the tickets it
// accounts for, so units_sold always equals the number of non-cancelled
// tickets below it.
//
// Rows are locked in a fixed order (event, lots by id, categories by id) so
// two commits touching overlapping rows queue rather than deadlock.
type LedgerRepo struct {
	db *sql.DB
}

// NewLedgerRepo constructs a LedgerRepo with the given DB handle.
func NewLedgerRepo(db *sql.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// CommitSale applies all counter increments of the sale and inserts its
// order and tickets in one transaction. Each increment is a conditional
// UPDATE; if any of them matches no row the transaction is rolled back and
// a *CapacityError names the exhausted scope. Deadlocks, lock timeouts and
// duplicate scan codes surface as ErrConflict.
func (r *LedgerRepo) CommitSale(ctx context.Context, sale model.Sale) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = incrementEvent(ctx, tx, sale.EventID, sale.TotalQuantity()); err != nil {
		return err
	}
	perLot := sale.LotQuantities()
	for _, id := range sortedKeys(perLot) {
		if err = incrementLot(ctx, tx, id, perLot[id]); err != nil {
			return err
		}
	}
	perCategory := make(map[uint64]int, len(sale.Lines))
	for _, l := range sale.Lines {
		perCategory[l.CategoryID] += l.Quantity
	}
	for _, id := range sortedKeys(perCategory) {
		if err = incrementCategory(ctx, tx, id, perCategory[id]); err != nil {
			return err
		}
	}

	o := sale.Order
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, account_id, event_id, total, currency, status, created_at) VALUES (?,?,?,?,?,?,?)`,
		o.ID, o.AccountID, o.EventID, o.Total, o.Currency, string(o.Status), o.CreatedAt); err != nil {
		return classify(err)
	}
	if err = insertTickets(ctx, tx, sale.Tickets); err != nil {
		return classify(err)
	}
	if err = tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func incrementEvent(ctx context.Context, tx *sql.Tx, id uint64, n int) error {
	const q = `UPDATE events SET units_sold = units_sold + ?
	           WHERE id = ? AND (capacity IS NULL OR units_sold + ? <= capacity)`
	return conditional(ctx, tx, q, ScopeEvent, id, n)
}

func incrementLot(ctx context.Context, tx *sql.Tx, id uint64, n int) error {
	const q = `UPDATE sales_lots SET units_sold = units_sold + ?
	           WHERE id = ? AND (max_units IS NULL OR units_sold + ? <= max_units)`
	return conditional(ctx, tx, q, ScopeLot, id, n)
}

func incrementCategory(ctx context.Context, tx *sql.Tx, id uint64, n int) error {
	const q = `UPDATE ticket_categories SET units_sold = units_sold + ?
	           WHERE id = ? AND units_sold + ? <= total_units`
	return conditional(ctx, tx, q, ScopeCategory, id, n)
}

func conditional(ctx context.Context, tx *sql.Tx, q, scope string, id uint64, n int) error {
	res, err := tx.ExecContext(ctx, q, n, id, n)
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &CapacityError{Scope: scope, ID: id}
	}
	return nil
}

const ticketInsertColumns = `(id, order_id, event_id, lot_id, category_id, account_id, attendee_name, attendee_document,
	attendee_email, attendee_phone, scan_code, validation_token, state, price, purchased_at, notes)`

func insertTickets(ctx context.Context, tx *sql.Tx, tickets []model.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	const rowPlaceholder = `(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	var sb strings.Builder
	sb.WriteString(`INSERT INTO tickets ` + ticketInsertColumns + ` VALUES `)
	args := make([]any, 0, len(tickets)*16)
	for i, t := range tickets {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(rowPlaceholder)
		args = append(args,
			t.ID, t.OrderID, t.EventID, t.LotID, t.CategoryID, t.AccountID, t.AttendeeName, t.AttendeeDocument,
			t.AttendeeEmail, t.AttendeePhone, t.ScanCode, t.ValidationToken, string(t.State), t.Price, t.PurchasedAt, t.Notes)
	}
	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}

// ConfirmOrder promotes the order's pending tickets to valid and marks the
// order paid. It returns the number of tickets promoted; a second delivery
// of the same confirmation promotes nothing.
func (r *LedgerRepo) ConfirmOrder(ctx context.Context, orderID string) (n int, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = lockOrder(ctx, tx, orderID); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET state = ? WHERE order_id = ? AND state = ?`,
		string(model.TicketValid), orderID, string(model.TicketPending))
	if err != nil {
		return 0, classify(err)
	}
	promoted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ? AND status = ?`,
		string(model.OrderPaid), orderID, string(model.OrderAwaitingPayment)); err != nil {
		return 0, classify(err)
	}
	if err = tx.Commit(); err != nil {
		return 0, classify(err)
	}
	return int(promoted), nil
}

// CancelOrder cancels the order's pending tickets and gives their units
// back. Tickets already valid or used are left alone. It returns the number
// of tickets cancelled.
func (r *LedgerRepo) CancelOrder(ctx context.Context, orderID string) (n int, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = lockOrder(ctx, tx, orderID); err != nil {
		return 0, err
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT event_id, lot_id, category_id FROM tickets WHERE order_id = ? AND state = ? FOR UPDATE`,
		orderID, string(model.TicketPending))
	if err != nil {
		return 0, classify(err)
	}
	var held []model.Ticket
	for rows.Next() {
		var t model.Ticket
		if err = rows.Scan(&t.EventID, &t.LotID, &t.CategoryID); err != nil {
			rows.Close()
			return 0, err
		}
		held = append(held, t)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return 0, err
	}

	if len(held) > 0 {
		if _, err = tx.ExecContext(ctx,
			`UPDATE tickets SET state = ? WHERE order_id = ? AND state = ?`,
			string(model.TicketCancelled), orderID, string(model.TicketPending)); err != nil {
			return 0, classify(err)
		}
		if err = release(ctx, tx, held); err != nil {
			return 0, err
		}
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ? AND status = ?`,
		string(model.OrderCancelled), orderID, string(model.OrderAwaitingPayment)); err != nil {
		return 0, classify(err)
	}
	if err = tx.Commit(); err != nil {
		return 0, classify(err)
	}
	return len(held), nil
}

// CancelTicket cancels one ticket that has not been used and gives its unit
// back. Cancelling an already cancelled ticket is a no-op reported with
// changed=false. A used ticket yields ErrTicketUsed.
func (r *LedgerRepo) CancelTicket(ctx context.Context, id string) (t model.Ticket, changed bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return t, false, classify(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets t
		JOIN ticket_categories c ON c.id = t.category_id
		WHERE t.id = ? FOR UPDATE`, id)
	t, err = scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, false, ErrTicketNotFound
	}
	if err != nil {
		return t, false, classify(err)
	}
	switch t.State {
	case model.TicketUsed:
		err = ErrTicketUsed
		return t, false, err
	case model.TicketCancelled:
		return t, false, tx.Commit()
	}

	if _, err = tx.ExecContext(ctx, `UPDATE tickets SET state = ? WHERE id = ?`, string(model.TicketCancelled), id); err != nil {
		return t, false, classify(err)
	}
	if err = release(ctx, tx, []model.Ticket{t}); err != nil {
		return t, false, err
	}
	if err = tx.Commit(); err != nil {
		return t, false, classify(err)
	}
	t.State = model.TicketCancelled
	return t, true, nil
}

func lockOrder(ctx context.Context, tx *sql.Tx, orderID string) (model.OrderStatus, error) {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ? FOR UPDATE`, orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", classify(err)
	}
	return model.OrderStatus(status), nil
}

// release decrements the counters for the given tickets in lock order.
func release(ctx context.Context, tx *sql.Tx, tickets []model.Ticket) error {
	events := map[uint64]int{}
	lots := map[uint64]int{}
	categories := map[uint64]int{}
	for _, t := range tickets {
		events[t.EventID]++
		lots[t.LotID]++
		categories[t.CategoryID]++
	}
	steps := []struct {
		table  string
		counts map[uint64]int
	}{
		{"events", events},
		{"sales_lots", lots},
		{"ticket_categories", categories},
	}
	for _, s := range steps {
		q := `UPDATE ` + s.table + ` SET units_sold = units_sold - ? WHERE id = ? AND units_sold >= ?`
		for _, id := range sortedKeys(s.counts) {
			n := s.counts[id]
			if _, err := tx.ExecContext(ctx, q, n, id, n); err != nil {
				return classify(err)
			}
		}
	}
	return nil
}

func sortedKeys(m map[uint64]int) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
