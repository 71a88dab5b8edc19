package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// CatalogRepo reads events, sales lots and ticket categories. Counter
// columns are read as-is; they are only ever written by LedgerRepo.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo constructs a CatalogRepo with the given DB handle.
func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

const eventColumns = `id, name, starts_at, ends_at, capacity, units_sold, members_only, created_at`

const lotColumns = `l.id, l.event_id, l.name, l.starts_at, l.ends_at, l.active, l.max_units, l.units_sold`

const categoryColumns = `c.id, c.lot_id, c.name, c.price, c.member_price, c.total_units, c.units_sold, c.max_per_purchase, c.active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.Event, error) {
	var (
		e        model.Event
		endsAt   sql.NullTime
		capacity sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.Name, &e.StartsAt, &endsAt, &capacity, &e.UnitsSold, &e.MembersOnly, &e.CreatedAt); err != nil {
		return model.Event{}, err
	}
	if endsAt.Valid {
		t := endsAt.Time
		e.EndsAt = &t
	}
	e.Capacity = nullIntPtr(capacity)
	return e, nil
}

// scanLotAndCategory reads a joined lot+category row; the lot columns come
// first.
func scanLotAndCategory(row rowScanner) (model.SalesLot, model.TicketCategory, error) {
	var (
		l        model.SalesLot
		c        model.TicketCategory
		maxUnits sql.NullInt64
	)
	err := row.Scan(
		&l.ID, &l.EventID, &l.Name, &l.StartsAt, &l.EndsAt, &l.Active, &maxUnits, &l.UnitsSold,
		&c.ID, &c.LotID, &c.Name, &c.Price, &c.MemberPrice, &c.TotalUnits, &c.UnitsSold, &c.MaxPerPurchase, &c.Active,
	)
	if err != nil {
		return l, c, err
	}
	l.MaxUnits = nullIntPtr(maxUnits)
	return l, c, nil
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// EventByID returns ErrEventNotFound when no row matches.
func (r *CatalogRepo) EventByID(ctx context.Context, id uint64) (model.Event, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrEventNotFound
	}
	return e, err
}

// CategoriesWithLots loads the requested categories together with their
// lots. Unknown ids are simply absent from the result.
func (r *CatalogRepo) CategoriesWithLots(ctx context.Context, ids []uint64) (map[uint64]model.CategoryInLot, error) {
	out := make(map[uint64]model.CategoryInLot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `SELECT ` + lotColumns + `, ` + categoryColumns + `
	      FROM ticket_categories c
	      JOIN sales_lots l ON l.id = c.lot_id
	      WHERE c.id IN (` + placeholders(len(ids)) + `)`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		l, c, err := scanLotAndCategory(rows)
		if err != nil {
			return nil, err
		}
		out[c.ID] = model.CategoryInLot{Category: c, Lot: l}
	}
	return out, rows.Err()
}

// CategoryByID returns a single category with its lot, or
// ErrCategoryNotFound.
func (r *CatalogRepo) CategoryByID(ctx context.Context, id uint64) (model.CategoryInLot, error) {
	found, err := r.CategoriesWithLots(ctx, []uint64{id})
	if err != nil {
		return model.CategoryInLot{}, err
	}
	cl, ok := found[id]
	if !ok {
		return model.CategoryInLot{}, ErrCategoryNotFound
	}
	return cl, nil
}

// LotsByEvent returns the event's lots ordered by start time, and the
// categories of those lots keyed by lot id.
func (r *CatalogRepo) LotsByEvent(ctx context.Context, eventID uint64) ([]model.SalesLot, map[uint64][]model.TicketCategory, error) {
	q := `SELECT ` + lotColumns + `, ` + categoryColumns + `
	      FROM sales_lots l
	      JOIN ticket_categories c ON c.lot_id = l.id
	      WHERE l.event_id = ?
	      ORDER BY l.starts_at, l.id, c.id`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var lots []model.SalesLot
	cats := make(map[uint64][]model.TicketCategory)
	for rows.Next() {
		l, c, err := scanLotAndCategory(rows)
		if err != nil {
			return nil, nil, err
		}
		if _, seen := cats[l.ID]; !seen {
			lots = append(lots, l)
		}
		cats[l.ID] = append(cats[l.ID], c)
	}
	return lots, cats, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
