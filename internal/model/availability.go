package model

// CategoryAvailability is the remaining inventory of one category.
type CategoryAvailability struct {
	CategoryID uint64
	LotID      uint64
	Name       string
	Active     bool
	Total      int
	Sold       int
	Remaining  int
}

// LotAvailability is the remaining inventory of one lot. Remaining is the
// number of units that can still be sold through the lot: the sum of its
// categories' remaining units clipped by the lot cap.
type LotAvailability struct {
	LotID      uint64
	Name       string
	Open       bool
	MaxUnits   *int
	Sold       int
	Remaining  int
	Categories []CategoryAvailability
}

// EventAvailability is the remaining inventory of an event across lots,
// clipped by the event capacity when set.
type EventAvailability struct {
	EventID   uint64
	Capacity  *int
	Sold      int
	Remaining int
	Lots      []LotAvailability
}

// NewCategoryAvailability projects a category row.
func NewCategoryAvailability(c TicketCategory) CategoryAvailability {
	return CategoryAvailability{
		CategoryID: c.ID,
		LotID:      c.LotID,
		Name:       c.Name,
		Active:     c.Active,
		Total:      c.TotalUnits,
		Sold:       c.UnitsSold,
		Remaining:  c.Remaining(),
	}
}

// BuildEventAvailability folds lots and their categories into an event
// availability. categories is keyed by lot id; lots with no categories
// contribute nothing.
func BuildEventAvailability(e Event, lots []SalesLot, categories map[uint64][]TicketCategory, open func(SalesLot) bool) EventAvailability {
	out := EventAvailability{EventID: e.ID, Capacity: e.Capacity, Sold: e.UnitsSold}
	total := 0
	for _, l := range lots {
		la := LotAvailability{LotID: l.ID, Name: l.Name, Open: open(l), MaxUnits: l.MaxUnits, Sold: l.UnitsSold}
		sum := 0
		for _, c := range categories[l.ID] {
			ca := NewCategoryAvailability(c)
			la.Categories = append(la.Categories, ca)
			if c.Active {
				sum += ca.Remaining
			}
		}
		if rem, capped := l.Remaining(); capped && rem < sum {
			sum = rem
		}
		la.Remaining = sum
		total += sum
		out.Lots = append(out.Lots, la)
	}
	if e.Capacity != nil {
		if rem := clampZero(*e.Capacity - e.UnitsSold); rem < total {
			total = rem
		}
	}
	out.Remaining = total
	return out
}
