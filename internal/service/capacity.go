package service

import (
	"context"
	"errors"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// ErrNotFound is returned by queries for an unknown event or category.
var ErrNotFound = errors.New("not found")

// AvailabilityService answers remaining-unit queries straight from the
// ledger rows. Nothing here is cached.
type AvailabilityService struct {
	catalog Catalog
	now     Clock
}

func NewAvailabilityService(catalog Catalog) *AvailabilityService {
	return &AvailabilityService{catalog: catalog, now: systemClock}
}

// WithClock replaces the time source used for the lot open flag.
func (s *AvailabilityService) WithClock(c Clock) *AvailabilityService {
	s.now = c
	return s
}

// Event returns the remaining units of an event, per lot and category.
func (s *AvailabilityService) Event(ctx context.Context, eventID uint64) (model.EventAvailability, error) {
	ev, err := s.catalog.EventByID(ctx, eventID)
	if errors.Is(err, repository.ErrEventNotFound) {
		return model.EventAvailability{}, ErrNotFound
	}
	if err != nil {
		return model.EventAvailability{}, unavailable("load event", err)
	}
	lots, cats, err := s.catalog.LotsByEvent(ctx, eventID)
	if err != nil {
		return model.EventAvailability{}, unavailable("load lots", err)
	}
	now := s.now()
	return model.BuildEventAvailability(ev, lots, cats, func(l model.SalesLot) bool { return l.IsOpen(now) }), nil
}

// Category returns total minus sold for one category.
func (s *AvailabilityService) Category(ctx context.Context, categoryID uint64) (model.CategoryAvailability, error) {
	cl, err := s.catalog.CategoryByID(ctx, categoryID)
	if errors.Is(err, repository.ErrCategoryNotFound) {
		return model.CategoryAvailability{}, ErrNotFound
	}
	if err != nil {
		return model.CategoryAvailability{}, unavailable("load category", err)
	}
	return model.NewCategoryAvailability(cl.Category), nil
}
