package cart

import (
	"context"

	"github.com/ayursutra/portal/internal/domain/catalog"
)

// TreatmentSource resolves catalogue ids.
type TreatmentSource interface {
	Get(id int) (catalog.Treatment, error)
}

type Service struct {
	store      Store
	treatments TreatmentSource
}

func NewService(store Store, treatments TreatmentSource) *Service {
	return &Service{store: store, treatments: treatments}
}

func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	items, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newCart(items), nil
}

func (s *Service) Add(ctx context.Context, userID string, treatmentID int) (*Cart, error) {
	t, err := s.treatments.Get(treatmentID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Update(ctx, userID, func(items []Item) ([]Item, error) {
		return append(items, ItemFromTreatment(t)), nil
	})
	if err != nil {
		return nil, err
	}
	return newCart(items), nil
}

// Remove drops the first line for treatmentID. Removing an absent id is a no-op.
func (s *Service) Remove(ctx context.Context, userID string, treatmentID int) (*Cart, error) {
	items, err := s.store.Update(ctx, userID, func(items []Item) ([]Item, error) {
		for i, it := range items {
			if it.ID == treatmentID {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return newCart(items), nil
}

// Replace overwrites the cart with items as given. Rebooking uses it to
// restore an appointment's treatments at the price they were booked at.
func (s *Service) Replace(ctx context.Context, userID string, items []Item) (*Cart, error) {
	next := append([]Item(nil), items...)
	out, err := s.store.Update(ctx, userID, func([]Item) ([]Item, error) {
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return newCart(out), nil
}

// SetTreatments replaces the cart with the current catalogue entries for ids.
func (s *Service) SetTreatments(ctx context.Context, userID string, ids []int) (*Cart, error) {
	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		t, err := s.treatments.Get(id)
		if err != nil {
			return nil, err
		}
		items = append(items, ItemFromTreatment(t))
	}
	return s.Replace(ctx, userID, items)
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}
