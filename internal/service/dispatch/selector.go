package dispatch

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/ignite/campaign-dispatcher/internal/domain"
)

// Selector fetches the campaigns that are due on a given day.
type Selector struct {
	store CampaignStore
}

// NewSelector creates a selector backed by the given campaign store.
func NewSelector(store CampaignStore) *Selector {
	return &Selector{store: store}
}

// SelectDue returns enabled campaigns that are untied to a dated event or
// tied to one dated today, ordered by ID. Store failures come back as
// *DataAccessError.
func (s *Selector) SelectDue(ctx context.Context, today time.Time) ([]domain.Campaign, error) {
	campaigns, err := s.store.SelectDue(ctx, domain.DateOf(today))
	if err != nil {
		return nil, &DataAccessError{Op: "select due campaigns", Err: err}
	}
	slices.SortStableFunc(campaigns, func(a, b domain.Campaign) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return campaigns, nil
}
