package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/campaign-dispatcher/internal/domain"
)

// Strategy computes the recipient addresses of one campaign for one day.
type Strategy func(ctx context.Context, c *domain.Campaign, today time.Time) ([]string, error)

// Resolver computes campaign audiences. The strategy is picked from a table
// keyed by the campaign's trigger kind.
type Resolver struct {
	subscribers SubscriberStore
	groups      CustomerGroupStore
	strategies  map[domain.TriggerKind]Strategy
}

// NewResolver creates a resolver with the generic and birthday strategies
// registered.
func NewResolver(subscribers SubscriberStore, groups CustomerGroupStore) *Resolver {
	r := &Resolver{
		subscribers: subscribers,
		groups:      groups,
	}
	r.strategies = map[domain.TriggerKind]Strategy{
		domain.TriggerGeneric:  r.generic,
		domain.TriggerBirthday: r.birthday,
	}
	return r
}

// Register installs or replaces the strategy for a trigger kind.
func (r *Resolver) Register(kind domain.TriggerKind, s Strategy) {
	r.strategies[kind] = s
}

// Resolve returns the recipients of c on the given day.
func (r *Resolver) Resolve(ctx context.Context, c *domain.Campaign, today time.Time) ([]string, error) {
	kind := c.Trigger()
	strategy, ok := r.strategies[kind]
	if !ok {
		return nil, fmt.Errorf("campaign %d trigger %q: %w", c.ID, kind, ErrUnknownTrigger)
	}
	return strategy(ctx, c, today)
}

// generic unions the channel's subscribed emails with the group's
// newsletter customers. Duplicates collapse on exact string match.
func (r *Resolver) generic(ctx context.Context, c *domain.Campaign, _ time.Time) ([]string, error) {
	if c.CustomerGroup == nil {
		return []string{}, missingGroup(c)
	}

	var subscribed []string
	if c.ChannelID != 0 {
		var err error
		subscribed, err = r.subscribers.SubscribedEmails(ctx, c.ChannelID)
		if err != nil {
			return nil, &DataAccessError{Op: "list channel subscribers", Err: err}
		}
	}
	members, err := r.groups.NewsletterEmails(ctx, c.CustomerGroup.ID)
	if err != nil {
		return nil, &DataAccessError{Op: "list newsletter customers", Err: err}
	}

	set := domain.NewEmailSet()
	set.Add(subscribed...)
	set.Add(members...)
	return set.Slice(), nil
}

// birthday returns subscribed group members born on today's month and day.
// The result is not deduplicated.
func (r *Resolver) birthday(ctx context.Context, c *domain.Campaign, today time.Time) ([]string, error) {
	if c.CustomerGroup == nil {
		return []string{}, missingGroup(c)
	}

	emails, err := r.groups.BirthdayEmails(ctx, c.CustomerGroup.ID, domain.FormatMonthDay(today))
	if err != nil {
		return nil, &DataAccessError{Op: "list birthday customers", Err: err}
	}
	if emails == nil {
		emails = []string{}
	}
	return emails, nil
}

func missingGroup(c *domain.Campaign) error {
	return &MissingAssociationError{CampaignID: c.ID, Association: "customer group"}
}
