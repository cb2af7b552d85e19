package dispatch

import (
	"context"
	"time"

	"github.com/ignite/campaign-dispatcher/internal/domain"
)

// CampaignStore reads campaigns joined with their events and customer groups.
type CampaignStore interface {
	// SelectDue returns enabled campaigns whose event is dated today or has
	// no date, including campaigns with no event at all. Results are ordered
	// by campaign ID.
	SelectDue(ctx context.Context, today time.Time) ([]domain.Campaign, error)
}

// SubscriberStore reads channel-scoped newsletter opt-ins.
type SubscriberStore interface {
	// SubscribedEmails returns the emails of subscribed records on the channel.
	SubscribedEmails(ctx context.Context, channelID int64) ([]string, error)
}

// CustomerGroupStore reads the members of a customer group.
type CustomerGroupStore interface {
	// NewsletterEmails returns emails of group members subscribed to the newsletter.
	NewsletterEmails(ctx context.Context, groupID int64) ([]string, error)

	// BirthdayEmails returns emails of subscribed group members whose date of
	// birth formats to monthDay ("MM-DD").
	BirthdayEmails(ctx context.Context, groupID int64, monthDay string) ([]string, error)
}

// MailQueue accepts newsletter messages for asynchronous delivery.
type MailQueue interface {
	Enqueue(ctx context.Context, msg *domain.NewsletterMessage) error
}

// ReportSink persists run reports. Optional.
type ReportSink interface {
	SaveRun(ctx context.Context, report *domain.RunReport) error
}

// RunLock guards against overlapping runs. Optional.
type RunLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LeaseLock is a RunLock that expires after TTL unless extended. The
// service renews it every TTL/3 while a run is in progress.
type LeaseLock interface {
	RunLock
	TTL() time.Duration
	Extend(ctx context.Context, ttl time.Duration) error
}
