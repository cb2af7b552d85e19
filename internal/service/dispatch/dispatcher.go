package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatcher/internal/domain"
	"github.com/ignite/campaign-dispatcher/internal/pkg/logger"
)

// QueueErrorPolicy decides what a failed enqueue does to the rest of the run.
type QueueErrorPolicy string

const (
	// QueueErrorSkip logs the failure and moves on to the next recipient.
	QueueErrorSkip QueueErrorPolicy = "skip"
	// QueueErrorAbort stops the run at the first failed enqueue.
	QueueErrorAbort QueueErrorPolicy = "abort"
)

// Valid returns true for the known policies.
func (p QueueErrorPolicy) Valid() bool {
	return p == QueueErrorSkip || p == QueueErrorAbort
}

// Result counts the queue submissions made for one campaign.
type Result struct {
	Enqueued int
	Failed   int
}

// Dispatcher submits one message per recipient to the mail queue.
type Dispatcher struct {
	queue  MailQueue
	policy QueueErrorPolicy
	now    func() time.Time
	newID  func() string
}

// NewDispatcher creates a dispatcher. An invalid policy falls back to skip.
func NewDispatcher(queue MailQueue, policy QueueErrorPolicy) *Dispatcher {
	if !policy.Valid() {
		policy = QueueErrorSkip
	}
	return &Dispatcher{
		queue:  queue,
		policy: policy,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Dispatch enqueues a message for each recipient, in order, one call per
// recipient. With the skip policy a failed submission is counted and logged;
// with the abort policy it is returned as *QueueSubmissionError. A canceled
// context stops the loop; messages already enqueued stay enqueued.
func (d *Dispatcher) Dispatch(ctx context.Context, runID string, c *domain.Campaign, recipients []string) (Result, error) {
	var res Result
	for _, to := range recipients {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := d.queue.Enqueue(ctx, d.message(runID, c, to)); err != nil {
			res.Failed++
			qerr := &QueueSubmissionError{CampaignID: c.ID, Recipient: to, Err: err}
			if d.policy == QueueErrorAbort {
				return res, qerr
			}
			logger.Warn("queue submission failed, skipping recipient",
				"campaign_id", c.ID, "email", to, "error", err)
			continue
		}
		res.Enqueued++
	}
	return res, nil
}

func (d *Dispatcher) message(runID string, c *domain.Campaign, to string) *domain.NewsletterMessage {
	return &domain.NewsletterMessage{
		ID:           d.newID(),
		RunID:        runID,
		CampaignID:   c.ID,
		CampaignName: c.Name,
		Subject:      c.Subject,
		TemplateID:   c.TemplateID,
		ChannelID:    c.ChannelID,
		Trigger:      c.Trigger(),
		Recipient:    to,
		QueuedAt:     d.now().UTC(),
	}
}
