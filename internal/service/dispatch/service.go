package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/campaign-dispatcher/internal/domain"
	"github.com/ignite/campaign-dispatcher/internal/metrics"
	"github.com/ignite/campaign-dispatcher/internal/pkg/logger"
)

const (
	releaseTimeout = 5 * time.Second
	reportTimeout  = 10 * time.Second
)

// Options holds the optional collaborators and settings of a Service.
type Options struct {
	// Location defines "today" when the caller passes a zero date.
	// Defaults to UTC.
	Location *time.Location

	// RunTimeout bounds a whole run. Zero means no deadline.
	RunTimeout time.Duration

	QueueErrorPolicy QueueErrorPolicy

	Lock    RunLock
	Reports ReportSink
}

// Service runs campaign dispatch: Selector, then Resolver per campaign,
// then Dispatcher per recipient.
type Service struct {
	selector   *Selector
	resolver   *Resolver
	dispatcher *Dispatcher

	lock    RunLock
	reports ReportSink
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time
}

// NewService wires a dispatch service from its stores and queue.
func NewService(campaigns CampaignStore, subscribers SubscriberStore, groups CustomerGroupStore, queue MailQueue, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		selector:   NewSelector(campaigns),
		resolver:   NewResolver(subscribers, groups),
		dispatcher: NewDispatcher(queue, opts.QueueErrorPolicy),
		lock:       opts.Lock,
		reports:    opts.Reports,
		loc:        loc,
		timeout:    opts.RunTimeout,
		now:        time.Now,
	}
}

// Resolver exposes the audience resolver so callers can register extra
// trigger strategies.
func (s *Service) Resolver() *Resolver { return s.resolver }

// Today returns the current calendar day in the service's location.
func (s *Service) Today() time.Time {
	return domain.DateOf(s.now().In(s.loc))
}

// RunCampaignDispatch performs one dispatch pass for the given day. A zero
// today means the current day. The report is returned even when the run
// aborts; the error is then a *DataAccessError, a *QueueSubmissionError, or
// a context error. ErrRunInProgress is returned, with a nil report, when the
// run lock is held elsewhere.
func (s *Service) RunCampaignDispatch(ctx context.Context, today time.Time) (*domain.RunReport, error) {
	if today.IsZero() {
		today = s.Today()
	}
	today = domain.DateOf(today)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !acquired {
			logger.Warn("dispatch run skipped, lock held", "date", domain.FormatDate(today))
			return nil, ErrRunInProgress
		}
		defer s.releaseLock(ctx)

		if lease, ok := s.lock.(LeaseLock); ok && lease.TTL()/3 > 0 {
			var stop func()
			ctx, stop = keepLease(ctx, lease)
			defer stop()
		}
	}

	report := &domain.RunReport{
		RunID:     uuid.NewString(),
		Date:      domain.FormatDate(today),
		StartedAt: s.now().UTC(),
		Campaigns: []domain.CampaignOutcome{},
	}
	logger.Info("dispatch run started", "run_id", report.RunID, "date", report.Date)

	runErr := s.run(ctx, today, report)
	if cause := context.Cause(ctx); runErr != nil && errors.Is(cause, ErrLockLost) {
		runErr = cause
	}

	report.FinishedAt = s.now().UTC()
	report.Status = domain.RunCompleted
	if runErr != nil {
		report.Status = domain.RunAborted
		report.Error = runErr.Error()
		logger.Error("dispatch run aborted", "run_id", report.RunID, "error", runErr)
	} else {
		logger.Info("dispatch run finished",
			"run_id", report.RunID,
			"campaigns", len(report.Campaigns),
			"enqueued", report.TotalEnqueued(),
			"failed", report.TotalFailed())
	}
	metrics.ObserveRun(report)
	s.saveReport(ctx, report)

	return report, runErr
}

func (s *Service) run(ctx context.Context, today time.Time, report *domain.RunReport) error {
	campaigns, err := s.selector.SelectDue(ctx, today)
	if err != nil {
		return err
	}
	logger.Info("due campaigns selected", "run_id", report.RunID, "count", len(campaigns))

	for i := range campaigns {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := &campaigns[i]
		outcome := domain.CampaignOutcome{
			CampaignID: c.ID,
			Name:       c.Name,
			Trigger:    c.Trigger(),
		}

		recipients, err := s.resolver.Resolve(ctx, c, today)
		switch {
		case errors.Is(err, ErrMissingAssociation):
			logger.Warn("campaign skipped", "campaign_id", c.ID, "reason", err)
			s.record(report, skipped(outcome, err))
			continue
		case errors.Is(err, ErrUnknownTrigger):
			logger.Error("campaign skipped", "campaign_id", c.ID, "reason", err)
			s.record(report, skipped(outcome, err))
			continue
		case err != nil:
			return err
		}

		outcome.Resolved = len(recipients)
		res, err := s.dispatcher.Dispatch(ctx, report.RunID, c, recipients)
		outcome.Enqueued = res.Enqueued
		outcome.Failed = res.Failed
		s.record(report, outcome)
		if err != nil {
			return err
		}

		logger.Debug("campaign dispatched",
			"campaign_id", c.ID,
			"trigger", outcome.Trigger,
			"resolved", outcome.Resolved,
			"enqueued", outcome.Enqueued)
	}
	return nil
}

func (s *Service) record(report *domain.RunReport, outcome domain.CampaignOutcome) {
	report.Campaigns = append(report.Campaigns, outcome)
	metrics.ObserveCampaign(outcome)
}

func skipped(o domain.CampaignOutcome, reason error) domain.CampaignOutcome {
	o.Skipped = true
	o.SkipReason = reason.Error()
	return o
}

// keepLease extends lease every TTL/3 until stop is called. When an extension
// fails the returned context is canceled with ErrLockLost as its cause.
func keepLease(ctx context.Context, lease LeaseLock) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	ttl := lease.TTL()
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := lease.Extend(ctx, ttl); err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Error("extend run lock", "error", err)
					cancel(fmt.Errorf("%w: %v", ErrLockLost, err))
					return
				}
			}
		}
	}()

	return ctx, func() {
		close(done)
		wg.Wait()
		cancel(nil)
	}
}

// releaseLock and saveReport run after the run context may have expired.
func (s *Service) releaseLock(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.lock.Release(ctx); err != nil {
		logger.Warn("release run lock", "error", err)
	}
}

func (s *Service) saveReport(ctx context.Context, report *domain.RunReport) {
	if s.reports == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()
	if err := s.reports.SaveRun(ctx, report); err != nil {
		logger.Warn("save run report", "run_id", report.RunID, "error", err)
	}
}
