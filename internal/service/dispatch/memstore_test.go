package dispatch_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ignite/campaign-dispatcher/internal/domain"
)

// memStore is an in-memory campaign, subscriber, and customer store that
// applies the same predicates as the Postgres repositories.
type memStore struct {
	mu          sync.Mutex
	campaigns   []domain.Campaign
	subscribers []domain.Subscriber
	customers   []domain.Customer

	failSelect   error
	failSubs     error
	failGroup    error
	subscriberQs int
}

func newMemStore() *memStore { return &memStore{} }

func (m *memStore) addCampaign(c domain.Campaign) *memStore {
	m.campaigns = append(m.campaigns, c)
	return m
}

func (m *memStore) addSubscriber(email string, subscribed bool, channelID int64) *memStore {
	m.subscribers = append(m.subscribers, domain.Subscriber{
		ID: int64(len(m.subscribers) + 1), Email: email, IsSubscribed: subscribed, ChannelID: channelID,
	})
	return m
}

func (m *memStore) addCustomer(email string, subscribed bool, groupID int64, dob string) *memStore {
	c := domain.Customer{
		ID: int64(len(m.customers) + 1), Email: email, SubscribedToNewsletter: subscribed, CustomerGroupID: groupID,
	}
	if dob != "" {
		d := day(dob)
		c.DateOfBirth = &d
	}
	m.customers = append(m.customers, c)
	return m
}

func (m *memStore) SelectDue(_ context.Context, today time.Time) ([]domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSelect != nil {
		return nil, m.failSelect
	}
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if c.IsDueOn(today) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) SubscribedEmails(_ context.Context, channelID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriberQs++
	if m.failSubs != nil {
		return nil, m.failSubs
	}
	var out []string
	for _, s := range m.subscribers {
		if s.IsSubscribed && s.ChannelID == channelID {
			out = append(out, s.Email)
		}
	}
	return out, nil
}

func (m *memStore) NewsletterEmails(_ context.Context, groupID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGroup != nil {
		return nil, m.failGroup
	}
	var out []string
	for _, c := range m.customers {
		if c.CustomerGroupID == groupID && c.SubscribedToNewsletter {
			out = append(out, c.Email)
		}
	}
	return out, nil
}

func (m *memStore) BirthdayEmails(_ context.Context, groupID int64, monthDay string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGroup != nil {
		return nil, m.failGroup
	}
	var out []string
	for _, c := range m.customers {
		if c.CustomerGroupID != groupID || !c.SubscribedToNewsletter || c.DateOfBirth == nil {
			continue
		}
		if domain.FormatMonthDay(*c.DateOfBirth) == monthDay {
			out = append(out, c.Email)
		}
	}
	return out, nil
}

// memQueue records every submission. Recipients listed in failFor are
// rejected.
type memQueue struct {
	mu       sync.Mutex
	calls    int
	messages []domain.NewsletterMessage
	failFor  map[string]bool
	onCall   func(n int)
}

func newMemQueue() *memQueue { return &memQueue{failFor: map[string]bool{}} }

var errQueueDown = errors.New("queue unavailable")

func (q *memQueue) Enqueue(_ context.Context, msg *domain.NewsletterMessage) error {
	q.mu.Lock()
	q.calls++
	n := q.calls
	fail := q.failFor[msg.Recipient]
	if !fail {
		q.messages = append(q.messages, *msg)
	}
	hook := q.onCall
	q.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	if fail {
		return errQueueDown
	}
	return nil
}

func (q *memQueue) recipients(campaignID int64) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for _, m := range q.messages {
		if m.CampaignID == campaignID {
			out = append(out, m.Recipient)
		}
	}
	return out
}

type memLock struct {
	held     bool
	acquired int
	released int
	err      error
}

func (l *memLock) Acquire(context.Context) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.held {
		return false, nil
	}
	l.held = true
	l.acquired++
	return true, nil
}

func (l *memLock) Release(context.Context) error {
	l.held = false
	l.released++
	return nil
}

// leaseLock is a memLock with a TTL that counts extensions.
type leaseLock struct {
	memLock
	ttl time.Duration

	mu        sync.Mutex
	extends   int
	extendErr error
}

func (l *leaseLock) TTL() time.Duration { return l.ttl }

func (l *leaseLock) Extend(context.Context, time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.extends++
	return l.extendErr
}

func (l *leaseLock) extendCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.extends
}

type memReports struct {
	mu      sync.Mutex
	reports []domain.RunReport
}

func (r *memReports) SaveRun(_ context.Context, report *domain.RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, *report)
	return nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	d := day(s)
	return &d
}

func group(id int64) *domain.CustomerGroup {
	return &domain.CustomerGroup{ID: id, Code: "general", Name: "General"}
}
