package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"strings"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/campaign-dispatcher/internal/domain"
	"github.com/ignite/campaign-dispatcher/internal/service/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ dispatch.CampaignStore      = (*CampaignRepo)(nil)
	_ dispatch.SubscriberStore    = (*SubscriberRepo)(nil)
	_ dispatch.CustomerGroupStore = (*CustomerGroupRepo)(nil)
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

var campaignColumns = []string{
	"id", "name", "subject", "status", "channel_id",
	"marketing_template_id",
	"group_id", "group_code", "group_name",
	"event_id", "event_name", "event_date",
}

func TestCampaignRepo_SelectDue(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	eventDate := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM marketing_campaigns c\s+LEFT JOIN marketing_events e .*LEFT JOIN customer_groups g .*WHERE c.status = \$1\s+AND \(e.date = \$2 OR e.date IS NULL\)\s+ORDER BY c.id`).
		WithArgs(1, "2024-05-01").
		WillReturnRows(sqlmock.NewRows(campaignColumns).
			AddRow(1, "A", "Weekly news", 1, 1, nil, 5, "general", "General", nil, nil, nil).
			AddRow(2, "B", "Sale", 1, 1, 9, 5, "general", "General", 3, "Sale", eventDate).
			AddRow(3, "C", "Happy birthday", 1, 2, nil, 6, "vip", "VIP", 4, "Birthday", nil).
			AddRow(4, "D", "Orphan", 1, 1, nil, nil, nil, nil, nil, nil, nil))

	got, err := NewCampaignRepo(db).SelectDue(context.Background(), eventDate)
	require.NoError(t, err)
	require.Len(t, got, 4)

	a := got[0]
	assert.Equal(t, int64(1), a.ID)
	assert.Nil(t, a.Event)
	assert.Nil(t, a.TemplateID)
	require.NotNil(t, a.CustomerGroup)
	assert.Equal(t, int64(5), a.CustomerGroup.ID)

	b := got[1]
	require.NotNil(t, b.Event)
	require.NotNil(t, b.Event.Date)
	assert.Equal(t, "Sale", b.Event.Name)
	assert.True(t, b.Event.Date.Equal(eventDate))
	require.NotNil(t, b.TemplateID)
	assert.Equal(t, int64(9), *b.TemplateID)

	c := got[2]
	require.NotNil(t, c.Event)
	assert.Nil(t, c.Event.Date)
	assert.Equal(t, "birthday", string(c.Trigger()))
	assert.Equal(t, int64(2), c.ChannelID)

	d := got[3]
	assert.Nil(t, d.CustomerGroup)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_SelectDue_QueryError(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM marketing_campaigns").WillReturnError(errors.New("relation does not exist"))

	_, err := NewCampaignRepo(db).SelectDue(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query marketing_campaigns")
}

func TestCampaignRepo_SelectDue_NullChannel(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM marketing_campaigns").
		WillReturnRows(sqlmock.NewRows(campaignColumns).
			AddRow(1, "A", "", 1, nil, nil, 5, "general", "General", nil, nil, nil).
			AddRow(2, "B", "", 1, 3, nil, 5, "general", "General", nil, nil, nil))

	got, err := NewCampaignRepo(db).SelectDue(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Zero(t, got[0].ChannelID)
	assert.Equal(t, int64(3), got[1].ChannelID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelector_ErrorNamesOperationOnce(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM marketing_campaigns").WillReturnError(errors.New("relation does not exist"))

	_, err := dispatch.NewSelector(NewCampaignRepo(db)).SelectDue(context.Background(), time.Now())
	require.Error(t, err)
	assert.Equal(t, "select due campaigns: query marketing_campaigns: relation does not exist", err.Error())
}

func TestResolver_ErrorNamesOperationOnce(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM customers").WillReturnError(errors.New("connection reset"))
	mock.ExpectQuery("FROM customers").WillReturnError(errors.New("connection reset"))

	groups := NewCustomerGroupRepo(db)
	r := dispatch.NewResolver(NewSubscriberRepo(db), groups)
	c := &domain.Campaign{ID: 1, CustomerGroup: &domain.CustomerGroup{ID: 5}}

	_, err := r.Resolve(context.Background(), c, time.Now())
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(err.Error(), "newsletter customers"))

	c.Event = &domain.Event{Name: "Birthday"}
	_, err = r.Resolve(context.Background(), c, time.Now())
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(err.Error(), "birthday customers"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_SelectDue_ScanError(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM marketing_campaigns").
		WillReturnRows(sqlmock.NewRows(campaignColumns).
			AddRow("not-a-number", "A", "", 1, 1, nil, nil, nil, nil, nil, nil, nil))

	_, err := NewCampaignRepo(db).SelectDue(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan campaign")
}

func TestSubscriberRepo_SubscribedEmails(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`FROM subscribers_list\s+WHERE is_subscribed = TRUE AND channel_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("a@x.com").AddRow("b@x.com"))

	got, err := NewSubscriberRepo(db).SubscribedEmails(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriberRepo_RowError(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM subscribers_list").
		WillReturnRows(sqlmock.NewRows([]string{"email"}).
			AddRow("a@x.com").
			RowError(0, errors.New("connection lost")))

	_, err := NewSubscriberRepo(db).SubscribedEmails(context.Background(), 1)
	require.Error(t, err)
}

func TestCustomerGroupRepo_NewsletterEmails(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`FROM customers\s+WHERE customer_group_id = \$1 AND subscribed_to_news_letter = TRUE`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("a@x.com"))

	got, err := NewCustomerGroupRepo(db).NewsletterEmails(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerGroupRepo_BirthdayEmails(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`subscribed_to_news_letter = TRUE\s+AND to_char\(date_of_birth, 'MM-DD'\) = \$2`).
		WithArgs(int64(5), "07-04").
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("first@x.com").AddRow("first@x.com"))

	got, err := NewCustomerGroupRepo(db).BirthdayEmails(context.Background(), 5, "07-04")
	require.NoError(t, err)
	// Duplicate rows pass through untouched.
	assert.Equal(t, []string{"first@x.com", "first@x.com"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerGroupRepo_QueryError(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM customers").WillReturnError(sql.ErrConnDone)

	_, err := NewCustomerGroupRepo(db).BirthdayEmails(context.Background(), 5, "07-04")
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
