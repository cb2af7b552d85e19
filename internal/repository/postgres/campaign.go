package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/campaign-dispatcher/internal/domain"
)

// CampaignRepo implements dispatch.CampaignStore against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

// selectDueSQL left-joins events so campaigns without one qualify, and
// customer groups so a dangling customer_group_id reads as NULL.
const selectDueSQL = `
	SELECT c.id, c.name, COALESCE(c.subject, ''), c.status, c.channel_id,
	       c.marketing_template_id,
	       g.id, g.code, g.name,
	       e.id, e.name, e.date
	FROM marketing_campaigns c
	LEFT JOIN marketing_events e ON e.id = c.marketing_event_id
	LEFT JOIN customer_groups g ON g.id = c.customer_group_id
	WHERE c.status = $1
	  AND (e.date = $2 OR e.date IS NULL)
	ORDER BY c.id`

// SelectDue returns enabled campaigns due on today, ordered by ID.
func (r *CampaignRepo) SelectDue(ctx context.Context, today time.Time) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, selectDueSQL, int(domain.CampaignEnabled), domain.FormatDate(today))
	if err != nil {
		return nil, fmt.Errorf("query marketing_campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var (
			c          domain.Campaign
			status     int
			channelID  sql.NullInt64
			templateID sql.NullInt64
			groupID    sql.NullInt64
			groupCode  sql.NullString
			groupName  sql.NullString
			eventID    sql.NullInt64
			eventName  sql.NullString
			eventDate  sql.NullTime
		)
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Subject, &status, &channelID,
			&templateID,
			&groupID, &groupCode, &groupName,
			&eventID, &eventName, &eventDate,
		); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}

		c.Status = domain.CampaignStatus(status)
		c.ChannelID = channelID.Int64
		if templateID.Valid {
			id := templateID.Int64
			c.TemplateID = &id
		}
		if groupID.Valid {
			c.CustomerGroup = &domain.CustomerGroup{ID: groupID.Int64, Code: groupCode.String, Name: groupName.String}
		}
		if eventID.Valid {
			c.Event = &domain.Event{ID: eventID.Int64, Name: eventName.String}
			if eventDate.Valid {
				d := eventDate.Time
				c.Event.Date = &d
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaigns: %w", err)
	}
	return out, nil
}
