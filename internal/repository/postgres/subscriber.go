package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// SubscriberRepo implements dispatch.SubscriberStore against the
// subscribers_list table.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

func (r *SubscriberRepo) SubscribedEmails(ctx context.Context, channelID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT email
		FROM subscribers_list
		WHERE is_subscribed = TRUE AND channel_id = $1
		ORDER BY id
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("query subscribers_list: %w", err)
	}
	return scanEmails(rows)
}

// scanEmails drains a single-column email result set and closes it.
func scanEmails(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		out = append(out, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emails: %w", err)
	}
	return out, nil
}
