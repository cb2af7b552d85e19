package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// CustomerGroupRepo implements dispatch.CustomerGroupStore against the
// customers table.
type CustomerGroupRepo struct{ db *sql.DB }

// NewCustomerGroupRepo creates a Postgres-backed customer group repository.
func NewCustomerGroupRepo(db *sql.DB) *CustomerGroupRepo { return &CustomerGroupRepo{db: db} }

func (r *CustomerGroupRepo) NewsletterEmails(ctx context.Context, groupID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT email
		FROM customers
		WHERE customer_group_id = $1 AND subscribed_to_news_letter = TRUE
		ORDER BY id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	return scanEmails(rows)
}

// BirthdayEmails matches on the month-day rendering of date_of_birth, so a
// Feb 29 birthday only matches when monthDay is "02-29".
func (r *CustomerGroupRepo) BirthdayEmails(ctx context.Context, groupID int64, monthDay string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT email
		FROM customers
		WHERE customer_group_id = $1
		  AND subscribed_to_news_letter = TRUE
		  AND to_char(date_of_birth, 'MM-DD') = $2
		ORDER BY id
	`, groupID, monthDay)
	if err != nil {
		return nil, fmt.Errorf("query customers by birthday: %w", err)
	}
	return scanEmails(rows)
}
