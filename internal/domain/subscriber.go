package domain

import "time"

// Subscriber is a channel-scoped newsletter opt-in, independent of any
// customer account.
type Subscriber struct {
	ID           int64  `json:"id" db:"id"`
	Email        string `json:"email" db:"email"`
	IsSubscribed bool   `json:"is_subscribed" db:"is_subscribed"`
	ChannelID    int64  `json:"channel_id" db:"channel_id"`
}

// CustomerGroup is a named cohort of customers usable as a campaign audience.
type CustomerGroup struct {
	ID   int64  `json:"id" db:"id"`
	Code string `json:"code" db:"code"`
	Name string `json:"name" db:"name"`
}

// Customer holds the customer attributes the audience strategies read.
type Customer struct {
	ID                     int64      `json:"id" db:"id"`
	Email                  string     `json:"email" db:"email"`
	SubscribedToNewsletter bool       `json:"subscribed_to_news_letter" db:"subscribed_to_news_letter"`
	DateOfBirth            *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`
	CustomerGroupID        int64      `json:"customer_group_id" db:"customer_group_id"`
}
