package domain

import (
	"time"
)

// CampaignStatus is the enabled flag stored on a marketing campaign.
type CampaignStatus int

const (
	CampaignDisabled CampaignStatus = 0
	CampaignEnabled  CampaignStatus = 1
)

// String returns the status name used in logs and reports.
func (s CampaignStatus) String() string {
	if s == CampaignEnabled {
		return "enabled"
	}
	return "disabled"
}

// Campaign is a configured marketing push with an audience and an optional
// date trigger. Campaigns are managed elsewhere; the dispatcher only reads them.
type Campaign struct {
	ID         int64          `json:"id" db:"id"`
	Name       string         `json:"name" db:"name"`
	Subject    string         `json:"subject" db:"subject"`
	Status     CampaignStatus `json:"status" db:"status"`
	ChannelID  int64          `json:"channel_id" db:"channel_id"` // 0 when unset
	TemplateID *int64         `json:"template_id,omitempty" db:"marketing_template_id"`

	// CustomerGroup is nil when the campaign has no group or the group
	// it references no longer exists.
	CustomerGroup *CustomerGroup `json:"customer_group,omitempty"`

	// Event is nil when the campaign is not tied to any event.
	Event *Event `json:"event,omitempty"`
}

// Trigger returns the trigger kind that selects the audience strategy.
// Campaigns without an event are generic.
func (c *Campaign) Trigger() TriggerKind {
	if c.Event == nil {
		return TriggerGeneric
	}
	return c.Event.Kind()
}

// IsDueOn reports whether the campaign is eligible on the given day:
// enabled, and either untied to a dated event or tied to one dated today.
func (c *Campaign) IsDueOn(today time.Time) bool {
	if c.Status != CampaignEnabled {
		return false
	}
	if c.Event == nil || c.Event.Date == nil {
		return true
	}
	return FormatDate(*c.Event.Date) == FormatDate(today)
}
