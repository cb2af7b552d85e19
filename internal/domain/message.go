package domain

import "time"

// NewsletterMessage is the queue payload for one recipient of one campaign.
// Rendering and transport happen downstream; the payload only carries what
// the mail worker needs to look up the template and address the message.
type NewsletterMessage struct {
	ID           string      `json:"id"`
	RunID        string      `json:"run_id"`
	CampaignID   int64       `json:"campaign_id"`
	CampaignName string      `json:"campaign_name"`
	Subject      string      `json:"subject"`
	TemplateID   *int64      `json:"template_id,omitempty"`
	ChannelID    int64       `json:"channel_id"`
	Trigger      TriggerKind `json:"trigger"`
	Recipient    string      `json:"recipient"`
	QueuedAt     time.Time   `json:"queued_at"`
}
