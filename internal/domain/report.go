package domain

import "time"

// RunStatus enumerates how a dispatch run ended.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
)

// RunReport summarizes one dispatch run.
type RunReport struct {
	RunID      string            `json:"run_id"`
	Date       string            `json:"date"`
	Status     RunStatus         `json:"status"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Campaigns  []CampaignOutcome `json:"campaigns"`
}

// CampaignOutcome records what happened to a single campaign during a run.
type CampaignOutcome struct {
	CampaignID int64       `json:"campaign_id"`
	Name       string      `json:"name"`
	Trigger    TriggerKind `json:"trigger"`
	Resolved   int         `json:"resolved"`
	Enqueued   int         `json:"enqueued"`
	Failed     int         `json:"failed"`
	Skipped    bool        `json:"skipped"`
	SkipReason string      `json:"skip_reason,omitempty"`
}

// TotalEnqueued sums enqueued messages across campaigns.
func (r *RunReport) TotalEnqueued() int {
	n := 0
	for _, c := range r.Campaigns {
		n += c.Enqueued
	}
	return n
}

// TotalFailed sums failed queue submissions across campaigns.
func (r *RunReport) TotalFailed() int {
	n := 0
	for _, c := range r.Campaigns {
		n += c.Failed
	}
	return n
}
