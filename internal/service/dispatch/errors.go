package dispatch

import (
	"errors"
	"fmt"
)

// Sentinel errors for the dispatch service layer.
var (
	ErrMissingAssociation = errors.New("campaign association missing")
	ErrUnknownTrigger     = errors.New("no audience strategy for trigger")
	ErrRunInProgress      = errors.New("another dispatch run holds the lock")
	ErrLockLost           = errors.New("run lock lost")
)

// DataAccessError wraps a store failure. It aborts the run.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *DataAccessError) Unwrap() error { return e.Err }

// MissingAssociationError reports a campaign whose customer group is null or
// was deleted. The campaign is skipped and the run continues.
type MissingAssociationError struct {
	CampaignID  int64
	Association string
}

func (e *MissingAssociationError) Error() string {
	return fmt.Sprintf("campaign %d has no %s", e.CampaignID, e.Association)
}

func (e *MissingAssociationError) Is(target error) bool { return target == ErrMissingAssociation }

// QueueSubmissionError reports a failed enqueue for a single recipient.
type QueueSubmissionError struct {
	CampaignID int64
	Recipient  string
	Err        error
}

func (e *QueueSubmissionError) Error() string {
	return fmt.Sprintf("enqueue campaign %d message: %v", e.CampaignID, e.Err)
}

func (e *QueueSubmissionError) Unwrap() error { return e.Err }
