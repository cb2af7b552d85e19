package domain

import "time"

// TriggerKind enumerates the audience strategies a campaign can use.
type TriggerKind string

const (
	TriggerGeneric  TriggerKind = "generic"
	TriggerBirthday TriggerKind = "birthday"
)

// BirthdayEventName is the stored event name that marks birthday campaigns.
const BirthdayEventName = "Birthday"

// Valid returns true for the known trigger kinds.
func (k TriggerKind) Valid() bool {
	return k == TriggerGeneric || k == TriggerBirthday
}

// Event is an optional temporal trigger for a campaign. A nil Date means the
// event never restricts eligibility.
type Event struct {
	ID   int64      `json:"id" db:"id"`
	Name string     `json:"name" db:"name"`
	Date *time.Time `json:"date,omitempty" db:"date"`
}

// Kind maps the stored event name onto a trigger kind.
func (e *Event) Kind() TriggerKind {
	if e.Name == BirthdayEventName {
		return TriggerBirthday
	}
	return TriggerGeneric
}
