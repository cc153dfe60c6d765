package models

import "time"

// Event is an append-only record of a state transition, consumed by clients via
// event_list/event_get.
type Event struct {
	ID         string    `json:"id" db:"id"`
	TargetID   string    `json:"target_id" db:"target_id"`
	TargetType string    `json:"target_type" db:"target_type"` // "cluster", "node", "action", ...
	ActionID   *string   `json:"action_id,omitempty" db:"action_id"`
	Kind       string    `json:"kind" db:"kind"` // e.g. "status_change"
	OldStatus  string    `json:"old_status,omitempty" db:"old_status"`
	NewStatus  string    `json:"new_status,omitempty" db:"new_status"`
	Reason     string    `json:"reason,omitempty" db:"reason"`
	Data       JSONMap   `json:"data" db:"data"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// NewStatusChangeEvent builds the event row recorded whenever an entity or action
// transitions status.
func NewStatusChangeEvent(targetID, targetType, oldStatus, newStatus, reason string) *Event {
	return &Event{
		TargetID:   targetID,
		TargetType: targetType,
		Kind:       "status_change",
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		Reason:     reason,
		Data:       JSONMap{},
	}
}
