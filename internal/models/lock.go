package models

import "time"

// Lock is an atomic per-target claim held for the duration of a mutating action.
// Keyed by cluster-id or node-id; exclusive holds carry exactly one action-id,
// multi-reader holds (read-only actions) may carry several.
type Lock struct {
	TargetID  string      `json:"target_id" db:"target_id"`
	Exclusive bool        `json:"exclusive" db:"exclusive"`
	Holders   StringSlice `json:"holders" db:"holders"` // action-ids
	Engine    string      `json:"engine" db:"engine"`   // engine-id for liveness/steal checks
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// HeldBy reports whether actionID currently holds the lock.
func (l *Lock) HeldBy(actionID string) bool { return l.Holders.Contains(actionID) }

// CanAcquire reports whether a new holder wanting `exclusive` access may join,
// given the lock's current holder set.
func (l *Lock) CanAcquire(exclusive bool) bool {
	if len(l.Holders) == 0 {
		return true
	}
	if exclusive || l.Exclusive {
		return false
	}
	return true // non-exclusive request joining other non-exclusive holders
}
