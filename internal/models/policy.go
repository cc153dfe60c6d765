package models

import "time"

// Phase identifies when a policy hook fires relative to an action body.
type Phase string

const (
	PhaseBefore Phase = "BEFORE"
	PhaseAfter  Phase = "AFTER"
)

// Target is a (phase, action-kind) tuple a policy registers interest in.
type Target struct {
	Phase Phase      `json:"phase"`
	Kind  ActionKind `json:"kind"`
}

// Policy is a governance rule with pre/post hooks firing on specific action kinds.
// Spec is immutable by contract once created.
type Policy struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Type      string     `json:"type" db:"type"` // registry key, e.g. "lb_member@1.0"
	Spec      JSONMap    `json:"spec" db:"spec"`
	Level     int        `json:"level" db:"level"`       // [0,100]
	Cooldown  int        `json:"cooldown" db:"cooldown"` // seconds, >=0
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// ValidateLevel enforces the [0,100] range.
func (p *Policy) ValidateLevel() error {
	if p.Level < 0 || p.Level > 100 {
		return NewInvalidParameter("level", p.Level)
	}
	if p.Cooldown < 0 {
		return NewInvalidParameter("cooldown", p.Cooldown)
	}
	return nil
}

// PolicyMeta is the class-level metadata a concrete policy implementation declares
// statically, independent of any particular Policy row's Spec.
type PolicyMeta struct {
	Priority         int
	Target           []Target
	ProfileType      string // "" means applicable to any profile type
	PropertiesSchema JSONMap
}

// TargetsPhaseKind reports whether m declares interest in (phase, kind).
func (m PolicyMeta) TargetsPhaseKind(phase Phase, kind ActionKind) bool {
	for _, t := range m.Target {
		if t.Phase == phase && t.Kind == kind {
			return true
		}
	}
	return false
}
