package models

import "time"

// Trigger binds a condition (e.g. a schedule or an alarm threshold) to the action it
// should submit when fired; registered in the environment registry like profiles and
// policies so new trigger types can be added without touching the dispatcher.
type Trigger struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Type      string     `json:"type" db:"type"` // registry key, e.g. "alarm@1.0"
	Spec      JSONMap    `json:"spec" db:"spec"`
	Enabled   bool       `json:"enabled" db:"enabled"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}
