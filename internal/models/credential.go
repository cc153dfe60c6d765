package models

import "time"

// Credential is an opaque driver-scoped secret (cloud API key, kubeconfig blob)
// referenced by a profile or policy spec by id rather than embedded in plaintext.
// Storage only; issuance and rotation belong to the external identity subsystem.
type Credential struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Type      string     `json:"type" db:"type"` // e.g. "kubeconfig", "cloud_api_key"
	Owner     Owner      `json:"owner"`
	Data      JSONMap    `json:"-" db:"data"` // never serialized back to clients
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}
