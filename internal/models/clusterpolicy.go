package models

import "time"

// ClusterPolicy is the attachment of a Policy to a Cluster, with per-binding
// overrides and persisted attachment-time artifacts (e.g. the created
// load-balancer id).
type ClusterPolicy struct {
	ClusterID string     `json:"cluster_id" db:"cluster_id"`
	PolicyID  string     `json:"policy_id" db:"policy_id"`
	Priority  int        `json:"priority" db:"priority"`
	Level     int        `json:"level" db:"level"`
	Cooldown  int        `json:"cooldown" db:"cooldown"`
	Enabled   bool       `json:"enabled" db:"enabled"`
	Data      JSONMap    `json:"data" db:"data"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// ResolveEnabled implements the fixed (non-buggy) enabled-default semantics from
// cluster_policy_attach: true when the field is entirely absent from the request,
// the literal value otherwise.
func ResolveEnabled(raw interface{}, present bool) (bool, error) {
	if !present || raw == nil {
		return true, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch v {
		case "true", "True", "TRUE", "1", "yes":
			return true, nil
		case "false", "False", "FALSE", "0", "no":
			return false, nil
		default:
			return false, NewInvalidParameter("enabled", raw)
		}
	default:
		return false, NewInvalidParameter("enabled", raw)
	}
}
