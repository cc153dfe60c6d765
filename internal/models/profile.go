package models

import (
	"encoding/json"
	"time"

	"github.com/Masterminds/semver/v3"
	"sigs.k8s.io/yaml"
)

// Profile is a versioned spec describing how to materialize a node of a given type.
// Immutable after creation: an update that changes Spec must insert a new row rather
// than mutate this one.
type Profile struct {
	ID         string     `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	Type       string     `json:"type" db:"type"` // e.g. "compute.instance", "lb.pool"
	Version    string     `json:"version" db:"version"`
	Spec       JSONMap    `json:"spec" db:"spec"`
	Permission string     `json:"permission,omitempty" db:"permission"`
	Metadata   JSONMap    `json:"metadata" db:"metadata"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// CanonicalizeSpec normalizes a YAML-or-JSON spec document into the JSONMap form
// persisted on the row, so YAML and JSON submissions land in one canonical form.
func CanonicalizeSpec(raw []byte) (JSONMap, error) {
	b, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return nil, NewInvalidSpec("spec is not valid YAML/JSON: %v", err)
	}
	m := JSONMap{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, NewInvalidSpec("spec did not decode to an object: %v", err)
	}
	return m, nil
}

// VersionSatisfies reports whether p's semver version satisfies the given constraint,
// used when a cluster/policy binding requires a minimum profile version.
func (p *Profile) VersionSatisfies(constraint string) (bool, error) {
	v, err := semver.NewVersion(p.Version)
	if err != nil {
		return false, NewInvalidSpec("profile %s has non-semver version %q: %v", p.ID, p.Version, err)
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, NewInvalidParameter("constraint", constraint)
	}
	return c.Check(v), nil
}

// CompareVersion orders two profiles of the same Type by semver version, ascending.
// Profiles with unparsable versions sort last.
func CompareVersion(a, b *Profile) int {
	av, aerr := semver.NewVersion(a.Version)
	bv, berr := semver.NewVersion(b.Version)
	switch {
	case aerr != nil && berr != nil:
		return 0
	case aerr != nil:
		return 1
	case berr != nil:
		return -1
	default:
		return av.Compare(bv)
	}
}
