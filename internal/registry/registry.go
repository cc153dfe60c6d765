// Package registry is the process-wide map from type names to the
// constructors that produce profile drivers, policy implementations, and
// trigger implementations. It is populated once at engine startup and is
// read-only thereafter; handlers receive it as an explicit parameter rather
// than reaching for a package-level singleton, so components stay testable
// in isolation (see design notes on the global environment singleton).
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/clustermgr/engine/internal/models"
)

// ProfileDriver materializes a Node of a given profile type against whatever
// backend the profile's spec names (compute, storage, ...). Registry.Profile
// calls the registered factory on every lookup; the registry caches no
// instances.
type ProfileDriver interface {
	Validate(ctx context.Context, spec models.JSONMap) error
	Create(ctx context.Context, node *models.Node, spec models.JSONMap) error
	Update(ctx context.Context, node *models.Node, spec models.JSONMap) error
	Delete(ctx context.Context, node *models.Node) error
}

// ProfileFactory builds a ProfileDriver for one profile row's spec.
type ProfileFactory func(spec models.JSONMap) (ProfileDriver, error)

// Policy is the pre_op/post_op/attach/detach contract every concrete policy
// implementation exposes, plus the class-level metadata the
// dispatcher consults to decide which hooks fire for which action kinds.
type Policy interface {
	Meta() models.PolicyMeta
	ValidateProps(ctx context.Context, props models.JSONMap) error
	Attach(ctx context.Context, cluster *models.Cluster, binding *models.ClusterPolicy) (data models.JSONMap, err error)
	Detach(ctx context.Context, cluster *models.Cluster, binding *models.ClusterPolicy) (data models.JSONMap, err error)
	PreOp(ctx context.Context, clusterID string, action *models.Action) error
	PostOp(ctx context.Context, clusterID string, action *models.Action) error
}

// PolicyFactory builds a Policy for one policy row. policyID is the row's own
// id; concrete policies that persist per-binding artifacts keyed by policy
// id (e.g. lb_member's cluster.Data["loadbalancers"][policyID]) need it at
// construction time, not just its spec.
type PolicyFactory func(policyID string, spec models.JSONMap) (Policy, error)

// Trigger binds a fired condition (schedule, alarm) to the action it submits.
type Trigger interface {
	Validate(ctx context.Context, spec models.JSONMap) error
}

// TriggerFactory builds a Trigger for one trigger row's spec.
type TriggerFactory func(spec models.JSONMap) (Trigger, error)

// Key joins a type name and version the way Profile rows store them
// separately; Policy and Trigger rows already carry a combined "type@version"
// string in their single Type field and are registered/looked-up with that
// string directly.
func Key(typ, version string) string {
	if version == "" {
		return typ
	}
	return typ + "@" + version
}

type profileEntry struct {
	name    string
	factory ProfileFactory
}

type policyEntry struct {
	name    string
	factory PolicyFactory
}

type triggerEntry struct {
	name    string
	factory TriggerFactory
}

// Registry is the process-wide type->constructor table. Safe for concurrent
// reads; writes are expected only during Init, but the mutex makes late
// registration (e.g. from a plugin loaded after startup) safe too.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]profileEntry
	policies map[string]policyEntry
	triggers map[string]triggerEntry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		profiles: make(map[string]profileEntry),
		policies: make(map[string]policyEntry),
		triggers: make(map[string]triggerEntry),
	}
}

// RegisterProfile adds a profile-type constructor under key. Idempotent: a
// second registration of the same key is a no-op if it names the same
// constructor, and an error if it tries to swap in a different one.
func (r *Registry) RegisterProfile(key, name string, f ProfileFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.profiles[key]; ok {
		if existing.name != name {
			return fmt.Errorf("registry: profile type %q already registered as %q, cannot re-register as %q", key, existing.name, name)
		}
		return nil
	}
	r.profiles[key] = profileEntry{name: name, factory: f}
	return nil
}

// Profile constructs the driver registered for key.
func (r *Registry) Profile(key string, spec models.JSONMap) (ProfileDriver, error) {
	r.mu.RLock()
	entry, ok := r.profiles[key]
	r.mu.RUnlock()
	if !ok {
		return nil, models.NewNotFound("profile_type", key)
	}
	return entry.factory(spec)
}

// RegisterPolicy adds a policy-type constructor under key.
func (r *Registry) RegisterPolicy(key, name string, f PolicyFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.policies[key]; ok {
		if existing.name != name {
			return fmt.Errorf("registry: policy type %q already registered as %q, cannot re-register as %q", key, existing.name, name)
		}
		return nil
	}
	r.policies[key] = policyEntry{name: name, factory: f}
	return nil
}

// Policy constructs the implementation registered for key, for the policy row
// identified by policyID.
func (r *Registry) Policy(key, policyID string, spec models.JSONMap) (Policy, error) {
	r.mu.RLock()
	entry, ok := r.policies[key]
	r.mu.RUnlock()
	if !ok {
		return nil, models.NewNotFound("policy_type", key)
	}
	return entry.factory(policyID, spec)
}

// RegisterTrigger adds a trigger-type constructor under key.
func (r *Registry) RegisterTrigger(key, name string, f TriggerFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.triggers[key]; ok {
		if existing.name != name {
			return fmt.Errorf("registry: trigger type %q already registered as %q, cannot re-register as %q", key, existing.name, name)
		}
		return nil
	}
	r.triggers[key] = triggerEntry{name: name, factory: f}
	return nil
}

// Trigger constructs the implementation registered for key.
func (r *Registry) Trigger(key string, spec models.JSONMap) (Trigger, error) {
	r.mu.RLock()
	entry, ok := r.triggers[key]
	r.mu.RUnlock()
	if !ok {
		return nil, models.NewNotFound("trigger_type", key)
	}
	return entry.factory(spec)
}

// ProfileTypes returns the registered profile keys, for diagnostics/listing.
func (r *Registry) ProfileTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.profiles))
	for k := range r.profiles {
		out = append(out, k)
	}
	return out
}

// PolicyTypes returns the registered policy keys, for diagnostics/listing.
func (r *Registry) PolicyTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.policies))
	for k := range r.policies {
		out = append(out, k)
	}
	return out
}
