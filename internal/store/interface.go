// Package store is the durable repository of clusters, nodes, profiles, policies,
// cluster-policy bindings, actions, locks, and events. It exposes atomic
// compare-and-swap on action status and cluster/node ownership so that multiple
// engine processes can share one database without a second coordination layer.
package store

import (
	"context"
	"time"

	"github.com/clustermgr/engine/internal/models"
)

// ListOptions mirrors the {limit, marker, sort_keys, sort_dir, filters, project_safe,
// show_deleted} parameters every *_list RPC method accepts.
type ListOptions struct {
	Limit       int
	Marker      string // last-seen id for keyset pagination
	SortKeys    []string
	SortDir     string // "asc" | "desc"
	Filters     map[string]string
	ProjectSafe string // restrict to this project unless admin
	ShowDeleted bool
}

// ClusterStore persists Cluster rows.
type ClusterStore interface {
	CreateCluster(ctx context.Context, c *models.Cluster) error
	GetCluster(ctx context.Context, id string) (*models.Cluster, error)
	ListClusters(ctx context.Context, opts ListOptions) ([]*models.Cluster, error)
	UpdateCluster(ctx context.Context, c *models.Cluster) error
	SoftDeleteCluster(ctx context.Context, id string) error
	CountActiveNodesByCluster(ctx context.Context, clusterID string) (int, error)
	CountAttachedPolicies(ctx context.Context, clusterID string) (int, error)
}

// NodeStore persists Node rows.
type NodeStore interface {
	CreateNode(ctx context.Context, n *models.Node) error
	GetNode(ctx context.Context, id string) (*models.Node, error)
	ListNodes(ctx context.Context, opts ListOptions) ([]*models.Node, error)
	ListNodesByCluster(ctx context.Context, clusterID string) ([]*models.Node, error)
	UpdateNode(ctx context.Context, n *models.Node) error
	SoftDeleteNode(ctx context.Context, id string) error
	// NextNodeIndex returns the dense, monotonic next index for a new member of clusterID.
	NextNodeIndex(ctx context.Context, clusterID string) (int, error)
}

// ProfileStore persists Profile rows. Profiles are immutable once created; an
// update that changes Spec must insert a new row.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p *models.Profile) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	ListProfiles(ctx context.Context, opts ListOptions) ([]*models.Profile, error)
	UpdateProfileMetadata(ctx context.Context, p *models.Profile) error // name/permission/metadata only
	SoftDeleteProfile(ctx context.Context, id string) error
}

// PolicyStore persists Policy rows.
type PolicyStore interface {
	CreatePolicy(ctx context.Context, p *models.Policy) error
	GetPolicy(ctx context.Context, id string) (*models.Policy, error)
	ListPolicies(ctx context.Context, opts ListOptions) ([]*models.Policy, error)
	UpdatePolicyName(ctx context.Context, p *models.Policy) error // name only; spec is immutable
	SoftDeletePolicy(ctx context.Context, id string) error
	// CountPolicyBindings counts live bindings of policyID across all clusters,
	// for the in-use check on policy_delete.
	CountPolicyBindings(ctx context.Context, policyID string) (int, error)
}

// ClusterPolicyStore persists ClusterPolicy bindings.
type ClusterPolicyStore interface {
	CreateClusterPolicy(ctx context.Context, b *models.ClusterPolicy) error
	GetClusterPolicy(ctx context.Context, clusterID, policyID string) (*models.ClusterPolicy, error)
	ListClusterPolicies(ctx context.Context, clusterID string) ([]*models.ClusterPolicy, error)
	UpdateClusterPolicy(ctx context.Context, b *models.ClusterPolicy) error
	DeleteClusterPolicy(ctx context.Context, clusterID, policyID string) error
}

// ActionStore persists Action rows and the pipeline-specific atomic operations the
// dispatcher depends on for correctness across engine processes.
type ActionStore interface {
	CreateAction(ctx context.Context, a *models.Action) error
	GetAction(ctx context.Context, id string) (*models.Action, error)
	ListActions(ctx context.Context, opts ListOptions) ([]*models.Action, error)
	SoftDeleteAction(ctx context.Context, id string) error

	// ActionClaim atomically picks one action in status READY with no unsatisfied
	// depends-on, sets status RUNNING and owner engineID. Returns nil, nil when
	// nothing is claimable. Must be serializable across engine processes.
	ActionClaim(ctx context.Context, engineID string) (*models.Action, error)
	// ActionMark performs the terminal (or retry-suspend) transition as a
	// guarded CAS: fails with ErrNotOwner when the action is RUNNING and
	// engineID is not its current owner. Non-RUNNING transitions (e.g.
	// WAITING/READY -> CANCELLED) carry no ownership and pass "".
	ActionMark(ctx context.Context, actionID, engineID string, newStatus models.ActionStatus, outputs models.JSONMap, reason string) error
	// ActionUpdateData persists a's Data field mid-execution (planner output for
	// policy hooks), without changing status or owner.
	ActionUpdateData(ctx context.Context, actionID string, data models.JSONMap) error
	// ActionRequestCancel sets the cooperative cancellation flag.
	ActionRequestCancel(ctx context.Context, actionID string) error
	// ActionRequeue transitions a SUSPENDED action back to READY with an
	// incremented attempt count and cleared ownership (the retry edge of the
	// status DAG).
	ActionRequeue(ctx context.Context, actionID string) error
	// DependencyResolve marks actions blocked on actionID READY if all their other
	// dependencies are terminal-success.
	DependencyResolve(ctx context.Context, actionID string) error
	// ReleaseOwnerActions transitions RUNNING actions owned by engineID back to
	// READY with an incremented attempt count (startup recovery).
	ReleaseOwnerActions(ctx context.Context, engineID string) (int, error)
}

// LockStore implements the per-cluster/per-node mutation lock discipline.
type LockStore interface {
	// LockAcquire atomically attempts to acquire targetID for actionID. Returns
	// false, nil (not an error) when the target is already held incompatibly.
	LockAcquire(ctx context.Context, targetID, actionID, engineID string, exclusive bool) (bool, error)
	LockRelease(ctx context.Context, targetID, actionID string) error
	// LockSteal unconditionally replaces the holder set; used by recovery only.
	LockSteal(ctx context.Context, targetID, actionID, engineID string) error
	// BreakEngineLocks deletes every lock carried by engineID, returning how many
	// were broken; used by recovery against stale engines only.
	BreakEngineLocks(ctx context.Context, engineID string) (int, error)
	GetLock(ctx context.Context, targetID string) (*models.Lock, error)
}

// EventStore appends and serves state-transition events.
type EventStore interface {
	CreateEvent(ctx context.Context, e *models.Event) error
	ListEvents(ctx context.Context, opts ListOptions) ([]*models.Event, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

// WebhookStore persists webhook and trigger registrations.
type WebhookStore interface {
	CreateWebhook(ctx context.Context, w *models.Webhook) error
	GetWebhook(ctx context.Context, id string) (*models.Webhook, error)
	ListWebhooks(ctx context.Context, opts ListOptions) ([]*models.Webhook, error)
	SoftDeleteWebhook(ctx context.Context, id string) error

	CreateTrigger(ctx context.Context, tr *models.Trigger) error
	GetTrigger(ctx context.Context, id string) (*models.Trigger, error)
	ListTriggers(ctx context.Context, opts ListOptions) ([]*models.Trigger, error)
	SoftDeleteTrigger(ctx context.Context, id string) error
}

// HealthRegistryStore tracks per-engine heartbeats for lock-steal eligibility.
type HealthRegistryStore interface {
	UpsertHeartbeat(ctx context.Context, h *models.HealthRegistry) error
	GetHeartbeat(ctx context.Context, engineID string) (*models.HealthRegistry, error)
	ListStaleEngines(ctx context.Context, now time.Time, heartbeatInterval time.Duration, multiplier float64) ([]*models.HealthRegistry, error)
}

// CredentialStore persists opaque driver-scoped secrets.
type CredentialStore interface {
	CreateCredential(ctx context.Context, c *models.Credential) error
	GetCredential(ctx context.Context, id string) (*models.Credential, error)
}

// IdentityResolver resolves the name/UUID/short-UUID identities every RPC method
// accepts into a canonical entity id, scoped to a project and entity kind.
type IdentityResolver interface {
	// Resolve returns the full UUID for identity, which may already be a full
	// UUID, an entity name, or an unambiguous short-UUID prefix.
	Resolve(ctx context.Context, kind, projectSafe, identity string) (string, error)
}

// Store aggregates every sub-interface the service façade and dispatcher depend on.
type Store interface {
	ClusterStore
	NodeStore
	ProfileStore
	PolicyStore
	ClusterPolicyStore
	ActionStore
	LockStore
	EventStore
	WebhookStore
	HealthRegistryStore
	CredentialStore
	IdentityResolver

	Migrate(ctx context.Context) error
	Close() error
}
