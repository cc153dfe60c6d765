package models

import (
	"encoding/json"
	"time"
)

// ActionKind identifies the mutation an Action performs.
type ActionKind string

const (
	ClusterCreate       ActionKind = "CLUSTER_CREATE"
	ClusterUpdate       ActionKind = "CLUSTER_UPDATE"
	ClusterDelete       ActionKind = "CLUSTER_DELETE"
	ClusterAddNodes     ActionKind = "CLUSTER_ADD_NODES"
	ClusterDelNodes     ActionKind = "CLUSTER_DEL_NODES"
	ClusterResize       ActionKind = "CLUSTER_RESIZE"
	ClusterScaleIn      ActionKind = "CLUSTER_SCALE_IN"
	ClusterScaleOut     ActionKind = "CLUSTER_SCALE_OUT"
	ClusterAttachPolicy ActionKind = "CLUSTER_ATTACH_POLICY"
	ClusterDetachPolicy ActionKind = "CLUSTER_DETACH_POLICY"
	ClusterUpdatePolicy ActionKind = "CLUSTER_UPDATE_POLICY"
	NodeCreate          ActionKind = "NODE_CREATE"
	NodeUpdate          ActionKind = "NODE_UPDATE"
	NodeDelete          ActionKind = "NODE_DELETE"
	NodeJoin            ActionKind = "NODE_JOIN"
	NodeLeave           ActionKind = "NODE_LEAVE"
)

// ObjType returns the webhook object-type a kind belongs to: the lower-cased first
// underscore-segment.
func (k ActionKind) ObjType() string {
	s := string(k)
	for i, r := range s {
		if r == '_' {
			return toLower(s[:i])
		}
	}
	return toLower(s)
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Cause is how an action came to exist.
type Cause string

const (
	CauseRPC     Cause = "RPC"
	CauseDerived Cause = "DERIVED"
	CauseRetry   Cause = "RETRY"
)

// ActionStatus is a node in the action status DAG.
type ActionStatus string

const (
	ActionInit      ActionStatus = "INIT"
	ActionWaiting   ActionStatus = "WAITING"
	ActionReady     ActionStatus = "READY"
	ActionRunning   ActionStatus = "RUNNING"
	ActionSuspended ActionStatus = "SUSPENDED"
	ActionSucceeded ActionStatus = "SUCCEEDED"
	ActionFailed    ActionStatus = "FAILED"
	ActionCancelled ActionStatus = "CANCELLED"
)

// IsTerminal reports whether s is a terminal (immutable) status.
func (s ActionStatus) IsTerminal() bool {
	return s == ActionSucceeded || s == ActionFailed || s == ActionCancelled
}

// IsClaimable reports whether the dispatcher may observe an action in this status.
func (s ActionStatus) IsClaimable() bool {
	return s == ActionReady || s == ActionRunning
}

// validTransitions encodes the status DAG: INIT -> (WAITING|READY) -> RUNNING ->
// (SUCCEEDED|FAILED|CANCELLED), with an optional RUNNING -> SUSPENDED -> READY retry loop.
var validTransitions = map[ActionStatus][]ActionStatus{
	ActionInit:      {ActionWaiting, ActionReady, ActionCancelled},
	ActionWaiting:   {ActionReady, ActionCancelled},
	ActionReady:     {ActionRunning, ActionCancelled},
	ActionRunning:   {ActionSucceeded, ActionFailed, ActionCancelled, ActionSuspended},
	ActionSuspended: {ActionReady, ActionFailed, ActionCancelled},
	ActionSucceeded: {},
	ActionFailed:    {},
	ActionCancelled: {},
}

// ValidTransition reports whether from -> to is a legal edge in the status DAG.
func ValidTransition(from, to ActionStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Action is a durable, asynchronous unit of work against one target.
type Action struct {
	ID          string       `json:"id" db:"id"`
	TargetID    string       `json:"target_id" db:"target_id"`
	Kind        ActionKind   `json:"kind" db:"kind"`
	Cause       Cause        `json:"cause" db:"cause"`
	Inputs      JSONMap      `json:"inputs" db:"inputs"`
	Outputs     JSONMap      `json:"outputs" db:"outputs"`
	Status      ActionStatus `json:"status" db:"status"`
	DependsOn   StringSlice  `json:"depends_on" db:"depends_on"`
	DependedBy  StringSlice  `json:"depended_by" db:"depended_by"`
	OwnerEngine *string      `json:"owner_engine,omitempty" db:"owner_engine"`
	Attempt     int          `json:"attempt" db:"attempt"`
	Cancel      bool         `json:"cancel" db:"cancel"` // cooperative cancellation flag
	StartedAt   *time.Time   `json:"started_at,omitempty" db:"started_at"`
	EndedAt     *time.Time   `json:"ended_at,omitempty" db:"ended_at"`
	Timeout     int          `json:"timeout" db:"timeout"` // seconds; 0 = no deadline
	// Data holds ephemeral planner output consumed by policy hooks and the body,
	// e.g. the "creation" or "deletion" descriptor for CLUSTER_RESIZE/SCALE_IN.
	Data      JSONMap   `json:"data" db:"data"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Deadline returns the time by which the action must complete, or the zero Time if
// the action carries no timeout.
func (a *Action) Deadline() time.Time {
	if a.Timeout <= 0 || a.StartedAt == nil {
		return time.Time{}
	}
	return a.StartedAt.Add(time.Duration(a.Timeout) * time.Second)
}

// IsOverdue reports whether the action has exceeded its timeout as of now.
func (a *Action) IsOverdue(now time.Time) bool {
	d := a.Deadline()
	return !d.IsZero() && now.After(d)
}

// DependenciesSatisfied reports whether every dependency in depsStatus is a
// terminal success, given a map from dependency action-id to its current status.
func (a *Action) DependenciesSatisfied(depsStatus map[string]ActionStatus) bool {
	for _, id := range a.DependsOn {
		if depsStatus[id] != ActionSucceeded {
			return false
		}
	}
	return true
}

// DecodeInputs unmarshals a's Inputs into the typed payload T associated with a.Kind,
// implementing the tagged-union representation of action.inputs described in the
// design notes: the dict shape depends on Kind, so callers decode through this
// generic round-trip rather than asserting field-by-field.
func DecodeInputs[T any](a *Action) (T, error) {
	var out T
	b, err := json.Marshal(a.Inputs)
	if err != nil {
		return out, NewInternal("marshal action inputs", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, NewInvalidParameter("inputs", string(b))
	}
	return out, nil
}

// EncodeInputs round-trips a typed payload back into the JSONMap stored on the row.
func EncodeInputs(payload interface{}) (JSONMap, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, NewInternal("marshal inputs payload", err)
	}
	m := JSONMap{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, NewInternal("unmarshal inputs payload", err)
	}
	return m, nil
}

// Typed input payloads, one per action kind family that carries a distinct shape.

// AddNodesInputs backs CLUSTER_ADD_NODES / CLUSTER_DEL_NODES.
type AddNodesInputs struct {
	Nodes []string `json:"nodes"`
}

// ResizeInputs backs CLUSTER_RESIZE.
type ResizeInputs struct {
	AdjType string   `json:"adj_type,omitempty"`
	Number  *float64 `json:"number,omitempty"`
	MinSize *int     `json:"min_size,omitempty"`
	MaxSize *int     `json:"max_size,omitempty"`
	MinStep *int     `json:"min_step,omitempty"`
	Strict  bool     `json:"strict,omitempty"`
}

// ScaleInputs backs CLUSTER_SCALE_IN / CLUSTER_SCALE_OUT.
type ScaleInputs struct {
	Count int `json:"count"`
}

// AttachPolicyInputs backs CLUSTER_ATTACH_POLICY / CLUSTER_UPDATE_POLICY.
type AttachPolicyInputs struct {
	PolicyID string `json:"policy_id"`
	Priority *int   `json:"priority,omitempty"`
	Level    *int   `json:"level,omitempty"`
	Cooldown *int   `json:"cooldown,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// DetachPolicyInputs backs CLUSTER_DETACH_POLICY.
type DetachPolicyInputs struct {
	PolicyID string `json:"policy_id"`
}

// NodeJoinInputs backs NODE_JOIN.
type NodeJoinInputs struct {
	ClusterID string `json:"cluster_id"`
}

// DeletionPlan is the shape persisted at action.data.deletion.
type DeletionPlan struct {
	Count      int      `json:"count"`
	Candidates []string `json:"candidates"`
}

// CreationPlan is the shape persisted at action.data.creation.
type CreationPlan struct {
	Count int `json:"count"`
}
