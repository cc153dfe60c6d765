// Package lockmgr is the in-process lock manager: it acquires and
// releases the per-cluster/per-node mutation locks the dispatcher needs
// around an action body, enforcing the canonical acquisition order (cluster
// lock first, then node locks ascending by UUID) that prevents deadlock
// between two actions racing for an overlapping target set.
//
// The atomic primitive itself, compare-and-swap on the lock row, lives in
// the Store (internal/store/lock.go); this package only sequences calls to
// it and undoes a partial acquisition on failure: a partial hold must never
// survive across scheduling boundaries.
package lockmgr

import (
	"context"
	"sort"

	"github.com/clustermgr/engine/internal/models"
)

// Store is the narrow slice of store.LockStore the manager depends on.
type Store interface {
	LockAcquire(ctx context.Context, targetID, actionID, engineID string, exclusive bool) (bool, error)
	LockRelease(ctx context.Context, targetID, actionID string) error
	LockSteal(ctx context.Context, targetID, actionID, engineID string) error
}

// Manager sequences multi-target lock acquisition for one engine process.
type Manager struct {
	store    Store
	engineID string
}

// New returns a Manager that acquires locks on behalf of engineID.
func New(store Store, engineID string) *Manager {
	return &Manager{store: store, engineID: engineID}
}

// Held is the set of targets successfully locked for one action; Release
// undoes exactly this set.
type Held struct {
	actionID string
	targets  []string
}

// Acquire attempts to lock clusterID (if non-empty) and every id in nodeIDs,
// in canonical order: cluster first, then nodes sorted ascending. It is
// all-or-nothing: on the first failure it releases everything already
// acquired and returns ok=false with no partial hold left behind.
func (m *Manager) Acquire(ctx context.Context, actionID, clusterID string, nodeIDs []string) (*Held, bool, error) {
	ordered := make([]string, 0, len(nodeIDs)+1)
	if clusterID != "" {
		ordered = append(ordered, clusterID)
	}
	sorted := append([]string{}, nodeIDs...)
	sort.Strings(sorted)
	ordered = append(ordered, sorted...)

	held := &Held{actionID: actionID}
	for _, target := range ordered {
		ok, err := m.store.LockAcquire(ctx, target, actionID, m.engineID, true)
		if err != nil {
			m.Release(ctx, held)
			return nil, false, err
		}
		if !ok {
			m.Release(ctx, held)
			return nil, false, nil
		}
		held.targets = append(held.targets, target)
	}
	return held, true, nil
}

// Release drops every target in held. Errors are not fatal to the caller:
// a lock that outlives its action is reclaimed by recovery's heartbeat-based
// steal, so Release logs via the returned error slice rather than aborting
// partway through.
func (m *Manager) Release(ctx context.Context, held *Held) []error {
	if held == nil {
		return nil
	}
	var errs []error
	for i := len(held.targets) - 1; i >= 0; i-- {
		if err := m.store.LockRelease(ctx, held.targets[i], held.actionID); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Steal unconditionally takes over targetID for actionID; used only by
// startup/heartbeat recovery against locks whose owning engine's
// heartbeat has gone stale past 2x the interval.
func (m *Manager) Steal(ctx context.Context, targetID, actionID string) error {
	return m.store.LockSteal(ctx, targetID, actionID, m.engineID)
}

// Targets computes the (clusterID, nodeIDs) lock set an action requires.
// node is non-nil only for NODE_LEAVE,
// where the affected cluster is the node's current ClusterID rather than
// something present in the action's own Inputs.
func Targets(a *models.Action, node *models.Node) (clusterID string, nodeIDs []string) {
	switch a.Kind {
	case models.ClusterAddNodes, models.ClusterDelNodes:
		clusterID = a.TargetID
		if in, err := models.DecodeInputs[models.AddNodesInputs](a); err == nil {
			nodeIDs = in.Nodes
		}
	case models.NodeJoin:
		nodeIDs = []string{a.TargetID}
		if in, err := models.DecodeInputs[models.NodeJoinInputs](a); err == nil {
			clusterID = in.ClusterID
		}
	case models.NodeLeave:
		nodeIDs = []string{a.TargetID}
		if node != nil && node.ClusterID != nil {
			clusterID = *node.ClusterID
		}
	case models.NodeCreate, models.NodeUpdate, models.NodeDelete:
		nodeIDs = []string{a.TargetID}
	default:
		// every other kind in the table is a CLUSTER_* action targeting a cluster directly
		clusterID = a.TargetID
	}
	return clusterID, nodeIDs
}
