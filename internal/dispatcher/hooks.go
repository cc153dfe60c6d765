package dispatcher

import (
	"context"
	"fmt"

	"github.com/clustermgr/engine/internal/models"
	"github.com/clustermgr/engine/internal/registry"
)

// runPreHooks invokes every enabled binding's BEFORE hook for a.Kind in
// ascending priority order (bindings arrive pre-sorted by the store's
// `ORDER BY priority ASC, created_at ASC`, ties broken by creation time). A
// hook that marks action.data.status = CHECK_ERROR aborts without running
// the remaining hooks or the body.
func (d *Dispatcher) runPreHooks(ctx context.Context, clusterID string, a *models.Action, bindings []*models.ClusterPolicy) error {
	for _, b := range bindings {
		pol, meta, err := d.loadPolicy(ctx, b)
		if err != nil {
			return err
		}
		if !meta.TargetsPhaseKind(models.PhaseBefore, a.Kind) {
			continue
		}
		if err := pol.PreOp(ctx, clusterID, a); err != nil {
			if status, _ := a.Data["status"].(string); status == "CHECK_ERROR" {
				reason, _ := a.Data["reason"].(string)
				if reason == "" {
					reason = err.Error()
				}
				return fmt.Errorf("pre-hook check error: %s", reason)
			}
			return err
		}
	}
	return nil
}

// runPostHooks invokes every enabled binding's AFTER hook. A hook error
// degrades the cluster to WARNING but never reverts or fails the action;
// the body already committed.
func (d *Dispatcher) runPostHooks(ctx context.Context, clusterID string, a *models.Action, bindings []*models.ClusterPolicy) {
	for _, b := range bindings {
		pol, meta, err := d.loadPolicy(ctx, b)
		if err != nil {
			d.log.Error("post-hook policy load failed", "action_id", a.ID, "policy_id", b.PolicyID, "error", err)
			continue
		}
		if !meta.TargetsPhaseKind(models.PhaseAfter, a.Kind) {
			continue
		}
		if err := pol.PostOp(ctx, clusterID, a); err != nil {
			d.log.Warn("post-hook failed, degrading cluster", "action_id", a.ID, "cluster_id", clusterID, "policy_id", b.PolicyID, "error", err)
			d.degradeCluster(ctx, clusterID, err.Error())
		}
	}
}

func (d *Dispatcher) loadPolicy(ctx context.Context, b *models.ClusterPolicy) (registry.Policy, models.PolicyMeta, error) {
	row, err := d.store.GetPolicy(ctx, b.PolicyID)
	if err != nil {
		return nil, models.PolicyMeta{}, err
	}
	pol, err := d.registry.Policy(row.Type, row.ID, row.Spec)
	if err != nil {
		return nil, models.PolicyMeta{}, err
	}
	return pol, pol.Meta(), nil
}

func (d *Dispatcher) degradeCluster(ctx context.Context, clusterID, reason string) {
	c, err := d.store.GetCluster(ctx, clusterID)
	if err != nil {
		d.log.Error("failed to load cluster for degrade", "cluster_id", clusterID, "error", err)
		return
	}
	old := c.Status
	c.Status = models.ClusterWarning
	c.StatusReason = reason
	if err := d.store.UpdateCluster(ctx, c); err != nil {
		d.log.Error("failed to degrade cluster", "cluster_id", clusterID, "error", err)
		return
	}
	ev := models.NewStatusChangeEvent(clusterID, "cluster", string(old), string(models.ClusterWarning), reason)
	if err := d.store.CreateEvent(ctx, ev); err != nil {
		d.log.Error("failed to record degrade event", "cluster_id", clusterID, "error", err)
	}
}
