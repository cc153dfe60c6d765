package dispatcher

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/clustermgr/engine/internal/lockmgr"
	"github.com/clustermgr/engine/internal/models"
	"github.com/clustermgr/engine/internal/pkg/metrics"
	"github.com/clustermgr/engine/internal/pkg/tracing"
)

// process runs one claimed action end to end: lock acquisition, planning,
// pre-hooks, body, post-hooks, lock release, and the terminal status write.
// It never returns an error: every failure path ends in an ActionMark call,
// since by the time we're here the action has already left the store's
// hands and we own reporting its outcome.
func (d *Dispatcher) process(ctx context.Context, a *models.Action) {
	start := time.Now()
	metrics.ActionsClaimedTotal.WithLabelValues(string(a.Kind)).Inc()
	metrics.ActionsInFlight.Inc()
	defer func() {
		metrics.ActionsInFlight.Dec()
		metrics.ActionDurationSeconds.WithLabelValues(string(a.Kind)).Observe(time.Since(start).Seconds())
	}()

	ctx, span := tracing.StartSpanWithAttributes(ctx, "dispatcher.process",
		attribute.String("action.id", a.ID),
		attribute.String("action.kind", string(a.Kind)),
		attribute.String("action.target_id", a.TargetID),
	)
	defer span.End()

	runCtx := ctx
	if dl := a.Deadline(); !dl.IsZero() {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(ctx, dl)
		defer cancel()
	}

	clusterID, nodeIDs, err := d.lockTargets(runCtx, a)
	if err != nil {
		d.fail(ctx, a, err)
		return
	}

	held, ok, err := d.locks.Acquire(runCtx, a.ID, clusterID, nodeIDs)
	if err != nil {
		d.fail(ctx, a, err)
		return
	}
	if !ok {
		metrics.LockContentionTotal.Inc()
		d.suspend(ctx, a, "target locked by another action")
		return
	}
	defer func() {
		// Lock release must outlive a cancelled runCtx, so always use a fresh
		// background context so a deadline expiry doesn't strand the lock.
		d.locks.Release(context.Background(), held)
	}()

	if a.Cancel {
		d.cancel(ctx, a, "cancelled before execution")
		return
	}

	// Node-targeted kinds lock only the node, but their hooks fire against the
	// owning cluster's bindings (a NODE_DELETE of a member still has to leave
	// the member's LB pool first).
	hookClusterID := clusterID
	if hookClusterID == "" {
		if n, err := d.store.GetNode(runCtx, a.TargetID); err == nil && n.ClusterID != nil {
			hookClusterID = *n.ClusterID
		}
	}
	bindings, err := d.bindingsFor(runCtx, hookClusterID)
	if err != nil {
		d.fail(ctx, a, err)
		return
	}

	if err := d.plan(runCtx, a); err != nil {
		d.fail(ctx, a, err)
		return
	}

	if err := d.runPreHooks(runCtx, hookClusterID, a, bindings); err != nil {
		d.fail(ctx, a, err)
		return
	}

	outputs, err := d.runBody(runCtx, a)
	if err != nil {
		switch {
		case errors.Is(err, errCancelled):
			d.cancel(ctx, a, "cancelled by request")
		case errors.Is(err, context.DeadlineExceeded):
			d.fail(ctx, a, models.NewBadRequest("timeout"))
		default:
			d.failWithRetry(ctx, a, err)
		}
		return
	}

	// Post-hooks read the body's outputs (e.g. node_ids for pool enrollment),
	// so they must be on the action before the hooks fire.
	a.Outputs = outputs
	d.runPostHooks(runCtx, hookClusterID, a, bindings)

	d.succeed(ctx, a, outputs)
}

// lockTargets derives the (cluster, nodes) lock set, fetching the
// owning node for NODE_LEAVE since its cluster isn't named in its own inputs.
func (d *Dispatcher) lockTargets(ctx context.Context, a *models.Action) (clusterID string, nodeIDs []string, err error) {
	var node *models.Node
	if a.Kind == models.NodeLeave {
		node, err = d.store.GetNode(ctx, a.TargetID)
		if err != nil {
			return "", nil, err
		}
	}
	clusterID, nodeIDs = lockmgr.Targets(a, node)
	return clusterID, nodeIDs, nil
}

func (d *Dispatcher) bindingsFor(ctx context.Context, clusterID string) ([]*models.ClusterPolicy, error) {
	if clusterID == "" {
		return nil, nil
	}
	bindings, err := d.store.ListClusterPolicies(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ClusterPolicy, 0, len(bindings))
	for _, b := range bindings {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out, nil
}

func (d *Dispatcher) succeed(ctx context.Context, a *models.Action, outputs models.JSONMap) {
	if err := d.store.ActionMark(ctx, a.ID, d.cfg.EngineID, models.ActionSucceeded, outputs, ""); err != nil {
		d.log.Error("failed to mark action succeeded", "action_id", a.ID, "error", err)
		return
	}
	metrics.ActionsCompletedTotal.WithLabelValues(string(a.Kind), string(models.ActionSucceeded)).Inc()
	d.recordEvent(ctx, a, string(models.ActionRunning), string(models.ActionSucceeded), "")
	if err := d.store.DependencyResolve(ctx, a.ID); err != nil {
		d.log.Error("dependency resolve failed", "action_id", a.ID, "error", err)
	}
}

func (d *Dispatcher) fail(ctx context.Context, a *models.Action, cause error) {
	reason := cause.Error()
	if err := d.store.ActionMark(ctx, a.ID, d.cfg.EngineID, models.ActionFailed, nil, reason); err != nil {
		d.log.Error("failed to mark action failed", "action_id", a.ID, "error", err)
		return
	}
	metrics.ActionsCompletedTotal.WithLabelValues(string(a.Kind), string(models.ActionFailed)).Inc()
	d.recordEvent(ctx, a, string(models.ActionRunning), string(models.ActionFailed), reason)
}

func (d *Dispatcher) cancel(ctx context.Context, a *models.Action, reason string) {
	if err := d.store.ActionMark(ctx, a.ID, d.cfg.EngineID, models.ActionCancelled, nil, reason); err != nil {
		d.log.Error("failed to mark action cancelled", "action_id", a.ID, "error", err)
		return
	}
	metrics.ActionsCompletedTotal.WithLabelValues(string(a.Kind), string(models.ActionCancelled)).Inc()
	d.recordEvent(ctx, a, string(models.ActionRunning), string(models.ActionCancelled), reason)
}

// failWithRetry applies the bounded-attempts-then-FAILED retry policy:
// a body error suspends the action back to READY (at most maxAttempts-1
// times), and a body error on the maxAttempts-th attempt reports a terminal
// FAILED.
const maxAttempts = 3

func (d *Dispatcher) failWithRetry(ctx context.Context, a *models.Action, cause error) {
	if a.Attempt+1 < maxAttempts {
		d.suspend(ctx, a, cause.Error())
		return
	}
	d.fail(ctx, a, cause)
}

func (d *Dispatcher) suspend(ctx context.Context, a *models.Action, reason string) {
	if err := d.store.ActionMark(ctx, a.ID, d.cfg.EngineID, models.ActionSuspended, nil, reason); err != nil {
		d.log.Error("failed to suspend action", "action_id", a.ID, "error", err)
		return
	}
	// The retry loop (SUSPENDED -> READY) runs on a short, fixed backoff
	// rather than being re-queued immediately, giving a transient lock
	// contention or driver error room to clear.
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sleep(d.stopCh, d.cfg.PollInterval*4)
		if err := d.store.ActionRequeue(context.Background(), a.ID); err != nil {
			d.log.Error("failed to requeue suspended action", "action_id", a.ID, "error", err)
		}
	}()
}

func (d *Dispatcher) recordEvent(ctx context.Context, a *models.Action, oldStatus, newStatus, reason string) {
	ev := models.NewStatusChangeEvent(a.ID, "action", oldStatus, newStatus, reason)
	ev.ActionID = &a.ID
	if err := d.store.CreateEvent(ctx, ev); err != nil {
		d.log.Error("failed to record event", "action_id", a.ID, "error", err)
	}
}
