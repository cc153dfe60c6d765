package dispatcher

import (
	"context"
	"time"

	"github.com/clustermgr/engine/internal/models"
	"github.com/clustermgr/engine/internal/store"
)

func listRunning() store.ListOptions {
	return store.ListOptions{Filters: map[string]string{"status": string(models.ActionRunning)}}
}

// staleEngineLoop implements engine-to-engine recovery: any engine whose
// heartbeat has gone stale past LockStealMultiplier x the interval has its
// RUNNING actions requeued and its locks broken, so the work it abandoned is
// claimable again. Every live engine runs this sweep; the requeue UPDATE is
// guarded on (owner, RUNNING) so two sweepers racing over the same corpse do
// the work once.
func (d *Dispatcher) staleEngineLoop(ctx context.Context) {
	defer d.wg.Done()
	interval := d.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	multiplier := d.cfg.LockStealMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.sweepStaleEngines(ctx, interval, multiplier)
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) sweepStaleEngines(ctx context.Context, interval time.Duration, multiplier float64) {
	stale, err := d.store.ListStaleEngines(ctx, time.Now().UTC(), interval, multiplier)
	if err != nil {
		d.log.Error("stale engine scan failed", "error", err)
		return
	}
	for _, h := range stale {
		if h.EngineID == d.cfg.EngineID {
			continue
		}
		requeued, err := d.store.ReleaseOwnerActions(ctx, h.EngineID)
		if err != nil {
			d.log.Error("failed to requeue stale engine's actions", "stale_engine", h.EngineID, "error", err)
			continue
		}
		broken, err := d.store.BreakEngineLocks(ctx, h.EngineID)
		if err != nil {
			d.log.Error("failed to break stale engine's locks", "stale_engine", h.EngineID, "error", err)
			continue
		}
		if requeued > 0 || broken > 0 {
			d.log.Info("recovered stale engine", "stale_engine", h.EngineID,
				"requeued_actions", requeued, "broken_locks", broken)
		}
	}
}

// timeoutLoop enforces per-action deadlines: an overdue RUNNING action
// first gets a cooperative cancel request; one that is still RUNNING a grace
// period past its deadline is force-transitioned to FAILED(timeout) and its
// lock targets released, so a wedged handler cannot pin a cluster forever.
// The force-fail applies only to actions this engine owns; ActionMark's owner
// CAS rejects the write for anything else, and a peer's wedged work is either
// its own watchdog's problem or, once its heartbeat lapses, the stale-engine
// sweeper's.
func (d *Dispatcher) timeoutLoop(ctx context.Context) {
	defer d.wg.Done()
	grace := d.cfg.HeartbeatInterval
	if grace <= 0 {
		grace = 10 * time.Second
	}
	ticker := time.NewTicker(grace / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.sweepOverdue(ctx, grace)
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) sweepOverdue(ctx context.Context, grace time.Duration) {
	running, err := d.store.ListActions(ctx, listRunning())
	if err != nil {
		d.log.Error("overdue scan failed", "error", err)
		return
	}
	now := time.Now().UTC()
	for _, a := range running {
		if !a.IsOverdue(now) {
			continue
		}
		if !a.Cancel {
			if err := d.store.ActionRequestCancel(ctx, a.ID); err != nil {
				d.log.Error("failed to request timeout cancel", "action_id", a.ID, "error", err)
			}
			continue
		}
		if now.Before(a.Deadline().Add(grace)) {
			continue
		}
		if a.OwnerEngine == nil || *a.OwnerEngine != d.cfg.EngineID {
			continue
		}
		if err := d.store.ActionMark(ctx, a.ID, d.cfg.EngineID, models.ActionFailed, nil, "timeout"); err != nil {
			d.log.Error("failed to fail overdue action", "action_id", a.ID, "error", err)
			continue
		}
		d.recordEvent(ctx, a, string(models.ActionRunning), string(models.ActionFailed), "timeout")
		d.releaseActionLocks(ctx, a)
	}
}

func (d *Dispatcher) releaseActionLocks(ctx context.Context, a *models.Action) {
	clusterID, nodeIDs, err := d.lockTargets(ctx, a)
	if err != nil {
		d.log.Error("failed to derive lock targets for release", "action_id", a.ID, "error", err)
		return
	}
	targets := nodeIDs
	if clusterID != "" {
		targets = append(targets, clusterID)
	}
	for _, t := range targets {
		if err := d.store.LockRelease(ctx, t, a.ID); err != nil {
			d.log.Error("failed to release lock of timed-out action", "action_id", a.ID, "target", t, "error", err)
		}
	}
}
