// Package dispatcher is the per-engine worker pool: it claims READY actions
// from the Store, acquires the locks the action's target set requires, runs
// the policy pre-hooks, executes the action body, runs the post-hooks, and
// persists the outcome.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/clustermgr/engine/internal/lockmgr"
	"github.com/clustermgr/engine/internal/models"
	"github.com/clustermgr/engine/internal/registry"
	"github.com/clustermgr/engine/internal/store"
)

// Store is the slice of store.Store the dispatcher depends on directly; kept
// narrow so tests can supply an in-memory fake instead of a real database.
type Store interface {
	store.ActionStore
	store.ClusterStore
	store.NodeStore
	store.ProfileStore
	store.ClusterPolicyStore
	store.PolicyStore
	store.EventStore
	store.LockStore
	store.HealthRegistryStore
}

// Config tunes the worker pool per internal/config's dispatcher_* fields.
type Config struct {
	EngineID            string
	Workers             int
	PollInterval        time.Duration
	MaxBackoff          time.Duration
	HeartbeatInterval   time.Duration
	LockStealMultiplier float64
}

// Dispatcher owns the worker goroutines that drain the action pipeline.
type Dispatcher struct {
	store    Store
	locks    *lockmgr.Manager
	registry *registry.Registry
	cfg      Config
	log      *slog.Logger

	stopCh   chan struct{}
	notifyCh chan string
	wg       sync.WaitGroup
}

// New constructs a Dispatcher. registry supplies the policy implementations
// pre/post hooks run through; it is read-only from the dispatcher's
// perspective (see internal/registry's Init-then-freeze contract).
func New(st Store, locks *lockmgr.Manager, reg *registry.Registry, cfg Config, log *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	return &Dispatcher{
		store:    st,
		locks:    locks,
		registry: reg,
		cfg:      cfg,
		log:      log,
		stopCh:   make(chan struct{}),
		notifyCh: make(chan string, 256),
	}
}

// Notify wakes an idle worker after the facade (or a handler spawning child
// actions) has persisted a new READY action. Best-effort: when the channel is
// full the poll loop's backoff picks the action up instead, so a send never
// blocks the caller.
func (d *Dispatcher) Notify(actionID string) {
	select {
	case d.notifyCh <- actionID:
	default:
	}
}

// Start recovers actions orphaned by a previous crash of this engine id, then
// launches cfg.Workers claim loops and a heartbeat loop. It returns
// immediately; call Stop to wind the goroutines down.
func (d *Dispatcher) Start(ctx context.Context) error {
	n, err := d.store.ReleaseOwnerActions(ctx, d.cfg.EngineID)
	if err != nil {
		return err
	}
	if n > 0 {
		d.log.Info("recovered orphaned actions", "count", n, "engine_id", d.cfg.EngineID)
	}
	if broken, err := d.store.BreakEngineLocks(ctx, d.cfg.EngineID); err != nil {
		return err
	} else if broken > 0 {
		d.log.Info("broke locks left by prior run", "count", broken, "engine_id", d.cfg.EngineID)
	}

	d.wg.Add(1)
	go d.heartbeatLoop(ctx)

	d.wg.Add(1)
	go d.staleEngineLoop(ctx)

	d.wg.Add(1)
	go d.timeoutLoop(ctx)

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.workerLoop(ctx, i)
	}
	return nil
}

// Stop signals every goroutine to exit and waits for them to drain.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

func (d *Dispatcher) heartbeatLoop(ctx context.Context) {
	defer d.wg.Done()
	interval := d.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	beat := func() {
		h := &models.HealthRegistry{EngineID: d.cfg.EngineID, LastHeartbeat: time.Now()}
		if err := d.store.UpsertHeartbeat(ctx, h); err != nil {
			d.log.Error("heartbeat upsert failed", "error", err)
		}
	}
	beat()
	for {
		select {
		case <-ticker.C:
			beat()
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// workerLoop repeatedly claims and processes one action at a time, backing
// off exponentially (capped at MaxBackoff) whenever nothing is claimable so
// idle workers don't hammer the store.
func (d *Dispatcher) workerLoop(ctx context.Context, id int) {
	defer d.wg.Done()
	backoff := d.cfg.PollInterval

	for {
		select {
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		action, err := d.store.ActionClaim(ctx, d.cfg.EngineID)
		if err != nil {
			d.log.Error("action claim failed", "worker", id, "error", err)
			backoff = nextBackoff(backoff, d.cfg.MaxBackoff)
			sleep(d.stopCh, backoff)
			continue
		}
		if action == nil {
			backoff = nextBackoff(backoff, d.cfg.MaxBackoff)
			d.idle(backoff)
			continue
		}

		backoff = d.cfg.PollInterval
		d.process(ctx, action)
	}
}

// idle waits for the backoff to elapse, a Notify to arrive, or shutdown,
// whichever comes first.
func (d *Dispatcher) idle(backoff time.Duration) {
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-d.notifyCh:
	case <-d.stopCh:
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

func sleep(stop chan struct{}, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-stop:
	}
}
