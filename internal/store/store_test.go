package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustermgr/engine/internal/models"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func readyAction(kind models.ActionKind, target string) *models.Action {
	return &models.Action{TargetID: target, Kind: kind, Cause: models.CauseRPC, Status: models.ActionReady}
}

func TestActionClaim_BasicCAS(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := readyAction(models.ClusterCreate, "c1")
	require.NoError(t, st.CreateAction(ctx, a))

	claimed, err := st.ActionClaim(ctx, "engine-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, a.ID, claimed.ID)
	assert.Equal(t, models.ActionRunning, claimed.Status)
	require.NotNil(t, claimed.OwnerEngine)
	assert.Equal(t, "engine-1", *claimed.OwnerEngine)
	assert.NotNil(t, claimed.StartedAt)

	// Nothing else claimable.
	again, err := st.ActionClaim(ctx, "engine-2")
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestActionClaim_RespectsDependencies(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	dep := readyAction(models.NodeCreate, "n1")
	require.NoError(t, st.CreateAction(ctx, dep))
	child := readyAction(models.ClusterCreate, "c1")
	child.DependsOn = models.StringSlice{dep.ID}
	require.NoError(t, st.CreateAction(ctx, child))

	// Only the dependency is claimable while it is unresolved.
	first, err := st.ActionClaim(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, dep.ID, first.ID)

	second, err := st.ActionClaim(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, second, "child blocked until dependency succeeds")

	require.NoError(t, st.ActionMark(ctx, dep.ID, "e1", models.ActionSucceeded, nil, ""))
	require.NoError(t, st.DependencyResolve(ctx, dep.ID))

	third, err := st.ActionClaim(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, third)
	assert.Equal(t, child.ID, third.ID)
}

func TestDependencyResolve_PromotesWaiting(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	d1 := readyAction(models.NodeCreate, "n1")
	require.NoError(t, st.CreateAction(ctx, d1))
	d2 := readyAction(models.NodeCreate, "n2")
	require.NoError(t, st.CreateAction(ctx, d2))
	child := &models.Action{
		TargetID: "c1", Kind: models.ClusterCreate, Cause: models.CauseDerived,
		Status: models.ActionWaiting, DependsOn: models.StringSlice{d1.ID, d2.ID},
	}
	require.NoError(t, st.CreateAction(ctx, child))

	require.NoError(t, st.ActionMark(ctx, d1.ID, "e1", models.ActionSucceeded, nil, ""))
	require.NoError(t, st.DependencyResolve(ctx, d1.ID))
	got, err := st.GetAction(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionWaiting, got.Status, "one of two dependencies is not enough")

	require.NoError(t, st.ActionMark(ctx, d2.ID, "e1", models.ActionSucceeded, nil, ""))
	require.NoError(t, st.DependencyResolve(ctx, d2.ID))
	got, err = st.GetAction(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionReady, got.Status)
}

func TestActionRequeue_BumpsAttempt(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := readyAction(models.ClusterResize, "c1")
	require.NoError(t, st.CreateAction(ctx, a))
	claimed, err := st.ActionClaim(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, st.ActionMark(ctx, a.ID, "e1", models.ActionSuspended, nil, "transient"))
	require.NoError(t, st.ActionRequeue(ctx, a.ID))

	got, err := st.GetAction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionReady, got.Status)
	assert.Equal(t, 1, got.Attempt)
	assert.Nil(t, got.OwnerEngine)
}

func TestActionMark_OwnerCAS(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := readyAction(models.ClusterScaleOut, "c1")
	require.NoError(t, st.CreateAction(ctx, a))
	_, err := st.ActionClaim(ctx, "engine-a")
	require.NoError(t, err)

	// A non-owner cannot transition a RUNNING action.
	err = st.ActionMark(ctx, a.ID, "engine-b", models.ActionSucceeded, nil, "")
	assert.ErrorIs(t, err, ErrNotOwner)
	got, err := st.GetAction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionRunning, got.Status)

	// Recovery requeues engine-a's work and engine-b re-claims it; engine-a's
	// late terminal write must not clobber the new claim.
	_, err = st.ReleaseOwnerActions(ctx, "engine-a")
	require.NoError(t, err)
	_, err = st.ActionClaim(ctx, "engine-b")
	require.NoError(t, err)
	err = st.ActionMark(ctx, a.ID, "engine-a", models.ActionSucceeded, nil, "")
	assert.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, st.ActionMark(ctx, a.ID, "engine-b", models.ActionSucceeded, nil, ""))

	// Terminal actions are immutable, even for the last owner.
	assert.Error(t, st.ActionMark(ctx, a.ID, "engine-b", models.ActionFailed, nil, "late"))
}

func TestReleaseOwnerActions_StartupRecovery(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := readyAction(models.ClusterCreate, "c1")
	require.NoError(t, st.CreateAction(ctx, a))
	_, err := st.ActionClaim(ctx, "engine-old")
	require.NoError(t, err)

	n, err := st.ReleaseOwnerActions(ctx, "engine-old")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetAction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionReady, got.Status)
	assert.Equal(t, 1, got.Attempt)
}

func TestLockAcquire_ExclusiveSemantics(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ok, err := st.LockAcquire(ctx, "c1", "a1", "e1", true)
	require.NoError(t, err)
	assert.True(t, ok)

	// Re-entry by the same action is allowed; a different action is not.
	ok, err = st.LockAcquire(ctx, "c1", "a1", "e1", true)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = st.LockAcquire(ctx, "c1", "a2", "e1", true)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.LockRelease(ctx, "c1", "a1"))
	ok, err = st.LockAcquire(ctx, "c1", "a2", "e1", true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockSteal_And_BreakEngineLocks(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ok, err := st.LockAcquire(ctx, "c1", "a1", "engine-dead", true)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, st.LockSteal(ctx, "c1", "a2", "engine-live"))
	l, err := st.GetLock(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, l.HeldBy("a2"))
	assert.Equal(t, "engine-live", l.Engine)

	n, err := st.BreakEngineLocks(ctx, "engine-live")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	l, err = st.GetLock(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, l.Holders)
}

func TestIdentityResolve_ShortPrefixRules(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	p := &models.Profile{Name: "p1", Type: "container.pod", Version: "1.0"}
	require.NoError(t, st.CreateProfile(ctx, p))

	id, err := st.Resolve(ctx, "profile", "", "p1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, id)

	id, err = st.Resolve(ctx, "profile", "", p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, id)

	id, err = st.Resolve(ctx, "profile", "", p.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, p.ID, id)

	// Prefixes shorter than the minimum are rejected as not-found rather than
	// scanned.
	_, err = st.Resolve(ctx, "profile", "", p.ID[:4])
	assert.Error(t, err)
}

func TestHealthRegistry_StaleScan(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	fresh := &models.HealthRegistry{EngineID: "e-fresh", LastHeartbeat: time.Now().UTC()}
	require.NoError(t, st.UpsertHeartbeat(ctx, fresh))
	stale := &models.HealthRegistry{EngineID: "e-stale", LastHeartbeat: time.Now().UTC().Add(-time.Minute)}
	require.NoError(t, st.UpsertHeartbeat(ctx, stale))

	got, err := st.ListStaleEngines(ctx, time.Now().UTC(), 10*time.Second, 2.0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e-stale", got[0].EngineID)
}
