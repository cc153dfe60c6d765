package dispatcher

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustermgr/engine/internal/driver"
	"github.com/clustermgr/engine/internal/driver/memdriver"
	"github.com/clustermgr/engine/internal/lockmgr"
	"github.com/clustermgr/engine/internal/models"
	"github.com/clustermgr/engine/internal/policy"
	"github.com/clustermgr/engine/internal/registry"
	"github.com/clustermgr/engine/internal/service"
	"github.com/clustermgr/engine/internal/store"
)

// testEnv is one engine process over a throwaway SQLite store: real Store,
// real dispatcher, real facade, in-process drivers.
type testEnv struct {
	st   store.Store
	reg  *registry.Registry
	mem  *memdriver.Driver
	disp *Dispatcher
	svc  *service.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLB(t, nil)
}

// newTestEnvWithLB lets a test swap the LBaaS driver the lb_member policy
// drives (e.g. one that refuses RemoveMember).
func newTestEnvWithLB(t *testing.T, lbaas driver.LBaaSDriver) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	mem := memdriver.New()
	if lbaas == nil {
		lbaas = mem
	}
	reg := registry.New()
	require.NoError(t, reg.RegisterProfile("container.pod@1.0", "container.pod",
		func(spec models.JSONMap) (registry.ProfileDriver, error) { return mem, nil }))
	lbFactory := policy.New(lbaas, st, st)
	require.NoError(t, reg.RegisterPolicy(policy.TypeKey, "lb_member",
		func(policyID string, spec models.JSONMap) (registry.Policy, error) { return lbFactory(policyID, spec) }))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	disp := New(st, lockmgr.New(st, "engine-test"), reg, Config{
		EngineID:          "engine-test",
		Workers:           4,
		PollInterval:      10 * time.Millisecond,
		MaxBackoff:        50 * time.Millisecond,
		HeartbeatInterval: time.Second,
	}, log)
	require.NoError(t, disp.Start(context.Background()))
	t.Cleanup(disp.Stop)

	svc := service.New(st, reg, disp, nil, log)
	return &testEnv{st: st, reg: reg, mem: mem, disp: disp, svc: svc}
}

func (e *testEnv) createProfile(t *testing.T) *models.Profile {
	t.Helper()
	spec, _ := json.Marshal(map[string]string{"image": "nginx"})
	p, err := e.svc.ProfileCreate(context.Background(), service.ProfileCreateRequest{
		Name: "p1", Type: "container.pod", Version: "1.0", Spec: spec,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) createLBPolicy(t *testing.T) *models.Policy {
	t.Helper()
	spec, _ := json.Marshal(map[string]int{"port": 80})
	p, err := e.svc.PolicyCreate(context.Background(), service.PolicyCreateRequest{
		Name: "lb", Type: policy.TypeKey, Spec: spec,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) waitAction(t *testing.T, id string) *models.Action {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		a, err := e.st.GetAction(context.Background(), id)
		require.NoError(t, err)
		if a.Status.IsTerminal() {
			return a
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("action %s did not reach a terminal status", id)
	return nil
}

func (e *testEnv) createCluster(t *testing.T, desired int) *models.Cluster {
	t.Helper()
	e.createProfile(t)
	res, err := e.svc.ClusterCreate(context.Background(), service.ClusterCreateRequest{
		Name: "c1", Profile: "p1", DesiredCapacity: desired,
	})
	require.NoError(t, err)
	a := e.waitAction(t, res.Action)
	require.Equal(t, models.ActionSucceeded, a.Status, "cluster create outputs: %v", a.Outputs)
	c, err := e.st.GetCluster(context.Background(), res.Cluster.ID)
	require.NoError(t, err)
	return c
}

func (e *testEnv) memberCount(t *testing.T, clusterID string) int {
	t.Helper()
	n, err := e.st.CountActiveNodesByCluster(context.Background(), clusterID)
	require.NoError(t, err)
	return n
}

func TestClusterCreate_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCluster(t, 2)

	assert.Equal(t, models.ClusterActive, c.Status)
	assert.Equal(t, 2, env.memberCount(t, c.ID))

	// Two DERIVED NODE_CREATE children, all succeeded.
	actions, err := env.st.ListActions(context.Background(), store.ListOptions{
		Filters: map[string]string{"status": string(models.ActionSucceeded)},
	})
	require.NoError(t, err)
	var nodeCreates int
	for _, a := range actions {
		if a.Kind == models.NodeCreate {
			nodeCreates++
			assert.Equal(t, models.CauseDerived, a.Cause)
		}
	}
	assert.Equal(t, 2, nodeCreates)

	// Members got dense 1-based indexes and driver-assigned physical ids.
	nodes, err := env.st.ListNodesByCluster(context.Background(), c.ID)
	require.NoError(t, err)
	seen := map[int]bool{}
	for _, n := range nodes {
		assert.Equal(t, models.NodeActive, n.Status)
		assert.NotEmpty(t, n.PhysicalID)
		seen[n.Index] = true
	}
	assert.True(t, seen[1] && seen[2], "indexes should be 1 and 2, got %v", seen)
}

func TestLBPolicy_AttachThenScaleOut(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCluster(t, 2)
	pol := env.createLBPolicy(t)

	ref, err := env.svc.ClusterPolicyAttach(context.Background(), c.ID, service.PolicyAttachRequest{Policy: pol.ID})
	require.NoError(t, err)
	require.Equal(t, models.ActionSucceeded, env.waitAction(t, ref.Action).Status)

	binding, err := env.st.GetClusterPolicy(context.Background(), c.ID, pol.ID)
	require.NoError(t, err)
	poolID, _ := binding.Data["pool"].(string)
	require.NotEmpty(t, poolID)
	assert.Len(t, env.mem.PoolMembers(poolID), 2, "attach enrolls the existing members")

	ref, err = env.svc.ClusterScaleOut(context.Background(), c.ID, 1)
	require.NoError(t, err)
	a := env.waitAction(t, ref.Action)
	require.Equal(t, models.ActionSucceeded, a.Status, "outputs: %v", a.Outputs)

	assert.Equal(t, 3, env.memberCount(t, c.ID))
	assert.Len(t, env.mem.PoolMembers(poolID), 3, "post-hook enrolls the new member")
}

func TestResize_PercentageScaleIn(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCluster(t, 3)
	pol := env.createLBPolicy(t)

	ref, err := env.svc.ClusterPolicyAttach(context.Background(), c.ID, service.PolicyAttachRequest{Policy: pol.ID})
	require.NoError(t, err)
	require.Equal(t, models.ActionSucceeded, env.waitAction(t, ref.Action).Status)
	binding, err := env.st.GetClusterPolicy(context.Background(), c.ID, pol.ID)
	require.NoError(t, err)
	poolID, _ := binding.Data["pool"].(string)

	number := -50.0
	step := 1
	ref, err = env.svc.ClusterResize(context.Background(), c.ID, service.ClusterResizeRequest{
		AdjType: "CHANGE_IN_PERCENTAGE", Number: &number, MinStep: &step, Strict: true,
	})
	require.NoError(t, err)
	a := env.waitAction(t, ref.Action)
	require.Equal(t, models.ActionSucceeded, a.Status, "outputs: %v", a.Outputs)

	// -50% of 3 rounds to a deletion of 2.
	assert.Equal(t, 1, env.memberCount(t, c.ID))
	assert.Len(t, env.mem.PoolMembers(poolID), 1, "deleted members left the pool")

	c2, err := env.st.GetCluster(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c2.DesiredCapacity)
	assert.Equal(t, models.ClusterActive, c2.Status)
}

func TestClusterDelete_BlockedByAttachedPolicy(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCluster(t, 1)
	pol := env.createLBPolicy(t)

	ref, err := env.svc.ClusterPolicyAttach(context.Background(), c.ID, service.PolicyAttachRequest{Policy: pol.ID})
	require.NoError(t, err)
	require.Equal(t, models.ActionSucceeded, env.waitAction(t, ref.Action).Status)

	_, err = env.svc.ClusterDelete(context.Background(), c.ID)
	require.Error(t, err)
	var badReq *models.BadRequestError
	assert.ErrorAs(t, err, &badReq)
}

func TestClusterDelete_AfterDetach(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCluster(t, 2)
	pol := env.createLBPolicy(t)

	ref, err := env.svc.ClusterPolicyAttach(context.Background(), c.ID, service.PolicyAttachRequest{Policy: pol.ID})
	require.NoError(t, err)
	require.Equal(t, models.ActionSucceeded, env.waitAction(t, ref.Action).Status)

	ref, err = env.svc.ClusterPolicyDetach(context.Background(), c.ID, pol.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActionSucceeded, env.waitAction(t, ref.Action).Status)

	ref, err = env.svc.ClusterDelete(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActionSucceeded, env.waitAction(t, ref.Action).Status)

	assert.Equal(t, 0, env.memberCount(t, c.ID))
	_, err = env.st.GetCluster(context.Background(), c.ID)
	var notFound *models.NotFoundError
	assert.ErrorAs(t, err, &notFound, "cluster row is soft-deleted")
}

func TestConcurrentScaleOut_SerializesViaClusterLock(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCluster(t, 1)

	ref1, err := env.svc.ClusterScaleOut(context.Background(), c.ID, 1)
	require.NoError(t, err)
	ref2, err := env.svc.ClusterScaleOut(context.Background(), c.ID, 1)
	require.NoError(t, err)

	a1 := env.waitAction(t, ref1.Action)
	a2 := env.waitAction(t, ref2.Action)
	assert.Equal(t, models.ActionSucceeded, a1.Status, "contention must wait, not fail: %v", a1.Outputs)
	assert.Equal(t, models.ActionSucceeded, a2.Status, "contention must wait, not fail: %v", a2.Outputs)

	assert.Equal(t, 3, env.memberCount(t, c.ID))
}

// refusingLBaaS wraps the in-process driver but refuses member removal, to
// drive the pre-hook CHECK_ERROR path.
type refusingLBaaS struct {
	*memdriver.Driver
}

func (r refusingLBaaS) RemoveMember(ctx context.Context, lb driver.LoadBalancer, nodeID string) error {
	return models.NewInternal("pool refuses removal", nil)
}

func TestPreHookCheckError_AbortsBody(t *testing.T) {
	mem := memdriver.New()
	env := newTestEnvWithLB(t, refusingLBaaS{mem})
	c := env.createCluster(t, 2)
	pol := env.createLBPolicy(t)

	ref, err := env.svc.ClusterPolicyAttach(context.Background(), c.ID, service.PolicyAttachRequest{Policy: pol.ID})
	require.NoError(t, err)
	require.Equal(t, models.ActionSucceeded, env.waitAction(t, ref.Action).Status)

	ref, err = env.svc.ClusterScaleIn(context.Background(), c.ID, 1)
	require.NoError(t, err)
	a := env.waitAction(t, ref.Action)
	assert.Equal(t, models.ActionFailed, a.Status)
	assert.Contains(t, a.Outputs["reason"], "pool refuses removal")

	// The body never ran: no member was destroyed.
	assert.Equal(t, 2, env.memberCount(t, c.ID))
}

func TestEnabledFalseBinding_SkipsHooks(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCluster(t, 2)
	pol := env.createLBPolicy(t)

	enabled := false
	ref, err := env.svc.ClusterPolicyAttach(context.Background(), c.ID, service.PolicyAttachRequest{
		Policy: pol.ID, Enabled: &enabled,
	})
	require.NoError(t, err)
	require.Equal(t, models.ActionSucceeded, env.waitAction(t, ref.Action).Status)

	binding, err := env.st.GetClusterPolicy(context.Background(), c.ID, pol.ID)
	require.NoError(t, err)
	assert.False(t, binding.Enabled, "an explicit enabled=false is honored literally")

	poolID, _ := binding.Data["pool"].(string)
	before := len(env.mem.PoolMembers(poolID))

	ref, err = env.svc.ClusterScaleOut(context.Background(), c.ID, 1)
	require.NoError(t, err)
	require.Equal(t, models.ActionSucceeded, env.waitAction(t, ref.Action).Status)

	assert.Len(t, env.mem.PoolMembers(poolID), before, "disabled binding's post-hook must not fire")
}

func TestNodeJoinLeave(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCluster(t, 1)

	res, err := env.svc.NodeCreate(context.Background(), service.NodeCreateRequest{
		Name: "orphan", Profile: "p1",
	})
	require.NoError(t, err)
	require.Equal(t, models.ActionSucceeded, env.waitAction(t, res.Action).Status)

	ref, err := env.svc.NodeJoin(context.Background(), res.Node.ID, c.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActionSucceeded, env.waitAction(t, ref.Action).Status)

	n, err := env.st.GetNode(context.Background(), res.Node.ID)
	require.NoError(t, err)
	require.NotNil(t, n.ClusterID)
	assert.Equal(t, c.ID, *n.ClusterID)
	assert.Equal(t, 2, n.Index, "joins at the next dense index")

	ref, err = env.svc.NodeLeave(context.Background(), res.Node.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActionSucceeded, env.waitAction(t, ref.Action).Status)

	n, err = env.st.GetNode(context.Background(), res.Node.ID)
	require.NoError(t, err)
	assert.Nil(t, n.ClusterID, "leave orphans the node without deleting it")
}

func TestActionDelete_CancelsPending(t *testing.T) {
	env := newTestEnv(t)

	// A WAITING action is never claimed, so cancellation is deterministic.
	blocker := &models.Action{
		TargetID: "some-cluster",
		Kind:     models.ClusterUpdate,
		Cause:    models.CauseRPC,
		Status:   models.ActionInit, // never becomes READY
	}
	require.NoError(t, env.st.CreateAction(context.Background(), blocker))
	a := &models.Action{
		TargetID:  "some-cluster",
		Kind:      models.ClusterUpdate,
		Cause:     models.CauseRPC,
		Status:    models.ActionWaiting,
		DependsOn: models.StringSlice{blocker.ID},
	}
	require.NoError(t, env.st.CreateAction(context.Background(), a))
	require.NoError(t, env.svc.ActionDelete(context.Background(), a.ID))

	got, err := env.st.GetAction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionCancelled, got.Status)

	// Terminal actions are immutable.
	assert.Error(t, env.svc.ActionDelete(context.Background(), a.ID))
}
