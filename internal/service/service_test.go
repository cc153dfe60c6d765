package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustermgr/engine/internal/driver/memdriver"
	"github.com/clustermgr/engine/internal/models"
	"github.com/clustermgr/engine/internal/policy"
	"github.com/clustermgr/engine/internal/registry"
	"github.com/clustermgr/engine/internal/store"
	"github.com/clustermgr/engine/internal/webhook"
)

// newTestService builds the facade over a throwaway SQLite store with no
// dispatcher: submitted actions stay READY, which is exactly what the
// validation-focused tests below want to observe.
func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	mem := memdriver.New()
	reg := registry.New()
	require.NoError(t, reg.RegisterProfile("container.pod@1.0", "container.pod",
		func(spec models.JSONMap) (registry.ProfileDriver, error) { return mem, nil }))
	lbFactory := policy.New(mem, st, st)
	require.NoError(t, reg.RegisterPolicy(policy.TypeKey, "lb_member",
		func(policyID string, spec models.JSONMap) (registry.Policy, error) { return lbFactory(policyID, spec) }))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(st, reg, nil, newTestCodec(t), log), st
}

func newTestCodec(t *testing.T) models.WebhookCodec {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	c, err := webhook.NewCodec(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	return c
}

func mustProfile(t *testing.T, svc *Service) *models.Profile {
	t.Helper()
	spec, _ := json.Marshal(map[string]string{"image": "nginx"})
	p, err := svc.ProfileCreate(context.Background(), ProfileCreateRequest{
		Name: "p1", Type: "container.pod", Version: "1.0", Spec: spec,
	})
	require.NoError(t, err)
	return p
}

func mustCluster(t *testing.T, svc *Service, name string) *models.Cluster {
	t.Helper()
	res, err := svc.ClusterCreate(context.Background(), ClusterCreateRequest{
		Name: name, Profile: "p1", DesiredCapacity: 2,
	})
	require.NoError(t, err)
	return res.Cluster
}

func TestClusterCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	mustProfile(t, svc)
	ctx := context.Background()

	_, err := svc.ClusterCreate(ctx, ClusterCreateRequest{Profile: "p1"})
	assert.Error(t, err, "empty name")

	_, err = svc.ClusterCreate(ctx, ClusterCreateRequest{Name: "c", Profile: "nope", DesiredCapacity: 1})
	var notFound *models.NotFoundError
	assert.ErrorAs(t, err, &notFound, "unknown profile")

	_, err = svc.ClusterCreate(ctx, ClusterCreateRequest{Name: "c", Profile: "p1", DesiredCapacity: 1, MinSize: 2})
	assert.Error(t, err, "min_size above desired")

	three := 3
	_, err = svc.ClusterCreate(ctx, ClusterCreateRequest{Name: "c", Profile: "p1", DesiredCapacity: 5, MaxSize: &three})
	assert.Error(t, err, "desired above max")

	res, err := svc.ClusterCreate(ctx, ClusterCreateRequest{Name: "c", Profile: "p1", DesiredCapacity: 100})
	require.NoError(t, err, "omitted max_size means unbounded")
	assert.Equal(t, models.Unbounded, res.Cluster.MaxSize)
	assert.NotEmpty(t, res.Action)
}

func TestIdentityResolution_NameUUIDShortUUID(t *testing.T) {
	svc, _ := newTestService(t)
	mustProfile(t, svc)
	c := mustCluster(t, svc, "web")
	ctx := context.Background()

	byName, err := svc.ClusterGet(ctx, "web")
	require.NoError(t, err)
	byUUID, err := svc.ClusterGet(ctx, c.ID)
	require.NoError(t, err)
	byShort, err := svc.ClusterGet(ctx, c.ID[:8])
	require.NoError(t, err)

	assert.Equal(t, c.ID, byName.ID)
	assert.Equal(t, c.ID, byUUID.ID)
	assert.Equal(t, c.ID, byShort.ID)

	_, err = svc.ClusterGet(ctx, "missing")
	var notFound *models.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestClusterResize_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	mustProfile(t, svc)
	c := mustCluster(t, svc, "c1")
	ctx := context.Background()

	num := func(f float64) *float64 { return &f }
	step := 1

	cases := []struct {
		name    string
		req     ClusterResizeRequest
		wantErr bool
	}{
		{"missing adj_type", ClusterResizeRequest{}, true},
		{"number without adj_type", ClusterResizeRequest{Number: num(2)}, true},
		{"adj_type without number", ClusterResizeRequest{AdjType: "EXACT_CAPACITY"}, true},
		{"unknown adj_type", ClusterResizeRequest{AdjType: "NOPE", Number: num(1)}, true},
		{"negative exact capacity", ClusterResizeRequest{AdjType: "EXACT_CAPACITY", Number: num(-1)}, true},
		{"fractional capacity change", ClusterResizeRequest{AdjType: "CHANGE_IN_CAPACITY", Number: num(1.5)}, true},
		{"min_step outside percentage", ClusterResizeRequest{AdjType: "EXACT_CAPACITY", Number: num(2), MinStep: &step}, true},
		{"valid exact", ClusterResizeRequest{AdjType: "EXACT_CAPACITY", Number: num(4)}, false},
		{"valid signed change", ClusterResizeRequest{AdjType: "CHANGE_IN_CAPACITY", Number: num(-1)}, false},
		{"valid percentage with step", ClusterResizeRequest{AdjType: "CHANGE_IN_PERCENTAGE", Number: num(-33.3), MinStep: &step}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ClusterResize(ctx, c.ID, tc.req)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClusterAddNodes_CrossChecks(t *testing.T) {
	svc, st := newTestService(t)
	mustProfile(t, svc)
	c := mustCluster(t, svc, "c1")
	ctx := context.Background()

	_, err := svc.ClusterAddNodes(ctx, c.ID, nil)
	assert.Error(t, err, "empty node list")

	// A node already owned by a cluster is not an orphan.
	member := &models.Node{Name: "m1", ProfileID: c.ProfileID, ClusterID: &c.ID, Index: 1, Status: models.NodeActive}
	require.NoError(t, st.CreateNode(ctx, member))
	_, err = svc.ClusterAddNodes(ctx, c.ID, []string{member.ID})
	var notOrphan *models.NodeNotOrphanError
	assert.ErrorAs(t, err, &notOrphan)
}

func TestClusterUpdate_ProfileCrossChecks(t *testing.T) {
	svc, st := newTestService(t)
	mustProfile(t, svc)
	c := mustCluster(t, svc, "c1")
	ctx := context.Background()

	// A profile of a different type cannot replace the cluster's.
	other := &models.Profile{Name: "other", Type: "different.kind", Version: "1.0", Spec: models.JSONMap{}}
	require.NoError(t, st.CreateProfile(ctx, other))
	_, err := svc.ClusterUpdate(ctx, c.ID, ClusterUpdateRequest{Profile: "other"})
	var mismatch *models.ProfileTypeNotMatchError
	assert.ErrorAs(t, err, &mismatch)

	// A cluster in ERROR may not be profile-updated.
	c.Status = models.ClusterError
	require.NoError(t, st.UpdateCluster(ctx, c))
	spec, _ := json.Marshal(map[string]string{"image": "nginx:2"})
	p2, err := svc.ProfileCreate(ctx, ProfileCreateRequest{Name: "p2", Type: "container.pod", Version: "1.0", Spec: spec})
	require.NoError(t, err)
	_, err = svc.ClusterUpdate(ctx, c.ID, ClusterUpdateRequest{Profile: p2.ID})
	assert.Error(t, err)
}

func TestClusterPolicyAttach_DuplicateRejected(t *testing.T) {
	svc, st := newTestService(t)
	mustProfile(t, svc)
	c := mustCluster(t, svc, "c1")
	ctx := context.Background()

	spec, _ := json.Marshal(map[string]int{"port": 80})
	pol, err := svc.PolicyCreate(ctx, PolicyCreateRequest{Name: "lb", Type: policy.TypeKey, Spec: spec})
	require.NoError(t, err)

	require.NoError(t, st.CreateClusterPolicy(ctx, &models.ClusterPolicy{
		ClusterID: c.ID, PolicyID: pol.ID, Priority: 50, Enabled: true,
	}))
	_, err = svc.ClusterPolicyAttach(ctx, c.ID, PolicyAttachRequest{Policy: pol.ID})
	assert.Error(t, err, "double attach must be rejected")

	_, err = svc.ClusterPolicyDetach(ctx, c.ID, pol.ID)
	assert.NoError(t, err)

	_, err = svc.ClusterPolicyUpdate(ctx, c.ID, PolicyAttachRequest{Policy: pol.ID})
	assert.Error(t, err, "update with no overrides is rejected")
}

func TestPolicyDelete_InUse(t *testing.T) {
	svc, st := newTestService(t)
	mustProfile(t, svc)
	c := mustCluster(t, svc, "c1")
	ctx := context.Background()

	spec, _ := json.Marshal(map[string]int{"port": 80})
	pol, err := svc.PolicyCreate(ctx, PolicyCreateRequest{Name: "lb", Type: policy.TypeKey, Spec: spec})
	require.NoError(t, err)
	require.NoError(t, st.CreateClusterPolicy(ctx, &models.ClusterPolicy{
		ClusterID: c.ID, PolicyID: pol.ID, Priority: 50, Enabled: true,
	}))

	err = svc.PolicyDelete(ctx, pol.ID)
	var inUse *models.ResourceInUseError
	assert.ErrorAs(t, err, &inUse)
}

func TestWebhook_CreateAndTrigger(t *testing.T) {
	svc, st := newTestService(t)
	mustProfile(t, svc)
	c := mustCluster(t, svc, "c1")
	ctx := context.Background()

	res, err := svc.WebhookCreate(ctx, WebhookCreateRequest{
		Name: "scale-up", ObjType: "cluster", ObjID: c.ID,
		ActionKind: string(models.ClusterScaleOut),
		Params:     models.JSONMap{"count": 1.0},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)

	// The first underscore-segment rule: a NODE_* kind is invalid for a
	// cluster webhook.
	_, err = svc.WebhookCreate(ctx, WebhookCreateRequest{
		Name: "bad", ObjType: "cluster", ObjID: c.ID, ActionKind: string(models.NodeDelete),
	})
	assert.Error(t, err)

	ref, err := svc.WebhookTrigger(ctx, res.Token, models.JSONMap{"count": 2.0})
	require.NoError(t, err)

	a, err := st.GetAction(ctx, ref.Action)
	require.NoError(t, err)
	assert.Equal(t, models.ClusterScaleOut, a.Kind)
	assert.Equal(t, c.ID, a.TargetID)
	assert.Equal(t, 2.0, a.Inputs["count"], "request params override stored params")

	_, err = svc.WebhookTrigger(ctx, "bogus-token", nil)
	assert.Error(t, err)
}

func TestProfileUpdate_MetadataOnly(t *testing.T) {
	svc, _ := newTestService(t)
	p := mustProfile(t, svc)
	ctx := context.Background()

	got, err := svc.ProfileUpdate(ctx, p.ID, ProfileUpdateRequest{Name: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	// Spec is untouched by update: immutability contract.
	reread, err := svc.ProfileGet(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Spec["image"], reread.Spec["image"])
}

func TestNodeJoin_TypeMismatchRejected(t *testing.T) {
	svc, st := newTestService(t)
	mustProfile(t, svc)
	c := mustCluster(t, svc, "c1")
	ctx := context.Background()

	other := &models.Profile{Name: "net", Type: "network.port", Version: "1.0", Spec: models.JSONMap{}}
	require.NoError(t, st.CreateProfile(ctx, other))
	orphan := &models.Node{Name: "o1", ProfileID: other.ID, Status: models.NodeActive}
	require.NoError(t, st.CreateNode(ctx, orphan))

	_, err := svc.NodeJoin(ctx, orphan.ID, c.ID)
	var mismatch *models.ProfileTypeNotMatchError
	assert.ErrorAs(t, err, &mismatch)
}
