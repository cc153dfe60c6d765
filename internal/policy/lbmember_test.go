package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clustermgr/engine/internal/driver/memdriver"
	"github.com/clustermgr/engine/internal/models"
)

// fakeStore serves the narrow getter interfaces from maps.
type fakeStore struct {
	nodes    map[string]*models.Node
	clusters map[string]*models.Cluster
}

func (f *fakeStore) GetNode(ctx context.Context, id string) (*models.Node, error) {
	if n, ok := f.nodes[id]; ok {
		return n, nil
	}
	return nil, models.NewNotFound("node", id)
}

func (f *fakeStore) ListNodesByCluster(ctx context.Context, clusterID string) ([]*models.Node, error) {
	var out []*models.Node
	for _, n := range f.nodes {
		if n.ClusterID != nil && *n.ClusterID == clusterID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCluster(ctx context.Context, id string) (*models.Cluster, error) {
	if c, ok := f.clusters[id]; ok {
		return c, nil
	}
	return nil, models.NewNotFound("cluster", id)
}

func harness(t *testing.T) (*LBMember, *memdriver.Driver, *fakeStore, *models.Cluster) {
	t.Helper()
	mem := memdriver.New()
	cid := "cluster-1"
	fs := &fakeStore{
		nodes: map[string]*models.Node{
			"n1": {ID: "n1", ClusterID: &cid, Status: models.NodeActive},
			"n2": {ID: "n2", ClusterID: &cid, Status: models.NodeActive},
			"n3": {ID: "n3", ClusterID: &cid, Status: models.NodeCreating},
		},
		clusters: map[string]*models.Cluster{
			cid: {ID: cid, Data: models.JSONMap{}},
		},
	}
	p, err := New(mem, fs, fs)("pol-1", models.JSONMap{"port": 80.0})
	require.NoError(t, err)
	return p, mem, fs, fs.clusters[cid]
}

func attach(t *testing.T, p *LBMember, mem *memdriver.Driver, c *models.Cluster) string {
	t.Helper()
	data, err := p.Attach(context.Background(), c, &models.ClusterPolicy{ClusterID: c.ID, PolicyID: p.PolicyID})
	require.NoError(t, err)
	c.SetLoadBalancerData(p.PolicyID, data)
	poolID, _ := data["pool"].(string)
	require.NotEmpty(t, poolID)
	return poolID
}

func TestLBMember_AttachEnrollsActiveMembers(t *testing.T) {
	p, mem, _, c := harness(t)
	poolID := attach(t, p, mem, c)

	members := mem.PoolMembers(poolID)
	assert.Len(t, members, 2, "only ACTIVE members enroll; CREATING does not")
}

func TestLBMember_PreOpRemovesCandidates(t *testing.T) {
	p, mem, _, c := harness(t)
	poolID := attach(t, p, mem, c)

	a := &models.Action{
		Kind:     models.ClusterScaleIn,
		TargetID: c.ID,
		Data: models.JSONMap{
			"deletion": map[string]interface{}{
				"count":      1.0,
				"candidates": []interface{}{"n2"},
			},
		},
	}
	require.NoError(t, p.PreOp(context.Background(), c.ID, a))
	assert.Equal(t, []string{"n1"}, mem.PoolMembers(poolID))
}

func TestLBMember_PreOpWithoutPlanDefers(t *testing.T) {
	p, mem, _, c := harness(t)
	poolID := attach(t, p, mem, c)

	a := &models.Action{Kind: models.ClusterScaleIn, TargetID: c.ID, Data: models.JSONMap{}}
	require.NoError(t, p.PreOp(context.Background(), c.ID, a))
	assert.Len(t, mem.PoolMembers(poolID), 2, "no plan, nothing removed")
}

func TestLBMember_PreOpSkipsUntargetedKind(t *testing.T) {
	p, _, _, c := harness(t)
	a := &models.Action{Kind: models.ClusterScaleOut, TargetID: c.ID, Data: models.JSONMap{}}
	require.NoError(t, p.PreOp(context.Background(), c.ID, a))
	assert.Nil(t, a.Data["status"], "no CHECK_ERROR for a kind outside TARGET")
}

func TestLBMember_PostOpAddsNewMembers(t *testing.T) {
	p, mem, fs, c := harness(t)
	poolID := attach(t, p, mem, c)

	cid := c.ID
	fs.nodes["n4"] = &models.Node{ID: "n4", ClusterID: &cid, Status: models.NodeActive}
	a := &models.Action{
		Kind:     models.ClusterScaleOut,
		TargetID: c.ID,
		Outputs:  models.JSONMap{"node_ids": []interface{}{"n4"}},
	}
	require.NoError(t, p.PostOp(context.Background(), c.ID, a))
	assert.Len(t, mem.PoolMembers(poolID), 3)
}

func TestLBMember_PostOpFallsBackToTargetForNodeKinds(t *testing.T) {
	p, mem, fs, c := harness(t)
	poolID := attach(t, p, mem, c)

	cid := c.ID
	fs.nodes["n5"] = &models.Node{ID: "n5", ClusterID: &cid, Status: models.NodeActive}
	a := &models.Action{Kind: models.NodeJoin, TargetID: "n5", Outputs: models.JSONMap{}}
	require.NoError(t, p.PostOp(context.Background(), c.ID, a))
	assert.Len(t, mem.PoolMembers(poolID), 3)
}

func TestLBMember_DetachTearsDown(t *testing.T) {
	p, mem, _, c := harness(t)
	poolID := attach(t, p, mem, c)

	binding := &models.ClusterPolicy{ClusterID: c.ID, PolicyID: p.PolicyID}
	binding.Data, _ = c.LoadBalancerData(p.PolicyID)
	_, err := p.Detach(context.Background(), c, binding)
	require.NoError(t, err)
	assert.Empty(t, mem.PoolMembers(poolID))
}

func TestLBMember_MetaTargets(t *testing.T) {
	p, _, _, _ := harness(t)
	m := p.Meta()
	assert.True(t, m.TargetsPhaseKind(models.PhaseBefore, models.ClusterScaleIn))
	assert.True(t, m.TargetsPhaseKind(models.PhaseAfter, models.ClusterScaleOut))
	assert.False(t, m.TargetsPhaseKind(models.PhaseBefore, models.ClusterScaleOut),
		"no pre-hook is registered for scale-out")
	assert.False(t, m.TargetsPhaseKind(models.PhaseAfter, models.ClusterDelNodes))
}
