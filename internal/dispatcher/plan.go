package dispatcher

import (
	"context"
	"math/rand"

	"github.com/clustermgr/engine/internal/models"
	"github.com/clustermgr/engine/internal/planner"
)

// plan pre-computes the creation/deletion descriptor for the resize family
// and persists it to action.data before any hook runs, so a pre-hook and the
// body observe the same plan. It is a no-op for every other kind.
func (d *Dispatcher) plan(ctx context.Context, a *models.Action) error {
	switch a.Kind {
	case models.ClusterResize:
		return d.planResize(ctx, a)
	case models.ClusterScaleIn, models.ClusterScaleOut:
		return d.planScale(ctx, a)
	default:
		return nil
	}
}

func (d *Dispatcher) planResize(ctx context.Context, a *models.Action) error {
	c, err := d.store.GetCluster(ctx, a.TargetID)
	if err != nil {
		return err
	}
	in, err := models.DecodeInputs[models.ResizeInputs](a)
	if err != nil {
		return err
	}
	current, err := d.store.CountActiveNodesByCluster(ctx, c.ID)
	if err != nil {
		return err
	}
	p, err := planner.ResolveResize(current, c.MinSize, c.MaxSize, in)
	if err != nil {
		return err
	}
	return d.persistPlan(ctx, a, c.ID, p)
}

func (d *Dispatcher) planScale(ctx context.Context, a *models.Action) error {
	c, err := d.store.GetCluster(ctx, a.TargetID)
	if err != nil {
		return err
	}
	in, err := models.DecodeInputs[models.ScaleInputs](a)
	if err != nil {
		return err
	}
	current, err := d.store.CountActiveNodesByCluster(ctx, c.ID)
	if err != nil {
		return err
	}
	p, err := planner.ResolveScale(current, c.MinSize, c.MaxSize, in.Count, a.Kind == models.ClusterScaleOut)
	if err != nil {
		return err
	}
	return d.persistPlan(ctx, a, c.ID, p)
}

// persistPlan resolves deletion candidates (always a fresh random selection
// over ACTIVE members, replacing any deletion entry already in action.data)
// and writes the resulting plan into action.data, ahead of any hook execution.
func (d *Dispatcher) persistPlan(ctx context.Context, a *models.Action, clusterID string, p planner.Plan) error {
	if a.Data == nil {
		a.Data = models.JSONMap{}
	}
	if p.Creation != nil {
		a.Data["creation"] = map[string]interface{}{"count": p.Creation.Count}
	}
	if p.Deletion != nil {
		candidates, err := d.pickDeleteCandidates(ctx, clusterID, p.Deletion.Count)
		if err != nil {
			return err
		}
		a.Data["deletion"] = map[string]interface{}{
			"count":      p.Deletion.Count,
			"candidates": toInterfaceSlice(candidates),
		}
	}
	return d.store.ActionUpdateData(ctx, a.ID, a.Data)
}

// pickDeleteCandidates selects count node ids uniformly at random from the
// cluster's ACTIVE members, for every delete-side plan; it runs before the
// pre-hooks, so no policy has decided candidates by then.
func (d *Dispatcher) pickDeleteCandidates(ctx context.Context, clusterID string, count int) ([]string, error) {
	nodes, err := d.store.ListNodesByCluster(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	var active []string
	for _, n := range nodes {
		if n.Status == models.NodeActive {
			active = append(active, n.ID)
		}
	}
	if count > len(active) {
		count = len(active)
	}
	rand.Shuffle(len(active), func(i, j int) { active[i], active[j] = active[j], active[i] })
	return active[:count], nil
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
