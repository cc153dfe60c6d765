package dispatcher

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clustermgr/engine/internal/models"
	"github.com/clustermgr/engine/internal/registry"
)

// runBody executes the handler registered for a's kind. Every
// handler returns the outputs map persisted on the action row; errors flow
// back into process()'s retry/fail path.
func (d *Dispatcher) runBody(ctx context.Context, a *models.Action) (models.JSONMap, error) {
	switch a.Kind {
	case models.ClusterCreate:
		return d.doClusterCreate(ctx, a)
	case models.ClusterUpdate:
		return d.doClusterUpdate(ctx, a)
	case models.ClusterDelete:
		return d.doClusterDelete(ctx, a)
	case models.ClusterAddNodes:
		return d.doClusterAddNodes(ctx, a)
	case models.ClusterDelNodes:
		return d.doClusterDelNodes(ctx, a)
	case models.ClusterResize, models.ClusterScaleIn, models.ClusterScaleOut:
		return d.doClusterResize(ctx, a)
	case models.ClusterAttachPolicy:
		return d.doAttachPolicy(ctx, a)
	case models.ClusterDetachPolicy:
		return d.doDetachPolicy(ctx, a)
	case models.ClusterUpdatePolicy:
		return d.doUpdatePolicy(ctx, a)
	case models.NodeCreate:
		return d.doNodeCreate(ctx, a)
	case models.NodeUpdate:
		return d.doNodeUpdate(ctx, a)
	case models.NodeDelete:
		return d.doNodeDelete(ctx, a)
	case models.NodeJoin:
		return d.doNodeJoin(ctx, a)
	case models.NodeLeave:
		return d.doNodeLeave(ctx, a)
	default:
		return nil, models.NewFeatureNotSupported(string(a.Kind))
	}
}

// cancelRequested re-reads the action row's cooperative cancellation flag.
// Handlers call it at each externally-observable checkpoint; the flag
// lives on the row, not in memory, so a cancel issued by another engine is
// visible too.
func (d *Dispatcher) cancelRequested(ctx context.Context, actionID string) bool {
	a, err := d.store.GetAction(ctx, actionID)
	if err != nil {
		return false
	}
	return a.Cancel
}

// errCancelled is what a handler returns when it observed its own cancel flag
// mid-body; process() maps it to a terminal CANCELLED rather than FAILED.
var errCancelled = fmt.Errorf("action cancelled")

func (d *Dispatcher) setClusterStatus(ctx context.Context, c *models.Cluster, status models.ClusterStatus, reason string) error {
	old := c.Status
	c.Status = status
	c.StatusReason = reason
	if err := d.store.UpdateCluster(ctx, c); err != nil {
		return err
	}
	ev := models.NewStatusChangeEvent(c.ID, "cluster", string(old), string(status), reason)
	if err := d.store.CreateEvent(ctx, ev); err != nil {
		d.log.Error("failed to record cluster status event", "cluster_id", c.ID, "error", err)
	}
	return nil
}

func (d *Dispatcher) setNodeStatus(ctx context.Context, n *models.Node, status models.NodeStatus, reason string) error {
	old := n.Status
	n.Status = status
	n.StatusReason = reason
	if err := d.store.UpdateNode(ctx, n); err != nil {
		return err
	}
	ev := models.NewStatusChangeEvent(n.ID, "node", string(old), string(status), reason)
	if err := d.store.CreateEvent(ctx, ev); err != nil {
		d.log.Error("failed to record node status event", "node_id", n.ID, "error", err)
	}
	return nil
}

// profileDriverFor resolves the driver for a node's profile row through the
// environment registry.
func (d *Dispatcher) profileDriverFor(ctx context.Context, profileID string) (registry.ProfileDriver, *models.Profile, error) {
	p, err := d.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, nil, err
	}
	drv, err := d.registry.Profile(registry.Key(p.Type, p.Version), p.Spec)
	if err != nil {
		return nil, nil, err
	}
	return drv, p, nil
}

// spawnChildren persists one DERIVED child action per entry and waits for all
// of them to reach a terminal status. Children start READY so sibling workers
// (or other engines) pick them up while this worker blocks; the wait loop is
// this body's explicit suspension point and checks the parent's cancel flag
// each pass, cascading a cancel into WAITING/READY children and a cooperative
// cancel request into RUNNING ones.
func (d *Dispatcher) spawnChildren(ctx context.Context, parent *models.Action, children []*models.Action) error {
	ids := make([]string, 0, len(children))
	for _, c := range children {
		c.Cause = models.CauseDerived
		c.Status = models.ActionReady
		if c.Timeout == 0 {
			c.Timeout = parent.Timeout
		}
		if err := d.store.CreateAction(ctx, c); err != nil {
			return err
		}
		ids = append(ids, c.ID)
		d.Notify(c.ID)
	}
	return d.waitChildren(ctx, parent, ids)
}

func (d *Dispatcher) waitChildren(ctx context.Context, parent *models.Action, ids []string) error {
	pending := make(map[string]bool, len(ids))
	for _, id := range ids {
		pending[id] = true
	}
	var failures []string
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			d.cascadeCancel(context.Background(), pending)
			return ctx.Err()
		case <-d.stopCh:
			return fmt.Errorf("dispatcher stopping")
		default:
		}
		if d.cancelRequested(ctx, parent.ID) {
			d.cascadeCancel(ctx, pending)
			return errCancelled
		}
		for id := range pending {
			child, err := d.store.GetAction(ctx, id)
			if err != nil {
				return err
			}
			if !child.Status.IsTerminal() {
				continue
			}
			delete(pending, id)
			if child.Status != models.ActionSucceeded {
				reason, _ := child.Outputs["reason"].(string)
				failures = append(failures, fmt.Sprintf("%s(%s): %s", child.Kind, child.ID, reason))
			}
		}
		if len(pending) > 0 {
			sleep(d.stopCh, d.cfg.PollInterval)
		}
	}
	if len(failures) > 0 {
		return models.NewInternal(fmt.Sprintf("%d child action(s) did not succeed", len(failures)),
			fmt.Errorf("%v", failures))
	}
	return nil
}

// cascadeCancel marks non-started children CANCELLED directly and requests a
// cooperative cancel on RUNNING ones.
func (d *Dispatcher) cascadeCancel(ctx context.Context, pending map[string]bool) {
	for id := range pending {
		child, err := d.store.GetAction(ctx, id)
		if err != nil || child.Status.IsTerminal() {
			continue
		}
		switch child.Status {
		case models.ActionWaiting, models.ActionReady, models.ActionInit:
			if err := d.store.ActionMark(ctx, id, "", models.ActionCancelled, nil, "parent cancelled"); err != nil {
				d.log.Error("cascade cancel failed", "action_id", id, "error", err)
			}
		case models.ActionRunning:
			if err := d.store.ActionRequestCancel(ctx, id); err != nil {
				d.log.Error("cascade cancel request failed", "action_id", id, "error", err)
			}
		}
	}
}

// newNodeForCluster builds the row for one new cluster member at the next
// dense index.
func (d *Dispatcher) newNodeForCluster(ctx context.Context, c *models.Cluster) (*models.Node, error) {
	idx, err := d.store.NextNodeIndex(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	n := &models.Node{
		ID:        uuid.New().String(),
		Name:      fmt.Sprintf("%s-node-%03d", c.Name, idx),
		ProfileID: c.ProfileID,
		ClusterID: &c.ID,
		Index:     idx,
		Status:    models.NodeInit,
		Data:      models.JSONMap{},
	}
	if err := d.store.CreateNode(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// createMembers brings count new members into c via NODE_CREATE children and
// returns their node ids for the action's outputs (post-hooks enroll them).
func (d *Dispatcher) createMembers(ctx context.Context, parent *models.Action, c *models.Cluster, count int) ([]string, error) {
	nodeIDs := make([]string, 0, count)
	children := make([]*models.Action, 0, count)
	for i := 0; i < count; i++ {
		n, err := d.newNodeForCluster(ctx, c)
		if err != nil {
			return nil, err
		}
		nodeIDs = append(nodeIDs, n.ID)
		children = append(children, &models.Action{
			TargetID: n.ID,
			Kind:     models.NodeCreate,
		})
	}
	if err := d.spawnChildren(ctx, parent, children); err != nil {
		return nil, err
	}
	return nodeIDs, nil
}

// deleteMembers destroys the given nodes via NODE_DELETE children.
func (d *Dispatcher) deleteMembers(ctx context.Context, parent *models.Action, nodeIDs []string) error {
	children := make([]*models.Action, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		children = append(children, &models.Action{
			TargetID: id,
			Kind:     models.NodeDelete,
		})
	}
	return d.spawnChildren(ctx, parent, children)
}

func (d *Dispatcher) doClusterCreate(ctx context.Context, a *models.Action) (models.JSONMap, error) {
	c, err := d.store.GetCluster(ctx, a.TargetID)
	if err != nil {
		return nil, err
	}
	if err := d.setClusterStatus(ctx, c, models.ClusterCreating, ""); err != nil {
		return nil, err
	}
	nodeIDs, err := d.createMembers(ctx, a, c, c.DesiredCapacity)
	if err != nil {
		d.setClusterStatus(ctx, c, models.ClusterError, err.Error())
		return nil, err
	}
	if err := d.setClusterStatus(ctx, c, models.ClusterActive, ""); err != nil {
		return nil, err
	}
	return models.JSONMap{"node_ids": toInterfaceSlice(nodeIDs)}, nil
}

// doClusterUpdate applies the in-place mutable attributes; a profile change
// was already cross-checked for type compatibility by the facade.
func (d *Dispatcher) doClusterUpdate(ctx context.Context, a *models.Action) (models.JSONMap, error) {
	c, err := d.store.GetCluster(ctx, a.TargetID)
	if err != nil {
		return nil, err
	}
	if err := d.setClusterStatus(ctx, c, models.ClusterUpdating, ""); err != nil {
		return nil, err
	}
	if v, ok := a.Inputs["name"].(string); ok && v != "" {
		c.Name = v
	}
	if v, ok := a.Inputs["profile_id"].(string); ok && v != "" {
		c.ProfileID = v
	}
	if v, ok := a.Inputs["timeout"].(float64); ok {
		c.Timeout = int(v)
	}
	if v, ok := a.Inputs["metadata"].(map[string]interface{}); ok {
		c.Metadata = models.JSONMap(v)
	}
	if err := d.setClusterStatus(ctx, c, models.ClusterActive, ""); err != nil {
		return nil, err
	}
	return models.JSONMap{}, nil
}

func (d *Dispatcher) doClusterDelete(ctx context.Context, a *models.Action) (models.JSONMap, error) {
	c, err := d.store.GetCluster(ctx, a.TargetID)
	if err != nil {
		return nil, err
	}
	// Re-checked here because a policy may have been attached between the
	// facade's validation and this body claiming the lock.
	n, err := d.store.CountAttachedPolicies(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, models.NewResourceInUse("cluster", c.ID)
	}
	if err := d.setClusterStatus(ctx, c, models.ClusterDeleting, ""); err != nil {
		return nil, err
	}
	members, err := d.store.ListNodesByCluster(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	memberIDs := make([]string, 0, len(members))
	for _, m := range members {
		memberIDs = append(memberIDs, m.ID)
	}
	if err := d.deleteMembers(ctx, a, memberIDs); err != nil {
		d.setClusterStatus(ctx, c, models.ClusterError, err.Error())
		return nil, err
	}
	if err := d.store.SoftDeleteCluster(ctx, c.ID); err != nil {
		return nil, err
	}
	return models.JSONMap{}, nil
}

func (d *Dispatcher) doClusterAddNodes(ctx context.Context, a *models.Action) (models.JSONMap, error) {
	c, err := d.store.GetCluster(ctx, a.TargetID)
	if err != nil {
		return nil, err
	}
	in, err := models.DecodeInputs[models.AddNodesInputs](a)
	if err != nil {
		return nil, err
	}
	clusterProfile, err := d.store.GetProfile(ctx, c.ProfileID)
	if err != nil {
		return nil, err
	}
	added := make([]string, 0, len(in.Nodes))
	for _, nodeID := range in.Nodes {
		if d.cancelRequested(ctx, a.ID) {
			return nil, errCancelled
		}
		n, err := d.store.GetNode(ctx, nodeID)
		if err != nil {
			return nil, err
		}
		if err := n.RequireOrphan(); err != nil {
			return nil, err
		}
		nodeProfile, err := d.store.GetProfile(ctx, n.ProfileID)
		if err != nil {
			return nil, err
		}
		if nodeProfile.Type != clusterProfile.Type {
			return nil, models.NewProfileTypeNotMatch(clusterProfile.Type, nodeProfile.Type)
		}
		idx, err := d.store.NextNodeIndex(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		n.Join(c.ID, idx)
		if err := d.setNodeStatus(ctx, n, models.NodeActive, ""); err != nil {
			return nil, err
		}
		added = append(added, n.ID)
	}
	c.DesiredCapacity += len(added)
	if err := d.store.UpdateCluster(ctx, c); err != nil {
		return nil, err
	}
	return models.JSONMap{"node_ids": toInterfaceSlice(added)}, nil
}

// doClusterDelNodes removes members from the cluster without destroying them:
// they leave, they are not deleted.
func (d *Dispatcher) doClusterDelNodes(ctx context.Context, a *models.Action) (models.JSONMap, error) {
	c, err := d.store.GetCluster(ctx, a.TargetID)
	if err != nil {
		return nil, err
	}
	in, err := models.DecodeInputs[models.AddNodesInputs](a)
	if err != nil {
		return nil, err
	}
	removed := make([]string, 0, len(in.Nodes))
	for _, nodeID := range in.Nodes {
		if d.cancelRequested(ctx, a.ID) {
			return nil, errCancelled
		}
		n, err := d.store.GetNode(ctx, nodeID)
		if err != nil {
			return nil, err
		}
		if n.ClusterID == nil || *n.ClusterID != c.ID {
			return nil, models.NewBadRequest("node %s is not a member of cluster %s", nodeID, c.ID)
		}
		n.Leave()
		if err := d.store.UpdateNode(ctx, n); err != nil {
			return nil, err
		}
		removed = append(removed, n.ID)
	}
	if c.DesiredCapacity >= len(removed) {
		c.DesiredCapacity -= len(removed)
	} else {
		c.DesiredCapacity = 0
	}
	if err := d.store.UpdateCluster(ctx, c); err != nil {
		return nil, err
	}
	return models.JSONMap{"node_ids": toInterfaceSlice(removed)}, nil
}

// doClusterResize executes the plan persisted at action.data by plan(): the
// creation phase creates members, the deletion phase destroys the candidates
// every pre-hook already saw.
func (d *Dispatcher) doClusterResize(ctx context.Context, a *models.Action) (models.JSONMap, error) {
	c, err := d.store.GetCluster(ctx, a.TargetID)
	if err != nil {
		return nil, err
	}
	if err := d.setClusterStatus(ctx, c, models.ClusterResizing, ""); err != nil {
		return nil, err
	}
	outputs := models.JSONMap{}
	newDesired := c.DesiredCapacity

	if creation, ok := a.Data["creation"].(map[string]interface{}); ok {
		count := intFromJSON(creation["count"])
		nodeIDs, err := d.createMembers(ctx, a, c, count)
		if err != nil {
			d.setClusterStatus(ctx, c, models.ClusterError, err.Error())
			return nil, err
		}
		outputs["node_ids"] = toInterfaceSlice(nodeIDs)
		newDesired += count
	}

	if deletion, ok := a.Data["deletion"].(map[string]interface{}); ok {
		count := intFromJSON(deletion["count"])
		var candidates []string
		if raw, ok := deletion["candidates"].([]interface{}); ok {
			for _, v := range raw {
				if s, ok := v.(string); ok {
					candidates = append(candidates, s)
				}
			}
		}
		if err := d.deleteMembers(ctx, a, candidates); err != nil {
			d.setClusterStatus(ctx, c, models.ClusterError, err.Error())
			return nil, err
		}
		outputs["deleted_node_ids"] = toInterfaceSlice(candidates)
		newDesired -= count
	}

	if newDesired < 0 {
		newDesired = 0
	}
	c, err = d.store.GetCluster(ctx, a.TargetID)
	if err != nil {
		return nil, err
	}
	c.DesiredCapacity = newDesired
	if err := d.setClusterStatus(ctx, c, models.ClusterActive, ""); err != nil {
		return nil, err
	}
	return outputs, nil
}

func (d *Dispatcher) doAttachPolicy(ctx context.Context, a *models.Action) (models.JSONMap, error) {
	c, err := d.store.GetCluster(ctx, a.TargetID)
	if err != nil {
		return nil, err
	}
	in, err := models.DecodeInputs[models.AttachPolicyInputs](a)
	if err != nil {
		return nil, err
	}
	row, err := d.store.GetPolicy(ctx, in.PolicyID)
	if err != nil {
		return nil, err
	}
	pol, err := d.registry.Policy(row.Type, row.ID, row.Spec)
	if err != nil {
		return nil, err
	}
	meta := pol.Meta()
	if meta.ProfileType != "" {
		clusterProfile, err := d.store.GetProfile(ctx, c.ProfileID)
		if err != nil {
			return nil, err
		}
		if clusterProfile.Type != meta.ProfileType {
			return nil, models.NewProfileTypeNotMatch(meta.ProfileType, clusterProfile.Type)
		}
	}

	binding := &models.ClusterPolicy{
		ClusterID: c.ID,
		PolicyID:  row.ID,
		Priority:  meta.Priority,
		Level:     row.Level,
		Cooldown:  row.Cooldown,
		Enabled:   true,
	}
	if in.Priority != nil {
		binding.Priority = *in.Priority
	}
	if in.Level != nil {
		binding.Level = *in.Level
	}
	if in.Cooldown != nil {
		binding.Cooldown = *in.Cooldown
	}
	if in.Enabled != nil {
		binding.Enabled = *in.Enabled
	}

	data, err := pol.Attach(ctx, c, binding)
	if err != nil {
		return nil, err
	}
	binding.Data = data
	if err := d.store.CreateClusterPolicy(ctx, binding); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		c.SetLoadBalancerData(row.ID, data)
		if err := d.store.UpdateCluster(ctx, c); err != nil {
			return nil, err
		}
	}
	return models.JSONMap{"policy_id": row.ID}, nil
}

func (d *Dispatcher) doDetachPolicy(ctx context.Context, a *models.Action) (models.JSONMap, error) {
	c, err := d.store.GetCluster(ctx, a.TargetID)
	if err != nil {
		return nil, err
	}
	in, err := models.DecodeInputs[models.DetachPolicyInputs](a)
	if err != nil {
		return nil, err
	}
	binding, err := d.store.GetClusterPolicy(ctx, c.ID, in.PolicyID)
	if err != nil {
		return nil, err
	}
	row, err := d.store.GetPolicy(ctx, in.PolicyID)
	if err != nil {
		return nil, err
	}
	pol, err := d.registry.Policy(row.Type, row.ID, row.Spec)
	if err != nil {
		return nil, err
	}
	if _, err := pol.Detach(ctx, c, binding); err != nil {
		return nil, err
	}
	if err := d.store.DeleteClusterPolicy(ctx, c.ID, in.PolicyID); err != nil {
		return nil, err
	}
	c.ClearLoadBalancerData(row.ID)
	if err := d.store.UpdateCluster(ctx, c); err != nil {
		return nil, err
	}
	return models.JSONMap{}, nil
}

func (d *Dispatcher) doUpdatePolicy(ctx context.Context, a *models.Action) (models.JSONMap, error) {
	in, err := models.DecodeInputs[models.AttachPolicyInputs](a)
	if err != nil {
		return nil, err
	}
	binding, err := d.store.GetClusterPolicy(ctx, a.TargetID, in.PolicyID)
	if err != nil {
		return nil, err
	}
	if in.Priority != nil {
		binding.Priority = *in.Priority
	}
	if in.Level != nil {
		binding.Level = *in.Level
	}
	if in.Cooldown != nil {
		binding.Cooldown = *in.Cooldown
	}
	if in.Enabled != nil {
		binding.Enabled = *in.Enabled
	}
	if err := d.store.UpdateClusterPolicy(ctx, binding); err != nil {
		return nil, err
	}
	return models.JSONMap{}, nil
}

func (d *Dispatcher) doNodeCreate(ctx context.Context, a *models.Action) (models.JSONMap, error) {
	n, err := d.store.GetNode(ctx, a.TargetID)
	if err != nil {
		return nil, err
	}
	if err := d.setNodeStatus(ctx, n, models.NodeCreating, ""); err != nil {
		return nil, err
	}
	drv, p, err := d.profileDriverFor(ctx, n.ProfileID)
	if err != nil {
		d.setNodeStatus(ctx, n, models.NodeError, err.Error())
		return nil, err
	}
	if err := drv.Create(ctx, n, p.Spec); err != nil {
		d.setNodeStatus(ctx, n, models.NodeError, err.Error())
		return nil, err
	}
	if err := d.setNodeStatus(ctx, n, models.NodeActive, ""); err != nil {
		return nil, err
	}
	return models.JSONMap{"physical_id": n.PhysicalID}, nil
}

func (d *Dispatcher) doNodeUpdate(ctx context.Context, a *models.Action) (models.JSONMap, error) {
	n, err := d.store.GetNode(ctx, a.TargetID)
	if err != nil {
		return nil, err
	}
	if err := d.setNodeStatus(ctx, n, models.NodeUpdating, ""); err != nil {
		return nil, err
	}
	if v, ok := a.Inputs["name"].(string); ok && v != "" {
		n.Name = v
	}
	if v, ok := a.Inputs["role"].(string); ok {
		n.Role = v
	}
	drv, p, err := d.profileDriverFor(ctx, n.ProfileID)
	if err != nil {
		d.setNodeStatus(ctx, n, models.NodeError, err.Error())
		return nil, err
	}
	if err := drv.Update(ctx, n, p.Spec); err != nil {
		d.setNodeStatus(ctx, n, models.NodeError, err.Error())
		return nil, err
	}
	if err := d.setNodeStatus(ctx, n, models.NodeActive, ""); err != nil {
		return nil, err
	}
	return models.JSONMap{}, nil
}

func (d *Dispatcher) doNodeDelete(ctx context.Context, a *models.Action) (models.JSONMap, error) {
	n, err := d.store.GetNode(ctx, a.TargetID)
	if err != nil {
		return nil, err
	}
	if err := d.setNodeStatus(ctx, n, models.NodeDeleting, ""); err != nil {
		return nil, err
	}
	drv, _, err := d.profileDriverFor(ctx, n.ProfileID)
	if err != nil {
		d.setNodeStatus(ctx, n, models.NodeError, err.Error())
		return nil, err
	}
	if err := drv.Delete(ctx, n); err != nil {
		d.setNodeStatus(ctx, n, models.NodeError, err.Error())
		return nil, err
	}
	if err := d.store.SoftDeleteNode(ctx, n.ID); err != nil {
		return nil, err
	}
	return models.JSONMap{}, nil
}

func (d *Dispatcher) doNodeJoin(ctx context.Context, a *models.Action) (models.JSONMap, error) {
	n, err := d.store.GetNode(ctx, a.TargetID)
	if err != nil {
		return nil, err
	}
	if err := n.RequireOrphan(); err != nil {
		return nil, err
	}
	in, err := models.DecodeInputs[models.NodeJoinInputs](a)
	if err != nil {
		return nil, err
	}
	c, err := d.store.GetCluster(ctx, in.ClusterID)
	if err != nil {
		return nil, err
	}
	clusterProfile, err := d.store.GetProfile(ctx, c.ProfileID)
	if err != nil {
		return nil, err
	}
	nodeProfile, err := d.store.GetProfile(ctx, n.ProfileID)
	if err != nil {
		return nil, err
	}
	if nodeProfile.Type != clusterProfile.Type {
		return nil, models.NewProfileTypeNotMatch(clusterProfile.Type, nodeProfile.Type)
	}
	idx, err := d.store.NextNodeIndex(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	n.Join(c.ID, idx)
	if err := d.setNodeStatus(ctx, n, models.NodeActive, ""); err != nil {
		return nil, err
	}
	return models.JSONMap{"cluster_id": c.ID, "index": idx}, nil
}

func (d *Dispatcher) doNodeLeave(ctx context.Context, a *models.Action) (models.JSONMap, error) {
	n, err := d.store.GetNode(ctx, a.TargetID)
	if err != nil {
		return nil, err
	}
	if n.IsOrphan() {
		return nil, models.NewBadRequest("node %s does not belong to any cluster", n.ID)
	}
	n.Leave()
	if err := d.store.UpdateNode(ctx, n); err != nil {
		return nil, err
	}
	return models.JSONMap{}, nil
}

func intFromJSON(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
