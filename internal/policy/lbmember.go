// Package policy implements the concrete policy types registered into the
// environment registry. LBMember is the reference policy: load-balancer
// membership, driven through a driver.LBaaSDriver.
package policy

import (
	"context"

	"github.com/clustermgr/engine/internal/driver"
	"github.com/clustermgr/engine/internal/models"
	"github.com/clustermgr/engine/internal/planner"
)

// TypeKey is the registry key under which LBMember is registered
// ("lb_member@1.0" per the Policy.Type convention in internal/models).
const TypeKey = "lb_member@1.0"

// NodeGetter is the narrow slice of store.NodeStore the policy needs.
type NodeGetter interface {
	GetNode(ctx context.Context, id string) (*models.Node, error)
	ListNodesByCluster(ctx context.Context, clusterID string) ([]*models.Node, error)
}

// ClusterGetter is the narrow slice of store.ClusterStore the policy needs.
type ClusterGetter interface {
	GetCluster(ctx context.Context, id string) (*models.Cluster, error)
}

// LBMember adds/removes cluster members from a load balancer pool as they
// join or leave. One instance is constructed per (cluster-policy
// binding) by the dispatcher; PolicyID identifies which binding's LB
// descriptor to read out of the cluster's Data.
type LBMember struct {
	PolicyID string
	LBaaS    driver.LBaaSDriver
	Nodes    NodeGetter
	Clusters ClusterGetter
	Spec     models.JSONMap
}

// New returns a registry.PolicyFactory for lb_member; the factory closes over
// the shared driver/store dependencies and only varies the policy row's id
// and Spec per call.
func New(lbaas driver.LBaaSDriver, nodes NodeGetter, clusters ClusterGetter) func(policyID string, spec models.JSONMap) (*LBMember, error) {
	return func(policyID string, spec models.JSONMap) (*LBMember, error) {
		return &LBMember{PolicyID: policyID, LBaaS: lbaas, Nodes: nodes, Clusters: clusters, Spec: spec}, nil
	}
}

func (p *LBMember) Meta() models.PolicyMeta {
	return models.PolicyMeta{
		Priority: 50,
		Target: []models.Target{
			{Phase: models.PhaseBefore, Kind: models.ClusterDelNodes},
			{Phase: models.PhaseBefore, Kind: models.ClusterScaleIn},
			{Phase: models.PhaseBefore, Kind: models.ClusterResize},
			{Phase: models.PhaseBefore, Kind: models.NodeDelete},
			{Phase: models.PhaseAfter, Kind: models.ClusterCreate},
			{Phase: models.PhaseAfter, Kind: models.ClusterAddNodes},
			{Phase: models.PhaseAfter, Kind: models.ClusterScaleOut},
			{Phase: models.PhaseAfter, Kind: models.NodeCreate},
			{Phase: models.PhaseAfter, Kind: models.NodeJoin},
		},
		ProfileType: "",
		PropertiesSchema: models.JSONMap{
			"port":     "int",
			"protocol": "string",
		},
	}
}

// ValidateProps checks the narrow shape the reference driver consumes; a
// richer schema validator belongs to a production LBaaS integration.
func (p *LBMember) ValidateProps(ctx context.Context, props models.JSONMap) error {
	if v, ok := props["port"]; ok {
		if _, isNum := v.(float64); !isNum {
			return models.NewInvalidParameter("port", v)
		}
	}
	return nil
}

// Attach creates the load balancer and enrolls every currently-ACTIVE
// cluster member.
func (p *LBMember) Attach(ctx context.Context, cluster *models.Cluster, binding *models.ClusterPolicy) (models.JSONMap, error) {
	lb, err := p.LBaaS.CreateLoadBalancer(ctx, cluster, p.Spec)
	if err != nil {
		return nil, models.NewInternal("create load balancer", err)
	}
	members, err := p.Nodes.ListNodesByCluster(ctx, cluster.ID)
	if err != nil {
		return nil, models.NewInternal("list cluster members", err)
	}
	for _, n := range members {
		if n.Status != models.NodeActive {
			continue
		}
		if err := p.LBaaS.AddMember(ctx, lb, n); err != nil {
			return nil, models.NewInternal("enroll existing member in pool", err)
		}
	}
	return lb.ToData(), nil
}

// Detach tears down the load balancer created at attach time. The binding's
// persisted Data carries the descriptor Attach returned.
func (p *LBMember) Detach(ctx context.Context, cluster *models.Cluster, binding *models.ClusterPolicy) (models.JSONMap, error) {
	lb := driver.LoadBalancerFromData(binding.Data)
	if lb.LoadBalancerID == "" {
		return models.JSONMap{}, nil
	}
	if err := p.LBaaS.DeleteLoadBalancer(ctx, lb); err != nil {
		return nil, models.NewInternal("delete load balancer", err)
	}
	return models.JSONMap{}, nil
}

// PreOp removes delete-candidates from the pool before the body destroys
// them. A failure here marks the action CHECK_ERROR, which aborts it without
// running the body.
func (p *LBMember) PreOp(ctx context.Context, clusterID string, action *models.Action) error {
	if !p.Meta().TargetsPhaseKind(models.PhaseBefore, action.Kind) {
		return nil
	}
	cluster, err := p.Clusters.GetCluster(ctx, clusterID)
	if err != nil {
		return markCheckError(action, err.Error())
	}
	lbData, ok := cluster.LoadBalancerData(p.PolicyID)
	if !ok {
		return nil
	}
	lb := driver.LoadBalancerFromData(lbData)
	candidates, ok := planner.ResolveDeleteCandidates(action)
	if !ok {
		// No plan resolved yet (e.g. CLUSTER_RESIZE planning hasn't run);
		// defer to the dispatcher's own random-candidate selection, which
		// runs before this hook in the normal execution order.
		return nil
	}
	for _, nodeID := range candidates {
		if err := p.LBaaS.RemoveMember(ctx, lb, nodeID); err != nil {
			return markCheckError(action, err.Error())
		}
	}
	return nil
}

// PostOp adds newly-created members to the pool. A failure here degrades the
// cluster to WARNING but does not undo the creation the body already
// committed.
func (p *LBMember) PostOp(ctx context.Context, clusterID string, action *models.Action) error {
	if !p.Meta().TargetsPhaseKind(models.PhaseAfter, action.Kind) {
		return nil
	}
	cluster, err := p.Clusters.GetCluster(ctx, clusterID)
	if err != nil {
		return err
	}
	lbData, ok := cluster.LoadBalancerData(p.PolicyID)
	if !ok {
		return nil
	}
	lb := driver.LoadBalancerFromData(lbData)
	for _, nodeID := range outputNodeIDs(action) {
		node, err := p.Nodes.GetNode(ctx, nodeID)
		if err != nil {
			continue
		}
		if err := p.LBaaS.AddMember(ctx, lb, node); err != nil {
			return models.NewInternal("enroll new member in pool", err)
		}
	}
	return nil
}

func markCheckError(a *models.Action, reason string) error {
	if a.Data == nil {
		a.Data = models.JSONMap{}
	}
	a.Data["status"] = "CHECK_ERROR"
	a.Data["reason"] = reason
	return models.NewBadRequest("%s", reason)
}

// outputNodeIDs reads the node ids an add-side action created, from
// action.Outputs["node_ids"] (the convention the dispatcher's handlers
// populate), falling back to the action's own target for the single-node
// kinds (NODE_CREATE, NODE_JOIN).
func outputNodeIDs(a *models.Action) []string {
	if raw, ok := a.Outputs["node_ids"].([]interface{}); ok {
		out := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	switch a.Kind {
	case models.NodeCreate, models.NodeJoin:
		return []string{a.TargetID}
	}
	return nil
}
