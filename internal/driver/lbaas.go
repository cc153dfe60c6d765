// Package driver declares the cloud-resource driver contracts the action
// pipeline's reference policy and profile handlers invoke. Concrete
// implementations (internal/driver/k8sdriver) are external collaborators:
// the pipeline sequences when they are called, not how they provision
// anything.
package driver

import (
	"context"

	"github.com/clustermgr/engine/internal/models"
)

// LBaaSDriver is the load-balancer-as-a-service contract the reference
// lb_member policy drives: create/destroy the VIP+pool(+monitor), and
// add/remove individual node memberships.
type LBaaSDriver interface {
	// CreateLoadBalancer provisions a VIP, pool, and optional health monitor
	// for a policy attachment. props comes from the policy row's Spec.
	CreateLoadBalancer(ctx context.Context, cluster *models.Cluster, props models.JSONMap) (LoadBalancer, error)
	// DeleteLoadBalancer tears down the resources CreateLoadBalancer made.
	DeleteLoadBalancer(ctx context.Context, lb LoadBalancer) error
	// AddMember adds node to the pool.
	AddMember(ctx context.Context, lb LoadBalancer, node *models.Node) error
	// RemoveMember removes nodeID from the pool. Safe to call on a member that
	// is already absent (idempotent from the caller's point of view).
	RemoveMember(ctx context.Context, lb LoadBalancer, nodeID string) error
}

// LoadBalancer is the descriptor persisted into a ClusterPolicy binding's Data
// ({loadbalancer, pool, [hm]}) and into the cluster's Data under
// loadbalancers[policy_id].
type LoadBalancer struct {
	LoadBalancerID  string `json:"loadbalancer"`
	PoolID          string `json:"pool"`
	HealthMonitorID string `json:"hm,omitempty"`
	VIPAddress      string `json:"vip_address"`
}

// ToData round-trips a LoadBalancer into the JSONMap shape the binding row
// persists.
func (lb LoadBalancer) ToData() models.JSONMap {
	m := models.JSONMap{
		"loadbalancer": lb.LoadBalancerID,
		"pool":         lb.PoolID,
		"vip_address":  lb.VIPAddress,
	}
	if lb.HealthMonitorID != "" {
		m["hm"] = lb.HealthMonitorID
	}
	return m
}

// LoadBalancerFromData reconstructs a LoadBalancer from a binding's persisted Data.
func LoadBalancerFromData(m models.JSONMap) LoadBalancer {
	lb := LoadBalancer{}
	if v, ok := m["loadbalancer"].(string); ok {
		lb.LoadBalancerID = v
	}
	if v, ok := m["pool"].(string); ok {
		lb.PoolID = v
	}
	if v, ok := m["hm"].(string); ok {
		lb.HealthMonitorID = v
	}
	if v, ok := m["vip_address"].(string); ok {
		lb.VIPAddress = v
	}
	return lb
}
