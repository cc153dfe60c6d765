// Package memdriver is an in-process ProfileDriver/LBaaSDriver used by tests
// and by the engine when no kubeconfig is configured. It performs no I/O:
// Create/Delete just assign a synthetic physical id and record pool
// membership in memory.
package memdriver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/clustermgr/engine/internal/driver"
	"github.com/clustermgr/engine/internal/models"
)

// Driver is a ProfileDriver and LBaaSDriver backed by in-process maps.
type Driver struct {
	mu      sync.Mutex
	seq     int64
	pools   map[string]map[string]bool // poolID -> set of node ids
	lbSeq   int64
	deleted map[string]bool
}

// New returns an empty Driver.
func New() *Driver {
	return &Driver{pools: make(map[string]map[string]bool), deleted: make(map[string]bool)}
}

func (d *Driver) Validate(ctx context.Context, spec models.JSONMap) error { return nil }

func (d *Driver) Create(ctx context.Context, node *models.Node, spec models.JSONMap) error {
	id := atomic.AddInt64(&d.seq, 1)
	node.PhysicalID = fmt.Sprintf("mem-%d", id)
	return nil
}

func (d *Driver) Update(ctx context.Context, node *models.Node, spec models.JSONMap) error {
	if node.PhysicalID == "" {
		return models.NewNotFound("node_physical", node.ID)
	}
	return nil
}

func (d *Driver) Delete(ctx context.Context, node *models.Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted[node.ID] = true
	return nil
}

func (d *Driver) CreateLoadBalancer(ctx context.Context, cluster *models.Cluster, props models.JSONMap) (driver.LoadBalancer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := atomic.AddInt64(&d.lbSeq, 1)
	lb := driver.LoadBalancer{
		LoadBalancerID: fmt.Sprintf("lb-%d", id),
		PoolID:         fmt.Sprintf("pool-%d", id),
		VIPAddress:     fmt.Sprintf("10.0.%d.%d", id/256, id%256),
	}
	d.pools[lb.PoolID] = make(map[string]bool)
	return lb, nil
}

func (d *Driver) DeleteLoadBalancer(ctx context.Context, lb driver.LoadBalancer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pools, lb.PoolID)
	return nil
}

func (d *Driver) AddMember(ctx context.Context, lb driver.LoadBalancer, node *models.Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	pool, ok := d.pools[lb.PoolID]
	if !ok {
		pool = make(map[string]bool)
		d.pools[lb.PoolID] = pool
	}
	pool[node.ID] = true
	return nil
}

func (d *Driver) RemoveMember(ctx context.Context, lb driver.LoadBalancer, nodeID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pool, ok := d.pools[lb.PoolID]; ok {
		delete(pool, nodeID)
	}
	return nil
}

// PoolMembers returns the current membership of poolID, for test assertions.
func (d *Driver) PoolMembers(poolID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	pool := d.pools[poolID]
	out := make([]string, 0, len(pool))
	for id := range pool {
		out = append(out, id)
	}
	return out
}
