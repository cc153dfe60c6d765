package models

import "time"

// ClusterStatus is the lifecycle state of a Cluster.
type ClusterStatus string

const (
	ClusterInit     ClusterStatus = "INIT"
	ClusterCreating ClusterStatus = "CREATING"
	ClusterActive   ClusterStatus = "ACTIVE"
	ClusterUpdating ClusterStatus = "UPDATING"
	ClusterResizing ClusterStatus = "RESIZING"
	ClusterDeleting ClusterStatus = "DELETING"
	ClusterError    ClusterStatus = "ERROR"
	ClusterWarning  ClusterStatus = "WARNING"
)

// Unbounded is the sentinel max-size value meaning "no upper bound".
const Unbounded = -1

// Owner identifies the user/project/domain scope a cluster belongs to, mirroring the
// trust context carried on every RPC request (see auth.Claims).
type Owner struct {
	User    string `json:"user" db:"owner_user"`
	Project string `json:"project" db:"owner_project"`
	Domain  string `json:"domain" db:"owner_domain"`
}

// Cluster is a named set of homogeneous nodes plus size bounds and a profile reference.
type Cluster struct {
	ID              string        `json:"id" db:"id"`
	Name            string        `json:"name" db:"name"`
	ProfileID       string        `json:"profile_id" db:"profile_id"`
	ParentID        *string       `json:"parent_id,omitempty" db:"parent_id"`
	DesiredCapacity int           `json:"desired_capacity" db:"desired_capacity"`
	MinSize         int           `json:"min_size" db:"min_size"`
	MaxSize         int           `json:"max_size" db:"max_size"` // Unbounded (-1) means no cap
	Timeout         int           `json:"timeout" db:"timeout"`   // seconds
	Metadata        JSONMap       `json:"metadata" db:"metadata"`
	Status          ClusterStatus `json:"status" db:"status"`
	StatusReason    string        `json:"status_reason,omitempty" db:"status_reason"`
	Owner           Owner         `json:"owner"`
	// Data holds ancillary per-cluster artifacts such as attached-LB descriptors,
	// keyed "loadbalancers.<policy-id>" by convention.
	Data      JSONMap    `json:"data" db:"data"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// ValidateSizes enforces min-size <= desired-capacity <= max-size when max-size is bounded.
func (c *Cluster) ValidateSizes() error {
	if c.MinSize < 0 {
		return NewInvalidParameter("min_size", c.MinSize)
	}
	if c.MaxSize != Unbounded && c.MaxSize < 0 {
		return NewInvalidParameter("max_size", c.MaxSize)
	}
	if c.MinSize > c.DesiredCapacity {
		return NewBadRequest("min_size (%d) must not exceed desired_capacity (%d)", c.MinSize, c.DesiredCapacity)
	}
	if c.MaxSize != Unbounded {
		if c.DesiredCapacity > c.MaxSize {
			return NewBadRequest("desired_capacity (%d) must not exceed max_size (%d)", c.DesiredCapacity, c.MaxSize)
		}
		if c.MinSize > c.MaxSize {
			return NewBadRequest("min_size (%d) must not exceed max_size (%d)", c.MinSize, c.MaxSize)
		}
	}
	return nil
}

// LoadBalancerData returns the per-policy LB descriptor persisted under Data["loadbalancers"][policyID].
func (c *Cluster) LoadBalancerData(policyID string) (JSONMap, bool) {
	lbs, ok := c.Data["loadbalancers"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	entry, ok := lbs[policyID]
	if !ok {
		return nil, false
	}
	m, ok := entry.(map[string]interface{})
	return JSONMap(m), ok
}

// SetLoadBalancerData records the VIP/pool/monitor descriptor for a policy attachment.
func (c *Cluster) SetLoadBalancerData(policyID string, data JSONMap) {
	if c.Data == nil {
		c.Data = JSONMap{}
	}
	lbs, ok := c.Data["loadbalancers"].(map[string]interface{})
	if !ok {
		lbs = map[string]interface{}{}
	}
	lbs[policyID] = map[string]interface{}(data)
	c.Data["loadbalancers"] = lbs
}

// ClearLoadBalancerData removes the descriptor on detach.
func (c *Cluster) ClearLoadBalancerData(policyID string) {
	lbs, ok := c.Data["loadbalancers"].(map[string]interface{})
	if !ok {
		return
	}
	delete(lbs, policyID)
	c.Data["loadbalancers"] = lbs
}
