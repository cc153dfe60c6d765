package models

import "time"

// NodeStatus is the lifecycle state of a Node.
type NodeStatus string

const (
	NodeInit     NodeStatus = "INIT"
	NodeCreating NodeStatus = "CREATING"
	NodeActive   NodeStatus = "ACTIVE"
	NodeUpdating NodeStatus = "UPDATING"
	NodeDeleting NodeStatus = "DELETING"
	NodeError    NodeStatus = "ERROR"
	NodeWarning  NodeStatus = "WARNING"
)

// Node is a provisionable unit; an orphan when ClusterID is nil, otherwise a member
// of exactly one cluster.
type Node struct {
	ID           string     `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	ProfileID    string     `json:"profile_id" db:"profile_id"`
	ClusterID    *string    `json:"cluster_id,omitempty" db:"cluster_id"`
	Role         string     `json:"role" db:"role"`
	Index        int        `json:"index" db:"index_"` // dense, 1-based, monotonic at creation
	Status       NodeStatus `json:"status" db:"status"`
	StatusReason string     `json:"status_reason,omitempty" db:"status_reason"`
	PhysicalID   string     `json:"physical_id,omitempty" db:"physical_id"` // driver-assigned, may be empty pre-provision
	Data         JSONMap    `json:"data" db:"data"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// IsOrphan reports whether the node has no owning cluster.
func (n *Node) IsOrphan() bool { return n.ClusterID == nil }

// RequireOrphan returns NodeNotOrphanError when the node already belongs to a cluster.
func (n *Node) RequireOrphan() error {
	if !n.IsOrphan() {
		return NewNodeNotOrphan(n.ID)
	}
	return nil
}

// Join assigns the node to a cluster at the given dense index. Callers must have
// already checked profile-type compatibility against the cluster's profile.
func (n *Node) Join(clusterID string, index int) {
	n.ClusterID = &clusterID
	n.Index = index
	n.Status = NodeUpdating
}

// Leave clears cluster ownership, leaving the node an orphan. Index is retained for
// audit purposes; it has no meaning once detached.
func (n *Node) Leave() {
	n.ClusterID = nil
}
