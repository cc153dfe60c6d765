package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/clustermgr/engine/internal/models"
)

// NodeCreateRequest carries the node_create intent. Cluster is optional: a
// node created without one is an orphan until node_join/cluster_add_nodes.
type NodeCreateRequest struct {
	Name     string         `json:"name"`
	Profile  string         `json:"profile"`
	Cluster  string         `json:"cluster,omitempty"`
	Role     string         `json:"role,omitempty"`
	Metadata models.JSONMap `json:"metadata,omitempty"`
}

// NodeCreateResult pairs the created entity with its provisioning action.
type NodeCreateResult struct {
	Node   *models.Node `json:"node"`
	Action string       `json:"action"`
}

func (s *Service) NodeCreate(ctx context.Context, req NodeCreateRequest) (*NodeCreateResult, error) {
	if req.Name == "" {
		return nil, models.NewInvalidParameter("name", req.Name)
	}
	profileID, err := s.resolve(ctx, "profile", req.Profile)
	if err != nil {
		return nil, err
	}
	nodeProfile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	n := &models.Node{
		ID:        uuid.New().String(),
		Name:      req.Name,
		ProfileID: profileID,
		Role:      req.Role,
		Status:    models.NodeInit,
		Data:      req.Metadata,
	}
	timeout := defaultClusterTimeout
	if req.Cluster != "" {
		clusterID, err := s.resolve(ctx, "cluster", req.Cluster)
		if err != nil {
			return nil, err
		}
		c, err := s.store.GetCluster(ctx, clusterID)
		if err != nil {
			return nil, err
		}
		clusterProfile, err := s.store.GetProfile(ctx, c.ProfileID)
		if err != nil {
			return nil, err
		}
		if nodeProfile.Type != clusterProfile.Type {
			return nil, models.NewProfileTypeNotMatch(clusterProfile.Type, nodeProfile.Type)
		}
		idx, err := s.store.NextNodeIndex(ctx, clusterID)
		if err != nil {
			return nil, err
		}
		n.ClusterID = &clusterID
		n.Index = idx
		timeout = c.Timeout
	}
	if err := s.store.CreateNode(ctx, n); err != nil {
		return nil, err
	}
	ref, err := s.submit(ctx, &models.Action{
		TargetID: n.ID,
		Kind:     models.NodeCreate,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, err
	}
	return &NodeCreateResult{Node: n, Action: ref.Action}, nil
}

func (s *Service) NodeGet(ctx context.Context, identity string) (*models.Node, error) {
	id, err := s.resolve(ctx, "node", identity)
	if err != nil {
		return nil, err
	}
	return s.store.GetNode(ctx, id)
}

func (s *Service) NodeList(ctx context.Context, req ListRequest) ([]*models.Node, error) {
	return s.store.ListNodes(ctx, s.listOptions(ctx, req))
}

// NodeUpdateRequest carries the node_update intent.
type NodeUpdateRequest struct {
	Name string  `json:"name,omitempty"`
	Role *string `json:"role,omitempty"`
}

// NodeUpdate persists the action AND dispatches it. The original stored the
// action without handing it to the scheduler (dispatch was commented out);
// dispatch is treated as the intended behavior here.
func (s *Service) NodeUpdate(ctx context.Context, identity string, req NodeUpdateRequest) (*ActionRef, error) {
	id, err := s.resolve(ctx, "node", identity)
	if err != nil {
		return nil, err
	}
	n, err := s.store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	inputs := models.JSONMap{}
	if req.Name != "" {
		inputs["name"] = req.Name
	}
	if req.Role != nil {
		inputs["role"] = *req.Role
	}
	if len(inputs) == 0 {
		return nil, models.NewBadRequest("nothing to update")
	}
	return s.submit(ctx, &models.Action{
		TargetID: n.ID,
		Kind:     models.NodeUpdate,
		Inputs:   inputs,
		Timeout:  defaultClusterTimeout,
	})
}

func (s *Service) NodeDelete(ctx context.Context, identity string) (*ActionRef, error) {
	id, err := s.resolve(ctx, "node", identity)
	if err != nil {
		return nil, err
	}
	n, err := s.store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, &models.Action{
		TargetID: n.ID,
		Kind:     models.NodeDelete,
		Timeout:  defaultClusterTimeout,
	})
}

func (s *Service) NodeJoin(ctx context.Context, identity, cluster string) (*ActionRef, error) {
	nodeID, err := s.resolve(ctx, "node", identity)
	if err != nil {
		return nil, err
	}
	n, err := s.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if err := n.RequireOrphan(); err != nil {
		return nil, err
	}
	clusterID, err := s.resolve(ctx, "cluster", cluster)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetCluster(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	clusterProfile, err := s.store.GetProfile(ctx, c.ProfileID)
	if err != nil {
		return nil, err
	}
	nodeProfile, err := s.store.GetProfile(ctx, n.ProfileID)
	if err != nil {
		return nil, err
	}
	if nodeProfile.Type != clusterProfile.Type {
		return nil, models.NewProfileTypeNotMatch(clusterProfile.Type, nodeProfile.Type)
	}
	inputs, err := models.EncodeInputs(models.NodeJoinInputs{ClusterID: clusterID})
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, &models.Action{
		TargetID: n.ID,
		Kind:     models.NodeJoin,
		Inputs:   inputs,
		Timeout:  c.Timeout,
	})
}

func (s *Service) NodeLeave(ctx context.Context, identity string) (*ActionRef, error) {
	nodeID, err := s.resolve(ctx, "node", identity)
	if err != nil {
		return nil, err
	}
	n, err := s.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if n.IsOrphan() {
		return nil, models.NewBadRequest("node %s does not belong to any cluster", n.ID)
	}
	return s.submit(ctx, &models.Action{
		TargetID: n.ID,
		Kind:     models.NodeLeave,
		Timeout:  defaultClusterTimeout,
	})
}
