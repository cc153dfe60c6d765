package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/clustermgr/engine/internal/models"
	"github.com/clustermgr/engine/internal/planner"
	"github.com/clustermgr/engine/internal/registry"
)

// ClusterCreateRequest carries the cluster_create intent.
type ClusterCreateRequest struct {
	Name            string         `json:"name"`
	Profile         string         `json:"profile"` // name | uuid | short-uuid
	DesiredCapacity int            `json:"desired_capacity"`
	MinSize         int            `json:"min_size"`
	MaxSize         *int           `json:"max_size,omitempty"` // nil means unbounded
	Parent          string         `json:"parent,omitempty"`
	Timeout         int            `json:"timeout,omitempty"`
	Metadata        models.JSONMap `json:"metadata,omitempty"`
}

// ClusterCreateResult pairs the created entity with the action driving it to
// ACTIVE, so callers can poll the provisioning progress.
type ClusterCreateResult struct {
	Cluster *models.Cluster `json:"cluster"`
	Action  string          `json:"action"`
}

func (s *Service) ClusterCreate(ctx context.Context, req ClusterCreateRequest) (*ClusterCreateResult, error) {
	if req.Name == "" {
		return nil, models.NewInvalidParameter("name", req.Name)
	}
	profileID, err := s.resolve(ctx, "profile", req.Profile)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	// Fail fast on a profile type the registry can't serve; the alternative is
	// every NODE_CREATE failing later.
	if _, err := s.registry.Profile(registry.Key(p.Type, p.Version), p.Spec); err != nil {
		return nil, err
	}

	maxSize := models.Unbounded
	if req.MaxSize != nil {
		maxSize = *req.MaxSize
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultClusterTimeout
	}
	c := &models.Cluster{
		ID:              uuid.New().String(),
		Name:            req.Name,
		ProfileID:       profileID,
		DesiredCapacity: req.DesiredCapacity,
		MinSize:         req.MinSize,
		MaxSize:         maxSize,
		Timeout:         timeout,
		Metadata:        req.Metadata,
		Status:          models.ClusterInit,
		Owner:           ownerFrom(ctx),
		Data:            models.JSONMap{},
	}
	if req.Parent != "" {
		parentID, err := s.resolve(ctx, "cluster", req.Parent)
		if err != nil {
			return nil, err
		}
		c.ParentID = &parentID
	}
	if err := c.ValidateSizes(); err != nil {
		return nil, err
	}
	if err := s.store.CreateCluster(ctx, c); err != nil {
		return nil, err
	}

	ref, err := s.submit(ctx, &models.Action{
		TargetID: c.ID,
		Kind:     models.ClusterCreate,
		Timeout:  c.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &ClusterCreateResult{Cluster: c, Action: ref.Action}, nil
}

const defaultClusterTimeout = 3600 // seconds

func (s *Service) ClusterGet(ctx context.Context, identity string) (*models.Cluster, error) {
	id, err := s.resolve(ctx, "cluster", identity)
	if err != nil {
		return nil, err
	}
	return s.store.GetCluster(ctx, id)
}

func (s *Service) ClusterList(ctx context.Context, req ListRequest) ([]*models.Cluster, error) {
	return s.store.ListClusters(ctx, s.listOptions(ctx, req))
}

// ClusterUpdateRequest carries the cluster_update intent; zero values mean
// "leave unchanged".
type ClusterUpdateRequest struct {
	Name     string         `json:"name,omitempty"`
	Profile  string         `json:"profile,omitempty"`
	Timeout  *int           `json:"timeout,omitempty"`
	Metadata models.JSONMap `json:"metadata,omitempty"`
}

func (s *Service) ClusterUpdate(ctx context.Context, identity string, req ClusterUpdateRequest) (*ActionRef, error) {
	id, err := s.resolve(ctx, "cluster", identity)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetCluster(ctx, id)
	if err != nil {
		return nil, err
	}

	inputs := models.JSONMap{}
	if req.Name != "" {
		inputs["name"] = req.Name
	}
	if req.Timeout != nil {
		if *req.Timeout <= 0 {
			return nil, models.NewInvalidParameter("timeout", *req.Timeout)
		}
		inputs["timeout"] = *req.Timeout
	}
	if req.Metadata != nil {
		inputs["metadata"] = map[string]interface{}(req.Metadata)
	}
	if req.Profile != "" {
		if c.Status == models.ClusterError {
			return nil, models.NewBadRequest("cluster %s is in ERROR and cannot be profile-updated", c.ID)
		}
		newProfileID, err := s.resolve(ctx, "profile", req.Profile)
		if err != nil {
			return nil, err
		}
		newProfile, err := s.store.GetProfile(ctx, newProfileID)
		if err != nil {
			return nil, err
		}
		curProfile, err := s.store.GetProfile(ctx, c.ProfileID)
		if err != nil {
			return nil, err
		}
		if newProfile.Type != curProfile.Type {
			return nil, models.NewProfileTypeNotMatch(curProfile.Type, newProfile.Type)
		}
		inputs["profile_id"] = newProfileID
	}
	if len(inputs) == 0 {
		return nil, models.NewBadRequest("nothing to update")
	}

	return s.submit(ctx, &models.Action{
		TargetID: c.ID,
		Kind:     models.ClusterUpdate,
		Inputs:   inputs,
		Timeout:  c.Timeout,
	})
}

func (s *Service) ClusterDelete(ctx context.Context, identity string) (*ActionRef, error) {
	id, err := s.resolve(ctx, "cluster", identity)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetCluster(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := s.store.CountAttachedPolicies(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, models.NewBadRequest("cluster %s has %d attached polic(ies); detach before deleting", c.ID, n)
	}
	return s.submit(ctx, &models.Action{
		TargetID: c.ID,
		Kind:     models.ClusterDelete,
		Timeout:  c.Timeout,
	})
}

// resolveMemberNodes resolves each node identity and normalizes the
// CLUSTER_ADD_NODES/CLUSTER_DEL_NODES inputs to full UUIDs.
func (s *Service) resolveMemberNodes(ctx context.Context, identities []string) ([]string, error) {
	if len(identities) == 0 {
		return nil, models.NewBadRequest("nodes must not be empty")
	}
	out := make([]string, 0, len(identities))
	for _, ident := range identities {
		id, err := s.resolve(ctx, "node", ident)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *Service) ClusterAddNodes(ctx context.Context, identity string, nodes []string) (*ActionRef, error) {
	id, err := s.resolve(ctx, "cluster", identity)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetCluster(ctx, id)
	if err != nil {
		return nil, err
	}
	nodeIDs, err := s.resolveMemberNodes(ctx, nodes)
	if err != nil {
		return nil, err
	}
	// Orphanship and profile-type compatibility are validated here too so the
	// caller gets a synchronous error instead of a FAILED action for a request
	// that can never succeed.
	clusterProfile, err := s.store.GetProfile(ctx, c.ProfileID)
	if err != nil {
		return nil, err
	}
	for _, nodeID := range nodeIDs {
		n, err := s.store.GetNode(ctx, nodeID)
		if err != nil {
			return nil, err
		}
		if err := n.RequireOrphan(); err != nil {
			return nil, err
		}
		nodeProfile, err := s.store.GetProfile(ctx, n.ProfileID)
		if err != nil {
			return nil, err
		}
		if nodeProfile.Type != clusterProfile.Type {
			return nil, models.NewProfileTypeNotMatch(clusterProfile.Type, nodeProfile.Type)
		}
	}
	inputs, err := models.EncodeInputs(models.AddNodesInputs{Nodes: nodeIDs})
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, &models.Action{
		TargetID: c.ID,
		Kind:     models.ClusterAddNodes,
		Inputs:   inputs,
		Timeout:  c.Timeout,
	})
}

func (s *Service) ClusterDelNodes(ctx context.Context, identity string, nodes []string) (*ActionRef, error) {
	id, err := s.resolve(ctx, "cluster", identity)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetCluster(ctx, id)
	if err != nil {
		return nil, err
	}
	nodeIDs, err := s.resolveMemberNodes(ctx, nodes)
	if err != nil {
		return nil, err
	}
	for _, nodeID := range nodeIDs {
		n, err := s.store.GetNode(ctx, nodeID)
		if err != nil {
			return nil, err
		}
		if n.ClusterID == nil || *n.ClusterID != c.ID {
			return nil, models.NewBadRequest("node %s is not a member of cluster %s", nodeID, c.ID)
		}
	}
	inputs, err := models.EncodeInputs(models.AddNodesInputs{Nodes: nodeIDs})
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, &models.Action{
		TargetID: c.ID,
		Kind:     models.ClusterDelNodes,
		Inputs:   inputs,
		Timeout:  c.Timeout,
	})
}

// ClusterResizeRequest carries the cluster_resize intent before coercion.
type ClusterResizeRequest struct {
	AdjType string   `json:"adjustment_type,omitempty"`
	Number  *float64 `json:"number,omitempty"`
	MinSize *int     `json:"min_size,omitempty"`
	MaxSize *int     `json:"max_size,omitempty"`
	MinStep *int     `json:"min_step,omitempty"`
	Strict  bool     `json:"strict,omitempty"`
}

// validateResize applies the resize parameter rules that can be checked without
// knowing the cluster's current size; resolution against current size is the
// dispatcher's planning step.
func validateResize(req ClusterResizeRequest) error {
	if req.AdjType == "" {
		if req.Number != nil {
			return models.NewBadRequest("number requires adjustment_type")
		}
		return models.NewBadRequest("adjustment_type is required")
	}
	switch planner.AdjType(req.AdjType) {
	case planner.AdjExactCapacity, planner.AdjChangeInCapacity, planner.AdjChangeInPercentage:
	default:
		return models.NewInvalidParameter("adjustment_type", req.AdjType)
	}
	if req.Number == nil {
		return models.NewBadRequest("number is required when adjustment_type is set")
	}
	n := *req.Number
	switch planner.AdjType(req.AdjType) {
	case planner.AdjExactCapacity:
		if n < 0 || n != float64(int(n)) {
			return models.NewInvalidParameter("number", n)
		}
	case planner.AdjChangeInCapacity:
		if n != float64(int(n)) {
			return models.NewInvalidParameter("number", n)
		}
	}
	if req.MinStep != nil && planner.AdjType(req.AdjType) != planner.AdjChangeInPercentage {
		return models.NewBadRequest("min_step is only valid with CHANGE_IN_PERCENTAGE")
	}
	if req.MinSize != nil && *req.MinSize < 0 {
		return models.NewInvalidParameter("min_size", *req.MinSize)
	}
	if req.MaxSize != nil && *req.MaxSize < models.Unbounded {
		return models.NewInvalidParameter("max_size", *req.MaxSize)
	}
	if req.MinSize != nil && req.MaxSize != nil && *req.MaxSize != models.Unbounded && *req.MaxSize < *req.MinSize {
		return models.NewBadRequest("max_size (%d) must not be below min_size (%d)", *req.MaxSize, *req.MinSize)
	}
	return nil
}

func (s *Service) ClusterResize(ctx context.Context, identity string, req ClusterResizeRequest) (*ActionRef, error) {
	id, err := s.resolve(ctx, "cluster", identity)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetCluster(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateResize(req); err != nil {
		return nil, err
	}
	inputs, err := models.EncodeInputs(models.ResizeInputs{
		AdjType: req.AdjType,
		Number:  req.Number,
		MinSize: req.MinSize,
		MaxSize: req.MaxSize,
		MinStep: req.MinStep,
		Strict:  req.Strict,
	})
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, &models.Action{
		TargetID: c.ID,
		Kind:     models.ClusterResize,
		Inputs:   inputs,
		Timeout:  c.Timeout,
	})
}

func (s *Service) ClusterScaleOut(ctx context.Context, identity string, count int) (*ActionRef, error) {
	return s.scale(ctx, identity, count, models.ClusterScaleOut)
}

func (s *Service) ClusterScaleIn(ctx context.Context, identity string, count int) (*ActionRef, error) {
	return s.scale(ctx, identity, count, models.ClusterScaleIn)
}

func (s *Service) scale(ctx context.Context, identity string, count int, kind models.ActionKind) (*ActionRef, error) {
	id, err := s.resolve(ctx, "cluster", identity)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetCluster(ctx, id)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		count = 1
	}
	if count < 0 {
		return nil, models.NewInvalidParameter("count", count)
	}
	inputs, err := models.EncodeInputs(models.ScaleInputs{Count: count})
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, &models.Action{
		TargetID: c.ID,
		Kind:     kind,
		Inputs:   inputs,
		Timeout:  c.Timeout,
	})
}
