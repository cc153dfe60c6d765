package service

import (
	"context"

	"github.com/clustermgr/engine/internal/models"
)

// PolicyAttachRequest carries cluster_policy_attach/update overrides. Pointer
// fields distinguish "absent" from zero so an explicit enabled=false is
// honored literally instead of being swallowed by a default.
type PolicyAttachRequest struct {
	Policy   string `json:"policy"` // name | uuid | short-uuid
	Priority *int   `json:"priority,omitempty"`
	Level    *int   `json:"level,omitempty"`
	Cooldown *int   `json:"cooldown,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

func validateBindingOverrides(req PolicyAttachRequest) error {
	if req.Priority != nil && (*req.Priority < 0 || *req.Priority > 100) {
		return models.NewInvalidParameter("priority", *req.Priority)
	}
	if req.Level != nil && (*req.Level < 0 || *req.Level > 100) {
		return models.NewInvalidParameter("level", *req.Level)
	}
	if req.Cooldown != nil && *req.Cooldown < 0 {
		return models.NewInvalidParameter("cooldown", *req.Cooldown)
	}
	return nil
}

func (s *Service) ClusterPolicyAttach(ctx context.Context, identity string, req PolicyAttachRequest) (*ActionRef, error) {
	clusterID, err := s.resolve(ctx, "cluster", identity)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetCluster(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	policyID, err := s.resolve(ctx, "policy", req.Policy)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetPolicy(ctx, policyID); err != nil {
		return nil, err
	}
	if err := validateBindingOverrides(req); err != nil {
		return nil, err
	}
	if existing, err := s.store.GetClusterPolicy(ctx, clusterID, policyID); err == nil && existing != nil {
		return nil, models.NewBadRequest("policy %s is already attached to cluster %s", policyID, clusterID)
	}
	inputs, err := models.EncodeInputs(models.AttachPolicyInputs{
		PolicyID: policyID,
		Priority: req.Priority,
		Level:    req.Level,
		Cooldown: req.Cooldown,
		Enabled:  req.Enabled,
	})
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, &models.Action{
		TargetID: c.ID,
		Kind:     models.ClusterAttachPolicy,
		Inputs:   inputs,
		Timeout:  c.Timeout,
	})
}

func (s *Service) ClusterPolicyDetach(ctx context.Context, identity, policy string) (*ActionRef, error) {
	clusterID, err := s.resolve(ctx, "cluster", identity)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetCluster(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	policyID, err := s.resolve(ctx, "policy", policy)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetClusterPolicy(ctx, clusterID, policyID); err != nil {
		return nil, models.NewPolicyBindingNotFound(clusterID, policyID)
	}
	inputs, err := models.EncodeInputs(models.DetachPolicyInputs{PolicyID: policyID})
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, &models.Action{
		TargetID: c.ID,
		Kind:     models.ClusterDetachPolicy,
		Inputs:   inputs,
		Timeout:  c.Timeout,
	})
}

func (s *Service) ClusterPolicyUpdate(ctx context.Context, identity string, req PolicyAttachRequest) (*ActionRef, error) {
	clusterID, err := s.resolve(ctx, "cluster", identity)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetCluster(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	policyID, err := s.resolve(ctx, "policy", req.Policy)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetClusterPolicy(ctx, clusterID, policyID); err != nil {
		return nil, models.NewPolicyBindingNotFound(clusterID, policyID)
	}
	if err := validateBindingOverrides(req); err != nil {
		return nil, err
	}
	if req.Priority == nil && req.Level == nil && req.Cooldown == nil && req.Enabled == nil {
		return nil, models.NewBadRequest("nothing to update")
	}
	inputs, err := models.EncodeInputs(models.AttachPolicyInputs{
		PolicyID: policyID,
		Priority: req.Priority,
		Level:    req.Level,
		Cooldown: req.Cooldown,
		Enabled:  req.Enabled,
	})
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, &models.Action{
		TargetID: c.ID,
		Kind:     models.ClusterUpdatePolicy,
		Inputs:   inputs,
		Timeout:  c.Timeout,
	})
}

// ClusterPolicyList returns the bindings attached to a cluster, priority order.
func (s *Service) ClusterPolicyList(ctx context.Context, identity string) ([]*models.ClusterPolicy, error) {
	clusterID, err := s.resolve(ctx, "cluster", identity)
	if err != nil {
		return nil, err
	}
	return s.store.ListClusterPolicies(ctx, clusterID)
}
