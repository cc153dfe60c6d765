package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/clustermgr/engine/internal/models"
)

// PolicyCreateRequest carries the policy_create intent.
type PolicyCreateRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // registry key, e.g. "lb_member@1.0"
	Spec     []byte `json:"spec"`
	Level    int    `json:"level"`
	Cooldown int    `json:"cooldown"`
}

func (s *Service) PolicyCreate(ctx context.Context, req PolicyCreateRequest) (*models.Policy, error) {
	if req.Name == "" {
		return nil, models.NewInvalidParameter("name", req.Name)
	}
	spec, err := models.CanonicalizeSpec(req.Spec)
	if err != nil {
		return nil, err
	}
	p := &models.Policy{
		ID:       uuid.New().String(),
		Name:     req.Name,
		Type:     req.Type,
		Spec:     spec,
		Level:    req.Level,
		Cooldown: req.Cooldown,
	}
	if err := p.ValidateLevel(); err != nil {
		return nil, err
	}
	impl, err := s.registry.Policy(req.Type, p.ID, spec)
	if err != nil {
		return nil, err
	}
	if err := impl.ValidateProps(ctx, spec); err != nil {
		return nil, models.NewInvalidSpec("policy spec rejected by %s: %v", req.Type, err)
	}
	if err := s.store.CreatePolicy(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) PolicyGet(ctx context.Context, identity string) (*models.Policy, error) {
	id, err := s.resolve(ctx, "policy", identity)
	if err != nil {
		return nil, err
	}
	return s.store.GetPolicy(ctx, id)
}

func (s *Service) PolicyList(ctx context.Context, req ListRequest) ([]*models.Policy, error) {
	return s.store.ListPolicies(ctx, s.listOptions(ctx, req))
}

// PolicyUpdate renames a policy. Spec is immutable by contract; a spec change
// is a new policy row.
func (s *Service) PolicyUpdate(ctx context.Context, identity, name string) (*models.Policy, error) {
	if name == "" {
		return nil, models.NewInvalidParameter("name", name)
	}
	id, err := s.resolve(ctx, "policy", identity)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetPolicy(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = name
	if err := s.store.UpdatePolicyName(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) PolicyDelete(ctx context.Context, identity string) error {
	id, err := s.resolve(ctx, "policy", identity)
	if err != nil {
		return err
	}
	n, err := s.store.CountPolicyBindings(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return models.NewResourceInUse("policy", id)
	}
	return s.store.SoftDeletePolicy(ctx, id)
}
