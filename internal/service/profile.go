package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/clustermgr/engine/internal/models"
	"github.com/clustermgr/engine/internal/registry"
)

// ProfileCreateRequest carries the profile_create intent. Spec is the raw
// YAML-or-JSON document; it is canonicalized to JSON before storage.
type ProfileCreateRequest struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Version    string         `json:"version"`
	Spec       []byte         `json:"spec"`
	Permission string         `json:"permission,omitempty"`
	Metadata   models.JSONMap `json:"metadata,omitempty"`
}

func (s *Service) ProfileCreate(ctx context.Context, req ProfileCreateRequest) (*models.Profile, error) {
	if req.Name == "" {
		return nil, models.NewInvalidParameter("name", req.Name)
	}
	if req.Type == "" {
		return nil, models.NewInvalidParameter("type", req.Type)
	}
	spec, err := models.CanonicalizeSpec(req.Spec)
	if err != nil {
		return nil, err
	}
	drv, err := s.registry.Profile(registry.Key(req.Type, req.Version), spec)
	if err != nil {
		return nil, err
	}
	if err := drv.Validate(ctx, spec); err != nil {
		return nil, models.NewInvalidSpec("profile spec rejected by %s driver: %v", req.Type, err)
	}
	p := &models.Profile{
		ID:         uuid.New().String(),
		Name:       req.Name,
		Type:       req.Type,
		Version:    req.Version,
		Spec:       spec,
		Permission: req.Permission,
		Metadata:   req.Metadata,
	}
	if err := s.store.CreateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ProfileGet(ctx context.Context, identity string) (*models.Profile, error) {
	id, err := s.resolve(ctx, "profile", identity)
	if err != nil {
		return nil, err
	}
	return s.store.GetProfile(ctx, id)
}

func (s *Service) ProfileList(ctx context.Context, req ListRequest) ([]*models.Profile, error) {
	return s.store.ListProfiles(ctx, s.listOptions(ctx, req))
}

// ProfileUpdateRequest carries the in-place-updatable attributes. A spec
// change is not an update: profiles are immutable after creation, so callers
// wanting a new spec create a new profile row.
type ProfileUpdateRequest struct {
	Name       string         `json:"name,omitempty"`
	Permission string         `json:"permission,omitempty"`
	Metadata   models.JSONMap `json:"metadata,omitempty"`
}

func (s *Service) ProfileUpdate(ctx context.Context, identity string, req ProfileUpdateRequest) (*models.Profile, error) {
	id, err := s.resolve(ctx, "profile", identity)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		p.Name = req.Name
	}
	if req.Permission != "" {
		p.Permission = req.Permission
	}
	if req.Metadata != nil {
		p.Metadata = req.Metadata
	}
	if err := s.store.UpdateProfileMetadata(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ProfileDelete(ctx context.Context, identity string) error {
	id, err := s.resolve(ctx, "profile", identity)
	if err != nil {
		return err
	}
	clusters, err := s.store.ListClusters(ctx, s.listOptions(ctx, ListRequest{Filters: map[string]string{"profile_id": id}}))
	if err != nil {
		return err
	}
	if len(clusters) > 0 {
		return models.NewResourceInUse("profile", id)
	}
	return s.store.SoftDeleteProfile(ctx, id)
}
