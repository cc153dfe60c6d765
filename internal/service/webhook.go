package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clustermgr/engine/internal/models"
)

// WebhookCreateRequest carries the webhook_create intent.
type WebhookCreateRequest struct {
	Name       string         `json:"name"`
	ObjType    string         `json:"obj_type"` // cluster | node | policy
	ObjID      string         `json:"obj_id"`   // identity of the target entity
	ActionKind string         `json:"action"`   // must start with obj_type, e.g. CLUSTER_SCALE_OUT
	Params     models.JSONMap `json:"params,omitempty"`
}

// WebhookCreateResult returns the entity plus the opaque trigger token; the
// token is shown exactly once and never persisted in the clear.
type WebhookCreateResult struct {
	Webhook *models.Webhook `json:"webhook"`
	Token   string          `json:"token"`
}

func (s *Service) WebhookCreate(ctx context.Context, req WebhookCreateRequest) (*WebhookCreateResult, error) {
	if s.codec == nil {
		return nil, models.NewFeatureNotSupported("webhook token issuance (no encryption key configured)")
	}
	objType := models.WebhookObjType(strings.ToLower(req.ObjType))
	switch objType {
	case models.WebhookObjCluster, models.WebhookObjNode, models.WebhookObjPolicy:
	default:
		return nil, models.NewInvalidParameter("obj_type", req.ObjType)
	}
	objID, err := s.resolve(ctx, string(objType), req.ObjID)
	if err != nil {
		return nil, err
	}
	w := &models.Webhook{
		ID:         uuid.New().String(),
		Name:       req.Name,
		ObjType:    objType,
		ObjID:      objID,
		ActionKind: models.ActionKind(req.ActionKind),
		Creator:    ownerFrom(ctx),
		Params:     req.Params,
	}
	if err := w.ValidateActionKind(); err != nil {
		return nil, err
	}
	if err := s.store.CreateWebhook(ctx, w); err != nil {
		return nil, err
	}
	token, err := s.codec.Encrypt(w.ID)
	if err != nil {
		return nil, models.NewInternal("encrypt webhook token", err)
	}
	return &WebhookCreateResult{Webhook: w, Token: token}, nil
}

func (s *Service) WebhookGet(ctx context.Context, identity string) (*models.Webhook, error) {
	id, err := s.resolve(ctx, "webhook", identity)
	if err != nil {
		return nil, err
	}
	return s.store.GetWebhook(ctx, id)
}

func (s *Service) WebhookList(ctx context.Context, req ListRequest) ([]*models.Webhook, error) {
	return s.store.ListWebhooks(ctx, s.listOptions(ctx, req))
}

func (s *Service) WebhookDelete(ctx context.Context, identity string) error {
	id, err := s.resolve(ctx, "webhook", identity)
	if err != nil {
		return err
	}
	return s.store.SoftDeleteWebhook(ctx, id)
}

// WebhookTrigger accepts the opaque token, decrypts it into the webhook id,
// and synthesizes the registered action as the webhook's original creator;
// the caller of this endpoint is unauthenticated by design.
func (s *Service) WebhookTrigger(ctx context.Context, token string, params models.JSONMap) (*ActionRef, error) {
	if s.codec == nil {
		return nil, models.NewFeatureNotSupported("webhook token issuance (no encryption key configured)")
	}
	webhookID, err := s.codec.Decrypt(token)
	if err != nil {
		return nil, models.NewNotFound("webhook", token)
	}
	w, err := s.store.GetWebhook(ctx, webhookID)
	if err != nil {
		return nil, err
	}
	inputs := models.JSONMap{}
	for k, v := range w.Params {
		inputs[k] = v
	}
	for k, v := range params {
		inputs[k] = v
	}
	timeout := defaultClusterTimeout
	if w.ObjType == models.WebhookObjCluster {
		if c, err := s.store.GetCluster(ctx, w.ObjID); err == nil {
			timeout = c.Timeout
		}
	}
	return s.submit(ctx, &models.Action{
		TargetID: w.ObjID,
		Kind:     w.ActionKind,
		Inputs:   inputs,
		Timeout:  timeout,
	})
}

// TriggerCreateRequest carries the trigger_create intent.
type TriggerCreateRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"` // registry key, e.g. "alarm@1.0"
	Spec    []byte `json:"spec"`
	Enabled *bool  `json:"enabled,omitempty"`
}

func (s *Service) TriggerCreate(ctx context.Context, req TriggerCreateRequest) (*models.Trigger, error) {
	if req.Name == "" {
		return nil, models.NewInvalidParameter("name", req.Name)
	}
	spec, err := models.CanonicalizeSpec(req.Spec)
	if err != nil {
		return nil, err
	}
	impl, err := s.registry.Trigger(req.Type, spec)
	if err != nil {
		return nil, err
	}
	if err := impl.Validate(ctx, spec); err != nil {
		return nil, models.NewInvalidSpec("trigger spec rejected by %s: %v", req.Type, err)
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	t := &models.Trigger{
		ID:      uuid.New().String(),
		Name:    req.Name,
		Type:    req.Type,
		Spec:    spec,
		Enabled: enabled,
	}
	if err := s.store.CreateTrigger(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) TriggerGet(ctx context.Context, identity string) (*models.Trigger, error) {
	id, err := s.resolve(ctx, "trigger", identity)
	if err != nil {
		return nil, err
	}
	return s.store.GetTrigger(ctx, id)
}

func (s *Service) TriggerList(ctx context.Context, req ListRequest) ([]*models.Trigger, error) {
	return s.store.ListTriggers(ctx, s.listOptions(ctx, req))
}

func (s *Service) TriggerDelete(ctx context.Context, identity string) error {
	id, err := s.resolve(ctx, "trigger", identity)
	if err != nil {
		return err
	}
	return s.store.SoftDeleteTrigger(ctx, id)
}
