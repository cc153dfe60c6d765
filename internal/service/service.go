// Package service is the facade every client intent passes through: it
// parses and validates parameters, resolves identities, applies entity-level
// cross-checks, persists new entities, and hands the resulting action to the
// dispatcher. Read-only intents return entity projections synchronously and
// never touch the action pipeline.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/clustermgr/engine/internal/auth"
	"github.com/clustermgr/engine/internal/models"
	"github.com/clustermgr/engine/internal/registry"
	"github.com/clustermgr/engine/internal/store"
)

// Notifier is the one dispatcher capability the facade needs: waking a worker
// after an action row is persisted. Kept as a single-method interface so
// tests can run the facade without a live worker pool.
type Notifier interface {
	Notify(actionID string)
}

// noopNotifier stands in when no dispatcher is wired (facade-only tests); the
// poll loop of any real engine sharing the store still finds the action.
type noopNotifier struct{}

func (noopNotifier) Notify(string) {}

// Service translates validated client intents into persisted entities and
// actions.
type Service struct {
	store    store.Store
	registry *registry.Registry
	dispatch Notifier
	codec    models.WebhookCodec
	log      *slog.Logger
}

// New constructs the facade. dispatch and codec may be nil: a nil dispatch
// degrades Notify to a no-op, a nil codec disables webhook-token triggering.
func New(st store.Store, reg *registry.Registry, dispatch Notifier, codec models.WebhookCodec, log *slog.Logger) *Service {
	if dispatch == nil {
		dispatch = noopNotifier{}
	}
	return &Service{store: st, registry: reg, dispatch: dispatch, codec: codec, log: log}
}

// ActionRef is the {action} result every asynchronous intent returns; clients
// poll action_get with it.
type ActionRef struct {
	Action string `json:"action"`
}

// ownerFrom derives the entity owner scope from the request's trust context.
// Requests arriving with no claims (auth disabled) get an empty owner.
func ownerFrom(ctx context.Context) models.Owner {
	c := auth.ClaimsFromContext(ctx)
	if c == nil {
		return models.Owner{}
	}
	return models.Owner{User: c.User, Project: c.Project, Domain: c.Domain}
}

// projectScope returns the project filter applied to identity resolution and
// listings: admins see everything, everyone else only their own project.
func projectScope(ctx context.Context) string {
	c := auth.ClaimsFromContext(ctx)
	if c == nil || c.IsAdmin {
		return ""
	}
	return c.Project
}

// submit persists a and wakes a worker. Every mutating intent funnels through
// here so the status/cause defaults are set in exactly one place.
func (s *Service) submit(ctx context.Context, a *models.Action) (*ActionRef, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Cause == "" {
		a.Cause = models.CauseRPC
	}
	if a.Status == "" {
		if len(a.DependsOn) > 0 {
			a.Status = models.ActionWaiting
		} else {
			a.Status = models.ActionReady
		}
	}
	if err := s.store.CreateAction(ctx, a); err != nil {
		return nil, err
	}
	s.dispatch.Notify(a.ID)
	s.log.Info("action submitted", "action_id", a.ID, "kind", a.Kind, "target_id", a.TargetID)
	return &ActionRef{Action: a.ID}, nil
}

// resolve wraps the store's identity resolver with the caller's project scope.
func (s *Service) resolve(ctx context.Context, kind, identity string) (string, error) {
	return s.store.Resolve(ctx, kind, projectScope(ctx), identity)
}

// ListRequest mirrors the common parameters every *_list method accepts.
type ListRequest struct {
	Limit       int               `json:"limit,omitempty"`
	Marker      string            `json:"marker,omitempty"`
	SortKeys    []string          `json:"sort_keys,omitempty"`
	SortDir     string            `json:"sort_dir,omitempty"`
	Filters     map[string]string `json:"filters,omitempty"`
	ShowDeleted bool              `json:"show_deleted,omitempty"`
}

func (s *Service) listOptions(ctx context.Context, req ListRequest) store.ListOptions {
	return store.ListOptions{
		Limit:       req.Limit,
		Marker:      req.Marker,
		SortKeys:    req.SortKeys,
		SortDir:     req.SortDir,
		Filters:     req.Filters,
		ProjectSafe: projectScope(ctx),
		ShowDeleted: req.ShowDeleted,
	}
}
