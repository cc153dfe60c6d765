package service

import (
	"context"

	"github.com/clustermgr/engine/internal/models"
)

func (s *Service) ActionGet(ctx context.Context, id string) (*models.Action, error) {
	return s.store.GetAction(ctx, id)
}

func (s *Service) ActionList(ctx context.Context, req ListRequest) ([]*models.Action, error) {
	return s.store.ListActions(ctx, s.listOptions(ctx, req))
}

// ActionDelete cancels a pending action, or requests a cooperative cancel on
// a RUNNING one. Terminal actions are immutable;
// "deleting" one is a no-op error surfaced as BadRequest.
func (s *Service) ActionDelete(ctx context.Context, id string) error {
	a, err := s.store.GetAction(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case a.Status.IsTerminal():
		return models.NewBadRequest("action %s already ended with status %s", a.ID, a.Status)
	case a.Status == models.ActionRunning:
		return s.store.ActionRequestCancel(ctx, a.ID)
	default:
		return s.store.ActionMark(ctx, a.ID, "", models.ActionCancelled, nil, "cancelled by request")
	}
}

func (s *Service) EventGet(ctx context.Context, id string) (*models.Event, error) {
	return s.store.GetEvent(ctx, id)
}

func (s *Service) EventList(ctx context.Context, req ListRequest) ([]*models.Event, error) {
	return s.store.ListEvents(ctx, s.listOptions(ctx, req))
}
