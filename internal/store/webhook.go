package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clustermgr/engine/internal/models"
)

const webhookColumns = `id, name, obj_type, obj_id, action_kind, owner_user, owner_project, owner_domain, params, created_at, updated_at, deleted_at`

func (s *sqlStore) CreateWebhook(ctx context.Context, w *models.Webhook) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now
	if w.Params == nil {
		w.Params = models.JSONMap{}
	}
	query := s.rebind(`INSERT INTO webhook
		(id, name, obj_type, obj_id, action_kind, owner_user, owner_project, owner_domain, params, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`)
	_, err := s.db.ExecContext(ctx, query, w.ID, w.Name, w.ObjType, w.ObjID, w.ActionKind,
		w.Creator.User, w.Creator.Project, w.Creator.Domain, w.Params, w.CreatedAt, w.UpdatedAt)
	return err
}

func scanWebhook(row interface{ Scan(...interface{}) error }) (*models.Webhook, error) {
	var w models.Webhook
	err := row.Scan(&w.ID, &w.Name, &w.ObjType, &w.ObjID, &w.ActionKind, &w.Creator.User,
		&w.Creator.Project, &w.Creator.Domain, &w.Params, &w.CreatedAt, &w.UpdatedAt, &w.DeletedAt)
	return &w, err
}

func (s *sqlStore) GetWebhook(ctx context.Context, id string) (*models.Webhook, error) {
	query := s.rebind(`SELECT ` + webhookColumns + ` FROM webhook WHERE id = ? AND deleted_at IS NULL`)
	w, err := scanWebhook(s.db.QueryRowxContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("webhook", id)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s *sqlStore) ListWebhooks(ctx context.Context, opts ListOptions) ([]*models.Webhook, error) {
	query := "SELECT " + webhookColumns + " FROM webhook WHERE 1=1"
	if !opts.ShowDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += orderAndLimit(opts, "created_at")
	rows, err := s.db.QueryxContext(ctx, s.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *sqlStore) SoftDeleteWebhook(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := s.rebind(`UPDATE webhook SET deleted_at=?, updated_at=? WHERE id=? AND deleted_at IS NULL`)
	res, err := s.db.ExecContext(ctx, query, now, now, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "webhook", id)
}

const triggerColumns = `id, name, type, spec, enabled, created_at, updated_at, deleted_at`

func (s *sqlStore) CreateTrigger(ctx context.Context, t *models.Trigger) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Spec == nil {
		t.Spec = models.JSONMap{}
	}
	query := s.rebind(`INSERT INTO trigger_ (id, name, type, spec, enabled, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)`)
	_, err := s.db.ExecContext(ctx, query, t.ID, t.Name, t.Type, t.Spec, t.Enabled, t.CreatedAt, t.UpdatedAt)
	return err
}

func scanTrigger(row interface{ Scan(...interface{}) error }) (*models.Trigger, error) {
	var t models.Trigger
	err := row.Scan(&t.ID, &t.Name, &t.Type, &t.Spec, &t.Enabled, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	return &t, err
}

func (s *sqlStore) GetTrigger(ctx context.Context, id string) (*models.Trigger, error) {
	query := s.rebind(`SELECT ` + triggerColumns + ` FROM trigger_ WHERE id = ? AND deleted_at IS NULL`)
	t, err := scanTrigger(s.db.QueryRowxContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("trigger", id)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *sqlStore) ListTriggers(ctx context.Context, opts ListOptions) ([]*models.Trigger, error) {
	query := "SELECT " + triggerColumns + " FROM trigger_ WHERE 1=1"
	if !opts.ShowDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += orderAndLimit(opts, "created_at")
	rows, err := s.db.QueryxContext(ctx, s.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqlStore) SoftDeleteTrigger(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := s.rebind(`UPDATE trigger_ SET deleted_at=?, updated_at=? WHERE id=? AND deleted_at IS NULL`)
	res, err := s.db.ExecContext(ctx, query, now, now, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "trigger", id)
}
