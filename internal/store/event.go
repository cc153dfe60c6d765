package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clustermgr/engine/internal/models"
)

const eventColumns = `id, target_id, target_type, action_id, kind, old_status, new_status, reason, data, created_at`

func (s *sqlStore) CreateEvent(ctx context.Context, e *models.Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Data == nil {
		e.Data = models.JSONMap{}
	}
	query := s.rebind(`INSERT INTO event
		(id, target_id, target_type, action_id, kind, old_status, new_status, reason, data, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`)
	_, err := s.db.ExecContext(ctx, query, e.ID, e.TargetID, e.TargetType, e.ActionID, e.Kind,
		e.OldStatus, e.NewStatus, e.Reason, e.Data, e.CreatedAt)
	return err
}

func scanEvent(row interface{ Scan(...interface{}) error }) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.TargetID, &e.TargetType, &e.ActionID, &e.Kind, &e.OldStatus,
		&e.NewStatus, &e.Reason, &e.Data, &e.CreatedAt)
	return &e, err
}

func (s *sqlStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	query := s.rebind(`SELECT ` + eventColumns + ` FROM event WHERE id = ?`)
	e, err := scanEvent(s.db.QueryRowxContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("event", id)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *sqlStore) ListEvents(ctx context.Context, opts ListOptions) ([]*models.Event, error) {
	query := "SELECT " + eventColumns + " FROM event WHERE 1=1"
	args := []interface{}{}
	if opts.Filters["target_id"] != "" {
		query += " AND target_id = ?"
		args = append(args, opts.Filters["target_id"])
	}
	query += orderAndLimit(opts, "created_at")
	rows, err := s.db.QueryxContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
