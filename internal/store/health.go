package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/clustermgr/engine/internal/models"
)

func (s *sqlStore) UpsertHeartbeat(ctx context.Context, h *models.HealthRegistry) error {
	query := s.rebind(`INSERT INTO health_registry (engine_id, pid, started_at, last_heartbeat)
		VALUES (?,?,?,?)
		ON CONFLICT(engine_id) DO UPDATE SET last_heartbeat=excluded.last_heartbeat`)
	_, err := s.db.ExecContext(ctx, query, h.EngineID, h.PID, h.StartedAt, h.LastHeartbeat)
	return err
}

func (s *sqlStore) GetHeartbeat(ctx context.Context, engineID string) (*models.HealthRegistry, error) {
	var h models.HealthRegistry
	query := s.rebind(`SELECT engine_id, pid, started_at, last_heartbeat FROM health_registry WHERE engine_id = ?`)
	err := s.db.QueryRowxContext(ctx, query, engineID).Scan(&h.EngineID, &h.PID, &h.StartedAt, &h.LastHeartbeat)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("engine", engineID)
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// ListStaleEngines returns every engine whose heartbeat has not been refreshed
// in more than multiplier*heartbeatInterval, i.e. eligible for lock-steal.
func (s *sqlStore) ListStaleEngines(ctx context.Context, now time.Time, heartbeatInterval time.Duration, multiplier float64) ([]*models.HealthRegistry, error) {
	cutoff := now.Add(-time.Duration(float64(heartbeatInterval) * multiplier))
	query := s.rebind(`SELECT engine_id, pid, started_at, last_heartbeat FROM health_registry WHERE last_heartbeat < ?`)
	rows, err := s.db.QueryxContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.HealthRegistry
	for rows.Next() {
		var h models.HealthRegistry
		if err := rows.Scan(&h.EngineID, &h.PID, &h.StartedAt, &h.LastHeartbeat); err != nil {
			return nil, err
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}
