package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clustermgr/engine/internal/models"
)

// ErrNotOwner is returned by ActionMark when the caller does not currently own
// the action it is trying to transition.
var ErrNotOwner = errors.New("store: caller is not the current action owner")

func (s *sqlStore) CreateAction(ctx context.Context, a *models.Action) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.Inputs == nil {
		a.Inputs = models.JSONMap{}
	}
	if a.Outputs == nil {
		a.Outputs = models.JSONMap{}
	}
	if a.Data == nil {
		a.Data = models.JSONMap{}
	}
	if a.Status == "" {
		a.Status = models.ActionInit
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := s.rebind(`INSERT INTO action
		(id, target_id, kind, cause, inputs, outputs, status, depends_on, depended_by, owner_engine,
		 attempt, cancel, started_at, ended_at, timeout, data, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if _, err := tx.ExecContext(ctx, query, a.ID, a.TargetID, a.Kind, a.Cause, a.Inputs, a.Outputs,
		a.Status, a.DependsOn, a.DependedBy, a.OwnerEngine, a.Attempt, a.Cancel, a.StartedAt, a.EndedAt,
		a.Timeout, a.Data, a.CreatedAt, a.UpdatedAt); err != nil {
		return err
	}
	for _, dep := range a.DependsOn {
		q := s.rebind(`INSERT INTO action_dependency (action_id, depends_on_id) VALUES (?,?)`)
		if _, err := tx.ExecContext(ctx, q, a.ID, dep); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const actionColumns = `id, target_id, kind, cause, inputs, outputs, status, depends_on, depended_by,
	owner_engine, attempt, cancel, started_at, ended_at, timeout, data, created_at, updated_at`

func scanAction(row interface{ Scan(...interface{}) error }) (*models.Action, error) {
	var a models.Action
	err := row.Scan(&a.ID, &a.TargetID, &a.Kind, &a.Cause, &a.Inputs, &a.Outputs, &a.Status,
		&a.DependsOn, &a.DependedBy, &a.OwnerEngine, &a.Attempt, &a.Cancel, &a.StartedAt, &a.EndedAt,
		&a.Timeout, &a.Data, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (s *sqlStore) GetAction(ctx context.Context, id string) (*models.Action, error) {
	query := s.rebind(`SELECT ` + actionColumns + ` FROM action WHERE id = ?`)
	a, err := scanAction(s.db.QueryRowxContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("action", id)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *sqlStore) ListActions(ctx context.Context, opts ListOptions) ([]*models.Action, error) {
	query := "SELECT " + actionColumns + " FROM action WHERE 1=1"
	args := []interface{}{}
	if opts.Filters["target_id"] != "" {
		query += " AND target_id = ?"
		args = append(args, opts.Filters["target_id"])
	}
	if opts.Filters["status"] != "" {
		query += " AND status = ?"
		args = append(args, opts.Filters["status"])
	}
	query += orderAndLimit(opts, "created_at")
	rows, err := s.db.QueryxContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SoftDeleteAction marks an action row deleted. Action rows carry no deleted_at
// column: the record is retained so clients can keep polling terminal results,
// and "deletion" is modeled as a terminal status;
// callers that need an explicit delete transition it to CANCELLED instead.
func (s *sqlStore) SoftDeleteAction(ctx context.Context, id string) error {
	return s.ActionMark(ctx, id, "", models.ActionCancelled, nil, "deleted by request")
}

// ActionClaim atomically picks one READY action with all dependencies satisfied,
// transitions it to RUNNING, and assigns ownership to engineID. On Postgres this
// uses SELECT ... FOR UPDATE SKIP LOCKED so concurrent engines never race on the
// same row; on SQLite, NewSQLiteStore's single-connection pool gives the same
// guarantee within one process.
func (s *sqlStore) ActionClaim(ctx context.Context, engineID string) (*models.Action, error) {
	tx, err := s.beginWrite(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	candidateQuery := s.rebind(`SELECT id FROM action WHERE status = ?` + s.forUpdateClause())
	rows, err := tx.QueryContext(ctx, candidateQuery, models.ActionReady)
	if err != nil {
		return nil, err
	}
	var candidateIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		candidateIDs = append(candidateIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range candidateIDs {
		ok, err := dependenciesSatisfiedTx(ctx, tx, s, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		now := time.Now().UTC()
		updateQuery := s.rebind(`UPDATE action SET status=?, owner_engine=?, started_at=?, updated_at=?
			WHERE id=? AND status=?`)
		res, err := tx.ExecContext(ctx, updateQuery, models.ActionRunning, engineID, now, now, id, models.ActionReady)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue // lost the race (Postgres, concurrent engine); try the next candidate
		}
		getQuery := s.rebind(`SELECT ` + actionColumns + ` FROM action WHERE id = ?`)
		a, err := scanAction(tx.QueryRowxContext(ctx, getQuery, id))
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return a, nil
	}
	return nil, nil
}

func dependenciesSatisfiedTx(ctx context.Context, tx *sqlx.Tx, s *sqlStore, actionID string) (bool, error) {
	query := s.rebind(`SELECT COUNT(*) FROM action_dependency ad
		JOIN action a ON a.id = ad.depends_on_id
		WHERE ad.action_id = ? AND a.status != ?`)
	var unresolved int
	if err := tx.GetContext(ctx, &unresolved, query, actionID, models.ActionSucceeded); err != nil {
		return false, err
	}
	return unresolved == 0, nil
}

// ActionMark performs the transition to a terminal or suspended status as a
// guarded CAS: a RUNNING action may only be transitioned by the engine that
// owns it (ErrNotOwner otherwise), and a terminal action is immutable. The
// owner guard is what keeps a slow engine, whose RUNNING action was requeued
// by recovery and re-claimed elsewhere, from clobbering the live claim.
// Transitions away from non-RUNNING statuses (e.g. WAITING/READY -> CANCELLED)
// carry no ownership and accept an empty engineID.
func (s *sqlStore) ActionMark(ctx context.Context, actionID, engineID string, newStatus models.ActionStatus, outputs models.JSONMap, reason string) error {
	now := time.Now().UTC()
	query := s.rebind(`UPDATE action SET status=?, outputs=?, ended_at=?, updated_at=?
		WHERE id=? AND status NOT IN (?,?,?) AND (status != ? OR owner_engine = ?)`)
	var endedAt interface{}
	if newStatus.IsTerminal() {
		endedAt = now
	}
	if outputs == nil {
		outputs = models.JSONMap{}
	}
	if reason != "" {
		outputs["reason"] = reason
	}
	res, err := s.db.ExecContext(ctx, query, newStatus, outputs, endedAt, now, actionID,
		models.ActionSucceeded, models.ActionFailed, models.ActionCancelled,
		models.ActionRunning, engineID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// Zero rows: tell an ownership conflict apart from a missing or already
	// terminal row.
	a, err := s.GetAction(ctx, actionID)
	if err != nil {
		return err
	}
	if a.Status == models.ActionRunning {
		return ErrNotOwner
	}
	return models.NewNotFound("action", actionID)
}

func (s *sqlStore) ActionUpdateData(ctx context.Context, actionID string, data models.JSONMap) error {
	query := s.rebind(`UPDATE action SET data=?, updated_at=? WHERE id=?`)
	res, err := s.db.ExecContext(ctx, query, data, time.Now().UTC(), actionID)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "action", actionID)
}

func (s *sqlStore) ActionRequestCancel(ctx context.Context, actionID string) error {
	query := s.rebind(`UPDATE action SET cancel=?, updated_at=? WHERE id=?`)
	res, err := s.db.ExecContext(ctx, query, true, time.Now().UTC(), actionID)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "action", actionID)
}

// ActionRequeue is the SUSPENDED -> READY retry edge: attempt is bumped so the
// bounded-retry policy converges, and ownership is cleared for the next claim.
func (s *sqlStore) ActionRequeue(ctx context.Context, actionID string) error {
	query := s.rebind(`UPDATE action SET status=?, owner_engine=NULL, attempt=attempt+1, updated_at=?
		WHERE id=? AND status=?`)
	res, err := s.db.ExecContext(ctx, query, models.ActionReady, time.Now().UTC(), actionID, models.ActionSuspended)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "action", actionID)
}

// DependencyResolve marks actions blocked on actionID READY once every other
// dependency of theirs is terminal-success.
func (s *sqlStore) DependencyResolve(ctx context.Context, actionID string) error {
	query := s.rebind(`SELECT action_id FROM action_dependency WHERE depends_on_id = ?`)
	rows, err := s.db.QueryContext(ctx, query, actionID)
	if err != nil {
		return err
	}
	var children []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		children = append(children, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, childID := range children {
		unresolvedQuery := s.rebind(`SELECT COUNT(*) FROM action_dependency ad
			JOIN action a ON a.id = ad.depends_on_id
			WHERE ad.action_id = ? AND a.status != ?`)
		var unresolved int
		if err := s.db.GetContext(ctx, &unresolved, unresolvedQuery, childID, models.ActionSucceeded); err != nil {
			return err
		}
		if unresolved > 0 {
			continue
		}
		updateQuery := s.rebind(`UPDATE action SET status=?, updated_at=? WHERE id=? AND status=?`)
		if _, err := s.db.ExecContext(ctx, updateQuery, models.ActionReady, time.Now().UTC(), childID, models.ActionWaiting); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseOwnerActions implements startup recovery: any RUNNING
// action owned by engineID is transitioned to READY with an incremented attempt
// count. Caller is responsible for stealing the corresponding locks.
func (s *sqlStore) ReleaseOwnerActions(ctx context.Context, engineID string) (int, error) {
	query := s.rebind(`UPDATE action SET status=?, owner_engine=NULL, attempt=attempt+1, updated_at=?
		WHERE owner_engine=? AND status=?`)
	res, err := s.db.ExecContext(ctx, query, models.ActionReady, time.Now().UTC(), engineID, models.ActionRunning)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
