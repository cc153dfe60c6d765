package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/clustermgr/engine/internal/models"
)

const lockColumns = `target_id, exclusive, holders, engine, created_at, updated_at`

func (s *sqlStore) GetLock(ctx context.Context, targetID string) (*models.Lock, error) {
	var l models.Lock
	query := s.rebind(`SELECT ` + lockColumns + ` FROM lock_ WHERE target_id = ?`)
	err := s.db.QueryRowxContext(ctx, query, targetID).Scan(&l.TargetID, &l.Exclusive, &l.Holders,
		&l.Engine, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Lock{TargetID: targetID, Holders: models.StringSlice{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// LockAcquire implements the all-or-nothing, canonical-order lock acquisition the
// dispatcher relies on. It is a single-row UPSERT guarded by the current holder
// set, so two engines racing for the same target never both succeed.
func (s *sqlStore) LockAcquire(ctx context.Context, targetID, actionID, engineID string, exclusive bool) (bool, error) {
	tx, err := s.beginWrite(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var l models.Lock
	getQuery := s.rebind(`SELECT ` + lockColumns + ` FROM lock_ WHERE target_id = ?` + s.forUpdateClause())
	err = tx.QueryRowxContext(ctx, getQuery, targetID).Scan(&l.TargetID, &l.Exclusive, &l.Holders,
		&l.Engine, &l.CreatedAt, &l.UpdatedAt)
	now := time.Now().UTC()
	switch {
	case errors.Is(err, sql.ErrNoRows):
		insertQuery := s.rebind(`INSERT INTO lock_ (target_id, exclusive, holders, engine, created_at, updated_at)
			VALUES (?,?,?,?,?,?)`)
		holders := models.StringSlice{actionID}
		if _, err := tx.ExecContext(ctx, insertQuery, targetID, exclusive, holders, engineID, now, now); err != nil {
			return false, err
		}
		return true, tx.Commit()
	case err != nil:
		return false, err
	}

	if l.HeldBy(actionID) {
		return true, tx.Commit()
	}
	if !l.CanAcquire(exclusive) {
		return false, nil
	}
	newHolders := append(models.StringSlice{}, l.Holders...)
	newHolders = append(newHolders, actionID)
	updateQuery := s.rebind(`UPDATE lock_ SET exclusive=?, holders=?, engine=?, updated_at=? WHERE target_id=?`)
	if _, err := tx.ExecContext(ctx, updateQuery, exclusive || l.Exclusive, newHolders, engineID, now, targetID); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (s *sqlStore) LockRelease(ctx context.Context, targetID, actionID string) error {
	tx, err := s.beginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var holders models.StringSlice
	getQuery := s.rebind(`SELECT holders FROM lock_ WHERE target_id = ?` + s.forUpdateClause())
	if err := tx.GetContext(ctx, &holders, getQuery, targetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	remaining := make(models.StringSlice, 0, len(holders))
	for _, h := range holders {
		if h != actionID {
			remaining = append(remaining, h)
		}
	}
	if len(remaining) == 0 {
		delQuery := s.rebind(`DELETE FROM lock_ WHERE target_id = ?`)
		if _, err := tx.ExecContext(ctx, delQuery, targetID); err != nil {
			return err
		}
		return tx.Commit()
	}
	updQuery := s.rebind(`UPDATE lock_ SET holders=?, updated_at=? WHERE target_id=?`)
	if _, err := tx.ExecContext(ctx, updQuery, remaining, time.Now().UTC(), targetID); err != nil {
		return err
	}
	return tx.Commit()
}

// LockSteal unconditionally replaces the holder set; used only by recovery when
// a prior engine's heartbeat has gone stale past 2x the interval.
func (s *sqlStore) LockSteal(ctx context.Context, targetID, actionID, engineID string) error {
	now := time.Now().UTC()
	query := s.rebind(`INSERT INTO lock_ (target_id, exclusive, holders, engine, created_at, updated_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(target_id) DO UPDATE SET exclusive=excluded.exclusive, holders=excluded.holders,
		engine=excluded.engine, updated_at=excluded.updated_at`)
	holders := models.StringSlice{actionID}
	_, err := s.db.ExecContext(ctx, query, targetID, true, holders, engineID, now, now)
	return err
}

// BreakEngineLocks deletes every lock row carried by engineID. Recovery only:
// callers must have already established the engine's heartbeat is stale.
func (s *sqlStore) BreakEngineLocks(ctx context.Context, engineID string) (int, error) {
	query := s.rebind(`DELETE FROM lock_ WHERE engine = ?`)
	res, err := s.db.ExecContext(ctx, query, engineID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
