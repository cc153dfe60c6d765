package store

import (
	"database/sql"
	"fmt"

	"github.com/clustermgr/engine/internal/models"
)

// orderAndLimit appends ORDER BY / LIMIT clauses shared by every *_list query.
// sort_keys/sort_dir/marker are honored by the façade's in-memory post-filter
// for the small, bounded result sets this engine returns; the store guarantees
// only a stable default order and an upper bound on rows fetched.
func orderAndLimit(opts ListOptions, defaultSortKey string) string {
	dir := "DESC"
	if opts.SortDir == "asc" {
		dir = "ASC"
	}
	key := defaultSortKey
	if len(opts.SortKeys) > 0 && opts.SortKeys[0] != "" {
		key = opts.SortKeys[0]
	}
	clause := fmt.Sprintf(" ORDER BY %s %s", key, dir)
	if opts.Limit > 0 {
		clause += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return clause
}

// requireRowAffected converts a zero-rows-affected UPDATE/DELETE into a NotFound
// error: a delete of an already-deleted id reports NotFound, not a generic error.
func requireRowAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.NewNotFound(kind, id)
	}
	return nil
}
