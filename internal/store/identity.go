package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/clustermgr/engine/internal/models"
)

// identityTables maps the entity kind RPC callers pass ("cluster", "node",
// "profile", "policy") to the table that owns its id/name namespace, and
// whether lookups are scoped by owner_project.
var identityTables = map[string]struct {
	table         string
	projectScoped bool
}{
	"cluster": {"cluster", true},
	"node":    {"node", false},
	"profile": {"profile", false},
	"policy":  {"policy", false},
	"webhook": {"webhook", false},
	"trigger": {"trigger_", false},
}

const identityCacheSize = 4096

type identityCacheKey struct {
	kind, projectSafe, identity string
}

// identityCache fronts the name/short-UUID resolution below so that a hot
// cluster or node referenced repeatedly by name doesn't re-scan the table on
// every *_get/*_list call. Identity -> canonical id never changes once
// resolved, so a plain size-bounded LRU with no expiry is enough.
// One cache per store handle: two stores over different databases must not
// share resolutions.
func (s *sqlStore) identityCache() *lru.Cache[identityCacheKey, string] {
	s.identityOnce.Do(func() {
		s.identityLRU, _ = lru.New[identityCacheKey, string](identityCacheSize)
	})
	return s.identityLRU
}

// Resolve returns the full UUID for identity, which may already be a full
// UUID, an entity name (scoped to projectSafe when the kind is
// project-scoped), or an unambiguous short-UUID prefix.
func (s *sqlStore) Resolve(ctx context.Context, kind, projectSafe, identity string) (string, error) {
	if identity == "" {
		return "", models.NewBadRequest("identity must not be empty")
	}
	meta, ok := identityTables[kind]
	if !ok {
		return "", models.NewInternal("identity resolution", fmt.Errorf("unknown kind %q", kind))
	}

	if _, err := uuid.Parse(identity); err == nil {
		return identity, nil
	}

	cache := s.identityCache()
	cacheKey := identityCacheKey{kind: kind, projectSafe: projectSafe, identity: identity}
	if id, ok := cache.Get(cacheKey); ok {
		return id, nil
	}

	id, err := s.resolveByName(ctx, meta.table, meta.projectScoped, projectSafe, identity)
	if err == nil {
		cache.Add(cacheKey, id)
		return id, nil
	}
	if _, isNotFound := err.(*models.NotFoundError); !isNotFound {
		return "", err
	}

	id, err = s.resolveByShortID(ctx, meta.table, meta.projectScoped, projectSafe, identity)
	if err != nil {
		return "", err
	}
	cache.Add(cacheKey, id)
	return id, nil
}

func (s *sqlStore) resolveByName(ctx context.Context, table string, projectScoped bool, projectSafe, name string) (string, error) {
	query := "SELECT id FROM " + table + " WHERE name = ? AND deleted_at IS NULL"
	args := []interface{}{name}
	if projectScoped && projectSafe != "" {
		query += " AND owner_project = ?"
		args = append(args, projectSafe)
	}
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, s.rebind(query), args...); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", models.NewNotFound(table, name)
	case 1:
		return ids[0], nil
	default:
		return "", models.NewBadRequest("multiple %s entries named %q", table, name)
	}
}

func (s *sqlStore) resolveByShortID(ctx context.Context, table string, projectScoped bool, projectSafe, prefix string) (string, error) {
	if len(prefix) < 6 {
		return "", models.NewNotFound(table, prefix)
	}
	query := "SELECT id FROM " + table + " WHERE id LIKE ? AND deleted_at IS NULL"
	args := []interface{}{strings.ToLower(prefix) + "%"}
	if projectScoped && projectSafe != "" {
		query += " AND owner_project = ?"
		args = append(args, projectSafe)
	}
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, s.rebind(query), args...); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", models.NewNotFound(table, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", models.NewBadRequest("identity %q is ambiguous among %d %s entries", prefix, len(ids), table)
	}
}
