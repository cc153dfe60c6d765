package auth

import (
	"context"
	"testing"
)

func TestWithClaims(t *testing.T) {
	ctx := context.Background()
	claims := &Claims{User: "alice", Project: "proj-1", Domain: "default"}

	ctxWithClaims := WithClaims(ctx, claims)
	if ctxWithClaims == nil {
		t.Error("Context should not be nil")
	}
}

func TestClaimsFromContext(t *testing.T) {
	ctx := context.Background()
	claims := &Claims{User: "alice", Project: "proj-1", Domain: "default", IsAdmin: true}

	ctxWithClaims := WithClaims(ctx, claims)
	retrieved := ClaimsFromContext(ctxWithClaims)

	if retrieved == nil {
		t.Fatal("Claims should not be nil")
	}
	if retrieved.User != claims.User {
		t.Errorf("Expected User %s, got %s", claims.User, retrieved.User)
	}
	if retrieved.Project != claims.Project {
		t.Errorf("Expected Project %s, got %s", claims.Project, retrieved.Project)
	}
	if retrieved.IsAdmin != claims.IsAdmin {
		t.Errorf("Expected IsAdmin %v, got %v", claims.IsAdmin, retrieved.IsAdmin)
	}
}

func TestClaimsFromContext_NoClaims(t *testing.T) {
	ctx := context.Background()
	claims := ClaimsFromContext(ctx)
	if claims != nil {
		t.Error("Claims should be nil when not set in context")
	}
}
