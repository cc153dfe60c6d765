package registry

import (
	"context"
	"testing"

	"github.com/clustermgr/engine/internal/models"
)

type nopDriver struct{}

func (nopDriver) Validate(ctx context.Context, spec models.JSONMap) error               { return nil }
func (nopDriver) Create(ctx context.Context, n *models.Node, spec models.JSONMap) error { return nil }
func (nopDriver) Update(ctx context.Context, n *models.Node, spec models.JSONMap) error { return nil }
func (nopDriver) Delete(ctx context.Context, n *models.Node) error                      { return nil }

func profileFactory() ProfileFactory {
	return func(spec models.JSONMap) (ProfileDriver, error) { return nopDriver{}, nil }
}

func TestKey(t *testing.T) {
	if got := Key("compute.instance", "1.0"); got != "compute.instance@1.0" {
		t.Errorf("Key = %q", got)
	}
	if got := Key("compute.instance", ""); got != "compute.instance" {
		t.Errorf("Key without version = %q", got)
	}
}

func TestRegisterProfile_Idempotent(t *testing.T) {
	r := New()
	if err := r.RegisterProfile("t@1.0", "t", profileFactory()); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := r.RegisterProfile("t@1.0", "t", profileFactory()); err != nil {
		t.Errorf("same-name re-registration must be a no-op, got %v", err)
	}
	if err := r.RegisterProfile("t@1.0", "other", profileFactory()); err == nil {
		t.Error("expected error when re-registering key with a different constructor")
	}
}

func TestLookup_NotFound(t *testing.T) {
	r := New()
	if _, err := r.Profile("missing@1.0", nil); err == nil {
		t.Error("expected not-found for unregistered profile type")
	}
	if _, err := r.Policy("missing@1.0", "pid", nil); err == nil {
		t.Error("expected not-found for unregistered policy type")
	}
	if _, err := r.Trigger("missing@1.0", nil); err == nil {
		t.Error("expected not-found for unregistered trigger type")
	}
}

func TestProfileTypes(t *testing.T) {
	r := New()
	_ = r.RegisterProfile("a@1.0", "a", profileFactory())
	_ = r.RegisterProfile("b@1.0", "b", profileFactory())
	if got := len(r.ProfileTypes()); got != 2 {
		t.Errorf("ProfileTypes len = %d, want 2", got)
	}
}
