package planner

import (
	"testing"

	"github.com/clustermgr/engine/internal/models"
)

func num(f float64) *float64 { return &f }
func ptr(i int) *int         { return &i }

func TestResolveResize_ExactCapacity(t *testing.T) {
	p, err := ResolveResize(3, 0, models.Unbounded, models.ResizeInputs{
		AdjType: string(AdjExactCapacity), Number: num(5),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.NewDesired != 5 {
		t.Errorf("NewDesired = %d, want 5", p.NewDesired)
	}
	if p.Creation == nil || p.Creation.Count != 2 {
		t.Errorf("Creation = %+v, want count 2", p.Creation)
	}
	if p.Deletion != nil {
		t.Errorf("Deletion should be nil on grow, got %+v", p.Deletion)
	}
}

func TestResolveResize_ChangeInCapacityNegative(t *testing.T) {
	p, err := ResolveResize(5, 0, models.Unbounded, models.ResizeInputs{
		AdjType: string(AdjChangeInCapacity), Number: num(-2),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Deletion == nil || p.Deletion.Count != 2 {
		t.Fatalf("Deletion = %+v, want count 2", p.Deletion)
	}
}

func TestResolveResize_PercentageRounding(t *testing.T) {
	// -50% of 3 = -1.5, rounds to -2: the literal scenario from the resize
	// end-to-end case.
	p, err := ResolveResize(3, 0, models.Unbounded, models.ResizeInputs{
		AdjType: string(AdjChangeInPercentage), Number: num(-50), MinStep: ptr(1), Strict: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Deletion == nil || p.Deletion.Count != 2 {
		t.Fatalf("Deletion = %+v, want count 2", p.Deletion)
	}
	if p.NewDesired != 1 {
		t.Errorf("NewDesired = %d, want 1", p.NewDesired)
	}
}

func TestResolveResize_PercentageMinStep(t *testing.T) {
	// +10% of 4 = 0.4: computed delta under 1 still moves by min_step.
	p, err := ResolveResize(4, 0, models.Unbounded, models.ResizeInputs{
		AdjType: string(AdjChangeInPercentage), Number: num(10), MinStep: ptr(2),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Creation == nil || p.Creation.Count != 2 {
		t.Fatalf("Creation = %+v, want count 2 (min_step)", p.Creation)
	}
}

func TestResolveResize_StrictRejectsBoundsViolation(t *testing.T) {
	_, err := ResolveResize(3, 2, 5, models.ResizeInputs{
		AdjType: string(AdjChangeInCapacity), Number: num(-2), Strict: true,
	})
	if err == nil {
		t.Fatal("expected strict resize below min_size to be rejected")
	}
}

func TestResolveResize_NonStrictClamps(t *testing.T) {
	p, err := ResolveResize(3, 2, 5, models.ResizeInputs{
		AdjType: string(AdjChangeInCapacity), Number: num(-2), Strict: false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.NewDesired != 2 {
		t.Errorf("NewDesired = %d, want clamp to min 2", p.NewDesired)
	}
	if p.Deletion == nil || p.Deletion.Count != 1 {
		t.Errorf("Deletion = %+v, want count 1", p.Deletion)
	}
}

func TestResolveResize_UnboundedMax(t *testing.T) {
	p, err := ResolveResize(2, 0, models.Unbounded, models.ResizeInputs{
		AdjType: string(AdjExactCapacity), Number: num(100),
	})
	if err != nil {
		t.Fatalf("unexpected error with max_size=-1: %v", err)
	}
	if p.NewDesired != 100 {
		t.Errorf("NewDesired = %d, want 100", p.NewDesired)
	}
}

func TestResolveResize_RequestOverridesBounds(t *testing.T) {
	p, err := ResolveResize(3, 0, 5, models.ResizeInputs{
		AdjType: string(AdjExactCapacity), Number: num(8), MaxSize: ptr(10),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.NewDesired != 8 {
		t.Errorf("NewDesired = %d, want 8 under widened max", p.NewDesired)
	}
}

func TestResolveResize_MissingParams(t *testing.T) {
	if _, err := ResolveResize(3, 0, -1, models.ResizeInputs{}); err == nil {
		t.Error("expected error for missing adj_type")
	}
	if _, err := ResolveResize(3, 0, -1, models.ResizeInputs{AdjType: string(AdjExactCapacity)}); err == nil {
		t.Error("expected error for missing number")
	}
	if _, err := ResolveResize(3, 0, -1, models.ResizeInputs{AdjType: "BOGUS", Number: num(1)}); err == nil {
		t.Error("expected error for unknown adj_type")
	}
	if _, err := ResolveResize(3, 0, -1, models.ResizeInputs{AdjType: string(AdjExactCapacity), Number: num(-1)}); err == nil {
		t.Error("expected error for negative exact capacity")
	}
}

func TestResolveResize_NoChange(t *testing.T) {
	p, err := ResolveResize(3, 0, models.Unbounded, models.ResizeInputs{
		AdjType: string(AdjExactCapacity), Number: num(3),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Creation != nil || p.Deletion != nil {
		t.Errorf("no-op resize should carry neither plan, got %+v / %+v", p.Creation, p.Deletion)
	}
}

func TestResolveScale_RoundTrip(t *testing.T) {
	out, err := ResolveScale(3, 0, models.Unbounded, 2, true)
	if err != nil {
		t.Fatalf("scale out: %v", err)
	}
	if out.Creation == nil || out.Creation.Count != 2 {
		t.Fatalf("scale out Creation = %+v, want 2", out.Creation)
	}
	in, err := ResolveScale(5, 0, models.Unbounded, 2, false)
	if err != nil {
		t.Fatalf("scale in: %v", err)
	}
	if in.Deletion == nil || in.Deletion.Count != 2 {
		t.Fatalf("scale in Deletion = %+v, want 2", in.Deletion)
	}
	if in.NewDesired != 3 {
		t.Errorf("scale_out(2) then scale_in(2) should restore desired, got %d", in.NewDesired)
	}
}
