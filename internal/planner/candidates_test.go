package planner

import (
	"testing"

	"github.com/clustermgr/engine/internal/models"
)

func TestResolveDeleteCandidates_FromActionData(t *testing.T) {
	a := &models.Action{
		Kind: models.ClusterResize,
		Data: models.JSONMap{
			"deletion": map[string]interface{}{
				"count":      2.0,
				"candidates": []interface{}{"n1", "n2"},
			},
		},
	}
	ids, ok := ResolveDeleteCandidates(a)
	if !ok {
		t.Fatal("expected candidates from action data")
	}
	if len(ids) != 2 || ids[0] != "n1" || ids[1] != "n2" {
		t.Errorf("ids = %v, want [n1 n2]", ids)
	}
}

func TestResolveDeleteCandidates_NodeDeleteTarget(t *testing.T) {
	a := &models.Action{Kind: models.NodeDelete, TargetID: "n9", Data: models.JSONMap{}}
	ids, ok := ResolveDeleteCandidates(a)
	if !ok || len(ids) != 1 || ids[0] != "n9" {
		t.Errorf("ids, ok = %v, %v; want [n9], true", ids, ok)
	}
}

func TestResolveDeleteCandidates_DelNodesInputs(t *testing.T) {
	a := &models.Action{
		Kind:   models.ClusterDelNodes,
		Inputs: models.JSONMap{"nodes": []interface{}{"a", "b"}},
		Data:   models.JSONMap{},
	}
	ids, ok := ResolveDeleteCandidates(a)
	if !ok || len(ids) != 2 {
		t.Errorf("ids, ok = %v, %v; want 2 ids, true", ids, ok)
	}
}

func TestResolveDeleteCandidates_UnplannedScaleInDefers(t *testing.T) {
	// A SCALE_IN that has not been planned yet returns ok=false: the
	// dispatcher's random selection in its planning step decides.
	a := &models.Action{Kind: models.ClusterScaleIn, Data: models.JSONMap{}}
	if _, ok := ResolveDeleteCandidates(a); ok {
		t.Error("expected ok=false for unplanned scale-in")
	}
}

func TestResolveDeleteCandidates_EmptyCandidateListDefers(t *testing.T) {
	// deletion.candidates == [] means "nothing decided yet", not "delete
	// nothing"; resolution defers to the dispatcher's random selection.
	a := &models.Action{
		Kind: models.ClusterResize,
		Data: models.JSONMap{
			"deletion": map[string]interface{}{"count": 1.0, "candidates": []interface{}{}},
		},
	}
	if _, ok := ResolveDeleteCandidates(a); ok {
		t.Error("expected ok=false for empty candidate list")
	}
}
