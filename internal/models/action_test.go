package models

import "testing"

func TestActionKind_ObjType(t *testing.T) {
	cases := map[ActionKind]string{
		ClusterScaleOut: "cluster",
		NodeCreate:      "node",
		ClusterResize:   "cluster",
	}
	for kind, want := range cases {
		if got := kind.ObjType(); got != want {
			t.Errorf("%s.ObjType() = %q, want %q", kind, got, want)
		}
	}
}

func TestValidTransition(t *testing.T) {
	valid := [][2]ActionStatus{
		{ActionInit, ActionReady},
		{ActionInit, ActionWaiting},
		{ActionWaiting, ActionReady},
		{ActionReady, ActionRunning},
		{ActionRunning, ActionSucceeded},
		{ActionRunning, ActionFailed},
		{ActionRunning, ActionSuspended},
		{ActionSuspended, ActionReady},
		{ActionReady, ActionCancelled},
	}
	for _, tc := range valid {
		if !ValidTransition(tc[0], tc[1]) {
			t.Errorf("%s -> %s should be valid", tc[0], tc[1])
		}
	}
	invalid := [][2]ActionStatus{
		{ActionInit, ActionRunning},
		{ActionSucceeded, ActionRunning},
		{ActionFailed, ActionReady},
		{ActionCancelled, ActionReady},
		{ActionReady, ActionSucceeded},
	}
	for _, tc := range invalid {
		if ValidTransition(tc[0], tc[1]) {
			t.Errorf("%s -> %s should be invalid", tc[0], tc[1])
		}
	}
}

func TestActionStatus_Predicates(t *testing.T) {
	for _, s := range []ActionStatus{ActionSucceeded, ActionFailed, ActionCancelled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []ActionStatus{ActionInit, ActionWaiting, ActionReady, ActionRunning, ActionSuspended} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if !ActionReady.IsClaimable() || !ActionRunning.IsClaimable() {
		t.Error("READY and RUNNING are the dispatcher-observable statuses")
	}
	if ActionWaiting.IsClaimable() {
		t.Error("WAITING must not be claimable")
	}
}

func TestDependenciesSatisfied(t *testing.T) {
	a := &Action{DependsOn: StringSlice{"d1", "d2"}}
	if a.DependenciesSatisfied(map[string]ActionStatus{"d1": ActionSucceeded}) {
		t.Error("missing dependency status must not satisfy")
	}
	if a.DependenciesSatisfied(map[string]ActionStatus{"d1": ActionSucceeded, "d2": ActionFailed}) {
		t.Error("failed dependency must not satisfy")
	}
	if !a.DependenciesSatisfied(map[string]ActionStatus{"d1": ActionSucceeded, "d2": ActionSucceeded}) {
		t.Error("all-succeeded should satisfy")
	}
}

func TestDecodeInputs(t *testing.T) {
	a := &Action{
		Kind:   ClusterResize,
		Inputs: JSONMap{"adj_type": "EXACT_CAPACITY", "number": 4.0, "strict": true},
	}
	in, err := DecodeInputs[ResizeInputs](a)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if in.AdjType != "EXACT_CAPACITY" || in.Number == nil || *in.Number != 4 || !in.Strict {
		t.Errorf("decoded = %+v", in)
	}
}

func TestEncodeInputs_RoundTrip(t *testing.T) {
	m, err := EncodeInputs(AddNodesInputs{Nodes: []string{"n1", "n2"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	a := &Action{Kind: ClusterAddNodes, Inputs: m}
	in, err := DecodeInputs[AddNodesInputs](a)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(in.Nodes) != 2 || in.Nodes[0] != "n1" {
		t.Errorf("round-trip = %+v", in)
	}
}
