package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clustermgr/engine/internal/models"
)

func TestRespondError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", models.NewNotFound("cluster", "c1"), http.StatusNotFound, ErrCodeNotFound},
		{"bad request", models.NewBadRequest("nope"), http.StatusBadRequest, ErrCodeBadRequest},
		{"invalid spec", models.NewInvalidSpec("bad yaml"), http.StatusBadRequest, ErrCodeInvalidSpec},
		{"invalid parameter", models.NewInvalidParameter("count", -1), http.StatusBadRequest, ErrCodeInvalidParameter},
		{"resource in use", models.NewResourceInUse("policy", "p1"), http.StatusConflict, ErrCodeResourceInUse},
		{"resource busy", models.NewResourceBusy("c1"), http.StatusConflict, ErrCodeResourceBusy},
		{"binding not found", models.NewPolicyBindingNotFound("c1", "p1"), http.StatusNotFound, ErrCodePolicyBindingNotFound},
		{"profile mismatch", models.NewProfileTypeNotMatch("a", "b"), http.StatusBadRequest, ErrCodeProfileTypeNotMatch},
		{"not orphan", models.NewNodeNotOrphan("n1"), http.StatusConflict, ErrCodeNodeNotOrphan},
		{"not supported", models.NewFeatureNotSupported("x"), http.StatusNotImplemented, ErrCodeFeatureNotSupported},
		{"forbidden", models.NewForbidden("no"), http.StatusForbidden, ErrCodeForbidden},
		{"internal", models.NewInternal("boom", nil), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/v1/clusters/x", nil)
			respondError(w, r, tc.err)

			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			var body APIError
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("body is not JSON: %v", err)
			}
			if body.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tc.wantCode)
			}
		})
	}
}

func TestRespondError_InternalIsNotLeaked(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	respondError(w, r, models.NewInternal("database password xyz", nil))

	var body APIError
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Message != "internal error" {
		t.Errorf("internal detail leaked to client: %q", body.Message)
	}
}
