// Package rest exposes the RPC surface over HTTP: one route per method,
// resolved by the transport into a facade call.
package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/clustermgr/engine/internal/models"
	"github.com/clustermgr/engine/internal/service"
)

const maxBodyBytes = 1 << 20 // 1 MiB; specs and metadata, never bulk data

// Handler adapts the service facade to HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler returns a Handler over the facade.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register wires every RPC-surface method onto the router.
func (h *Handler) Register(r *mux.Router) {
	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/profiles", h.profileList).Methods(http.MethodGet)
	v1.HandleFunc("/profiles", h.profileCreate).Methods(http.MethodPost)
	v1.HandleFunc("/profiles/{identity}", h.profileGet).Methods(http.MethodGet)
	v1.HandleFunc("/profiles/{identity}", h.profileUpdate).Methods(http.MethodPatch)
	v1.HandleFunc("/profiles/{identity}", h.profileDelete).Methods(http.MethodDelete)

	v1.HandleFunc("/policies", h.policyList).Methods(http.MethodGet)
	v1.HandleFunc("/policies", h.policyCreate).Methods(http.MethodPost)
	v1.HandleFunc("/policies/{identity}", h.policyGet).Methods(http.MethodGet)
	v1.HandleFunc("/policies/{identity}", h.policyUpdate).Methods(http.MethodPatch)
	v1.HandleFunc("/policies/{identity}", h.policyDelete).Methods(http.MethodDelete)

	v1.HandleFunc("/clusters", h.clusterList).Methods(http.MethodGet)
	v1.HandleFunc("/clusters", h.clusterCreate).Methods(http.MethodPost)
	v1.HandleFunc("/clusters/{identity}", h.clusterGet).Methods(http.MethodGet)
	v1.HandleFunc("/clusters/{identity}", h.clusterUpdate).Methods(http.MethodPatch)
	v1.HandleFunc("/clusters/{identity}", h.clusterDelete).Methods(http.MethodDelete)
	v1.HandleFunc("/clusters/{identity}/add_nodes", h.clusterAddNodes).Methods(http.MethodPost)
	v1.HandleFunc("/clusters/{identity}/del_nodes", h.clusterDelNodes).Methods(http.MethodPost)
	v1.HandleFunc("/clusters/{identity}/resize", h.clusterResize).Methods(http.MethodPost)
	v1.HandleFunc("/clusters/{identity}/scale_in", h.clusterScaleIn).Methods(http.MethodPost)
	v1.HandleFunc("/clusters/{identity}/scale_out", h.clusterScaleOut).Methods(http.MethodPost)
	v1.HandleFunc("/clusters/{identity}/policies", h.clusterPolicyList).Methods(http.MethodGet)
	v1.HandleFunc("/clusters/{identity}/policies", h.clusterPolicyAttach).Methods(http.MethodPost)
	v1.HandleFunc("/clusters/{identity}/policies/{policy}", h.clusterPolicyUpdate).Methods(http.MethodPatch)
	v1.HandleFunc("/clusters/{identity}/policies/{policy}", h.clusterPolicyDetach).Methods(http.MethodDelete)

	v1.HandleFunc("/nodes", h.nodeList).Methods(http.MethodGet)
	v1.HandleFunc("/nodes", h.nodeCreate).Methods(http.MethodPost)
	v1.HandleFunc("/nodes/{identity}", h.nodeGet).Methods(http.MethodGet)
	v1.HandleFunc("/nodes/{identity}", h.nodeUpdate).Methods(http.MethodPatch)
	v1.HandleFunc("/nodes/{identity}", h.nodeDelete).Methods(http.MethodDelete)
	v1.HandleFunc("/nodes/{identity}/join", h.nodeJoin).Methods(http.MethodPost)
	v1.HandleFunc("/nodes/{identity}/leave", h.nodeLeave).Methods(http.MethodPost)

	v1.HandleFunc("/webhooks", h.webhookList).Methods(http.MethodGet)
	v1.HandleFunc("/webhooks", h.webhookCreate).Methods(http.MethodPost)
	v1.HandleFunc("/webhooks/trigger/{token}", h.webhookTrigger).Methods(http.MethodPost)
	v1.HandleFunc("/webhooks/{id}", h.webhookGet).Methods(http.MethodGet)
	v1.HandleFunc("/webhooks/{id}", h.webhookDelete).Methods(http.MethodDelete)

	v1.HandleFunc("/triggers", h.triggerList).Methods(http.MethodGet)
	v1.HandleFunc("/triggers", h.triggerCreate).Methods(http.MethodPost)
	v1.HandleFunc("/triggers/{id}", h.triggerGet).Methods(http.MethodGet)
	v1.HandleFunc("/triggers/{id}", h.triggerDelete).Methods(http.MethodDelete)

	v1.HandleFunc("/actions", h.actionList).Methods(http.MethodGet)
	v1.HandleFunc("/actions/{id}", h.actionGet).Methods(http.MethodGet)
	v1.HandleFunc("/actions/{id}", h.actionDelete).Methods(http.MethodDelete)

	v1.HandleFunc("/events", h.eventList).Methods(http.MethodGet)
	v1.HandleFunc("/events/stream", h.eventStream).Methods(http.MethodGet)
	v1.HandleFunc("/events/{id}", h.eventGet).Methods(http.MethodGet)
}

func decodeBody(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return models.NewBadRequest("read request body: %v", err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return models.NewBadRequest("malformed JSON body: %v", err)
	}
	return nil
}

// listRequest extracts the common *_list parameters from the query string;
// any other query parameter becomes an equality filter.
func listRequest(r *http.Request) service.ListRequest {
	q := r.URL.Query()
	req := service.ListRequest{Filters: map[string]string{}}
	for key, vals := range q {
		if len(vals) == 0 {
			continue
		}
		v := vals[0]
		switch key {
		case "limit":
			if n, err := strconv.Atoi(v); err == nil {
				req.Limit = n
			}
		case "marker":
			req.Marker = v
		case "sort_keys":
			req.SortKeys = strings.Split(v, ",")
		case "sort_dir":
			req.SortDir = v
		case "show_deleted":
			req.ShowDeleted = v == "true" || v == "1"
		default:
			req.Filters[key] = v
		}
	}
	return req
}

// --- profiles ---

func (h *Handler) profileList(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ProfileList(r.Context(), listRequest(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"profiles": out})
}

// profileCreateBody is the wire shape; spec arrives as an embedded JSON
// object, kept as raw bytes for canonicalization (a JSON string is rejected).
type profileCreateBody struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Version    string          `json:"version"`
	Spec       json.RawMessage `json:"spec"`
	Permission string          `json:"permission,omitempty"`
	Metadata   models.JSONMap  `json:"metadata,omitempty"`
}

func (h *Handler) profileCreate(w http.ResponseWriter, r *http.Request) {
	var body profileCreateBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	out, err := h.svc.ProfileCreate(r.Context(), service.ProfileCreateRequest{
		Name:       body.Name,
		Type:       body.Type,
		Version:    body.Version,
		Spec:       body.Spec,
		Permission: body.Permission,
		Metadata:   body.Metadata,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"profile": out})
}

func (h *Handler) profileGet(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ProfileGet(r.Context(), mux.Vars(r)["identity"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"profile": out})
}

func (h *Handler) profileUpdate(w http.ResponseWriter, r *http.Request) {
	var req service.ProfileUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	out, err := h.svc.ProfileUpdate(r.Context(), mux.Vars(r)["identity"], req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"profile": out})
}

func (h *Handler) profileDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ProfileDelete(r.Context(), mux.Vars(r)["identity"]); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// --- policies ---

func (h *Handler) policyList(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.PolicyList(r.Context(), listRequest(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"policies": out})
}

type policyCreateBody struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Spec     json.RawMessage `json:"spec"`
	Level    int             `json:"level"`
	Cooldown int             `json:"cooldown"`
}

func (h *Handler) policyCreate(w http.ResponseWriter, r *http.Request) {
	var body policyCreateBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	out, err := h.svc.PolicyCreate(r.Context(), service.PolicyCreateRequest{
		Name:     body.Name,
		Type:     body.Type,
		Spec:     body.Spec,
		Level:    body.Level,
		Cooldown: body.Cooldown,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"policy": out})
}

func (h *Handler) policyGet(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.PolicyGet(r.Context(), mux.Vars(r)["identity"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"policy": out})
}

func (h *Handler) policyUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	out, err := h.svc.PolicyUpdate(r.Context(), mux.Vars(r)["identity"], body.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"policy": out})
}

func (h *Handler) policyDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.PolicyDelete(r.Context(), mux.Vars(r)["identity"]); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// --- clusters ---

func (h *Handler) clusterList(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ClusterList(r.Context(), listRequest(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"clusters": out})
}

func (h *Handler) clusterCreate(w http.ResponseWriter, r *http.Request) {
	var req service.ClusterCreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	out, err := h.svc.ClusterCreate(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, out)
}

func (h *Handler) clusterGet(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ClusterGet(r.Context(), mux.Vars(r)["identity"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"cluster": out})
}

func (h *Handler) clusterUpdate(w http.ResponseWriter, r *http.Request) {
	var req service.ClusterUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	ref, err := h.svc.ClusterUpdate(r.Context(), mux.Vars(r)["identity"], req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ref)
}

func (h *Handler) clusterDelete(w http.ResponseWriter, r *http.Request) {
	ref, err := h.svc.ClusterDelete(r.Context(), mux.Vars(r)["identity"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ref)
}

type nodeListBody struct {
	Nodes []string `json:"nodes"`
}

func (h *Handler) clusterAddNodes(w http.ResponseWriter, r *http.Request) {
	var body nodeListBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	ref, err := h.svc.ClusterAddNodes(r.Context(), mux.Vars(r)["identity"], body.Nodes)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ref)
}

func (h *Handler) clusterDelNodes(w http.ResponseWriter, r *http.Request) {
	var body nodeListBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	ref, err := h.svc.ClusterDelNodes(r.Context(), mux.Vars(r)["identity"], body.Nodes)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ref)
}

func (h *Handler) clusterResize(w http.ResponseWriter, r *http.Request) {
	var req service.ClusterResizeRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	ref, err := h.svc.ClusterResize(r.Context(), mux.Vars(r)["identity"], req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ref)
}

type countBody struct {
	Count int `json:"count"`
}

func (h *Handler) clusterScaleIn(w http.ResponseWriter, r *http.Request) {
	var body countBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	ref, err := h.svc.ClusterScaleIn(r.Context(), mux.Vars(r)["identity"], body.Count)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ref)
}

func (h *Handler) clusterScaleOut(w http.ResponseWriter, r *http.Request) {
	var body countBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	ref, err := h.svc.ClusterScaleOut(r.Context(), mux.Vars(r)["identity"], body.Count)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ref)
}

func (h *Handler) clusterPolicyList(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ClusterPolicyList(r.Context(), mux.Vars(r)["identity"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"cluster_policies": out})
}

func (h *Handler) clusterPolicyAttach(w http.ResponseWriter, r *http.Request) {
	var req service.PolicyAttachRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	ref, err := h.svc.ClusterPolicyAttach(r.Context(), mux.Vars(r)["identity"], req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ref)
}

func (h *Handler) clusterPolicyUpdate(w http.ResponseWriter, r *http.Request) {
	var req service.PolicyAttachRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	req.Policy = mux.Vars(r)["policy"]
	ref, err := h.svc.ClusterPolicyUpdate(r.Context(), mux.Vars(r)["identity"], req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ref)
}

func (h *Handler) clusterPolicyDetach(w http.ResponseWriter, r *http.Request) {
	ref, err := h.svc.ClusterPolicyDetach(r.Context(), mux.Vars(r)["identity"], mux.Vars(r)["policy"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ref)
}

// --- nodes ---

func (h *Handler) nodeList(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.NodeList(r.Context(), listRequest(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"nodes": out})
}

func (h *Handler) nodeCreate(w http.ResponseWriter, r *http.Request) {
	var req service.NodeCreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	out, err := h.svc.NodeCreate(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, out)
}

func (h *Handler) nodeGet(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.NodeGet(r.Context(), mux.Vars(r)["identity"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"node": out})
}

func (h *Handler) nodeUpdate(w http.ResponseWriter, r *http.Request) {
	var req service.NodeUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	ref, err := h.svc.NodeUpdate(r.Context(), mux.Vars(r)["identity"], req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ref)
}

func (h *Handler) nodeDelete(w http.ResponseWriter, r *http.Request) {
	ref, err := h.svc.NodeDelete(r.Context(), mux.Vars(r)["identity"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ref)
}

func (h *Handler) nodeJoin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Cluster string `json:"cluster_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	ref, err := h.svc.NodeJoin(r.Context(), mux.Vars(r)["identity"], body.Cluster)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ref)
}

func (h *Handler) nodeLeave(w http.ResponseWriter, r *http.Request) {
	ref, err := h.svc.NodeLeave(r.Context(), mux.Vars(r)["identity"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ref)
}

// --- webhooks & triggers ---

func (h *Handler) webhookList(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.WebhookList(r.Context(), listRequest(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"webhooks": out})
}

func (h *Handler) webhookCreate(w http.ResponseWriter, r *http.Request) {
	var req service.WebhookCreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	out, err := h.svc.WebhookCreate(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, out)
}

func (h *Handler) webhookGet(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.WebhookGet(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"webhook": out})
}

func (h *Handler) webhookDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.WebhookDelete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) webhookTrigger(w http.ResponseWriter, r *http.Request) {
	var params models.JSONMap
	if err := decodeBody(r, &params); err != nil {
		respondError(w, r, err)
		return
	}
	ref, err := h.svc.WebhookTrigger(r.Context(), mux.Vars(r)["token"], params)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ref)
}

func (h *Handler) triggerList(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.TriggerList(r.Context(), listRequest(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"triggers": out})
}

type triggerCreateBody struct {
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Spec    json.RawMessage `json:"spec"`
	Enabled *bool           `json:"enabled,omitempty"`
}

func (h *Handler) triggerCreate(w http.ResponseWriter, r *http.Request) {
	var body triggerCreateBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, err)
		return
	}
	out, err := h.svc.TriggerCreate(r.Context(), service.TriggerCreateRequest{
		Name:    body.Name,
		Type:    body.Type,
		Spec:    body.Spec,
		Enabled: body.Enabled,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"trigger": out})
}

func (h *Handler) triggerGet(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.TriggerGet(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"trigger": out})
}

func (h *Handler) triggerDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.TriggerDelete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// --- actions & events ---

func (h *Handler) actionList(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ActionList(r.Context(), listRequest(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"actions": out})
}

func (h *Handler) actionGet(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ActionGet(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"action": out})
}

func (h *Handler) actionDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ActionDelete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) eventList(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.EventList(r.Context(), listRequest(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"events": out})
}

func (h *Handler) eventGet(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.EventGet(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"event": out})
}
