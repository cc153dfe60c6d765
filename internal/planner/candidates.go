package planner

import "github.com/clustermgr/engine/internal/models"

// ResolveDeleteCandidates resolves which nodes a delete-side action will
// destroy: prefer an
// already-resolved action.data.deletion.candidates list; otherwise derive it
// directly from the action's own shape for the kinds that name their targets
// explicitly (NODE_DELETE, CLUSTER_DEL_NODES). It returns ok=false only for
// CLUSTER_RESIZE/CLUSTER_SCALE_IN before the dispatcher's pre-hook planning
// step has run; callers there fall back to random selection.
func ResolveDeleteCandidates(a *models.Action) (ids []string, ok bool) {
	if del, has := a.Data["deletion"]; has {
		if m, ok2 := del.(map[string]interface{}); ok2 {
			if raw, ok3 := m["candidates"].([]interface{}); ok3 && len(raw) > 0 {
				out := make([]string, 0, len(raw))
				for _, v := range raw {
					if s, ok4 := v.(string); ok4 {
						out = append(out, s)
					}
				}
				if len(out) > 0 {
					return out, true
				}
			}
		}
	}
	switch a.Kind {
	case models.NodeDelete:
		return []string{a.TargetID}, true
	case models.ClusterDelNodes:
		in, err := models.DecodeInputs[models.AddNodesInputs](a)
		if err == nil && len(in.Nodes) > 0 {
			return in.Nodes, true
		}
	}
	return nil, false
}
