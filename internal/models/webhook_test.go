package models

import "testing"

func TestWebhook_ValidateActionKind(t *testing.T) {
	tests := []struct {
		objType WebhookObjType
		kind    ActionKind
		wantErr bool
	}{
		{WebhookObjCluster, ClusterScaleOut, false},
		{WebhookObjCluster, ClusterResize, false},
		{WebhookObjNode, NodeCreate, false},
		{WebhookObjNode, ClusterScaleOut, true},
		{WebhookObjCluster, NodeDelete, true},
		{WebhookObjPolicy, ClusterAttachPolicy, true},
	}
	for _, tc := range tests {
		w := &Webhook{ObjType: tc.objType, ActionKind: tc.kind}
		err := w.ValidateActionKind()
		if (err != nil) != tc.wantErr {
			t.Errorf("obj_type=%s kind=%s: err=%v, wantErr=%v", tc.objType, tc.kind, err, tc.wantErr)
		}
	}
}
