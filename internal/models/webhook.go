package models

import "time"

// WebhookObjType is the entity kind a webhook targets.
type WebhookObjType string

const (
	WebhookObjCluster WebhookObjType = "cluster"
	WebhookObjNode    WebhookObjType = "node"
	WebhookObjPolicy  WebhookObjType = "policy"
)

// Webhook is an opaque-token receiver bound to one (obj_type, obj_id, action kind,
// creator). The token ciphertext is never stored in the clear; only its id is.
type Webhook struct {
	ID         string         `json:"id" db:"id"`
	Name       string         `json:"name" db:"name"`
	ObjType    WebhookObjType `json:"obj_type" db:"obj_type"`
	ObjID      string         `json:"obj_id" db:"obj_id"`
	ActionKind ActionKind     `json:"action_kind" db:"action_kind"`
	Creator    Owner          `json:"creator"`
	Params     JSONMap        `json:"params" db:"params"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
	DeletedAt  *time.Time     `json:"deleted_at,omitempty" db:"deleted_at"`
}

// ValidateActionKind enforces the webhook action-kind validity rule: the first
// underscore-segment of ActionKind, lower-cased, must equal ObjType.
func (w *Webhook) ValidateActionKind() error {
	if w.ActionKind.ObjType() != string(w.ObjType) {
		return NewBadRequest("action kind %q is not valid for webhook object type %q", w.ActionKind, w.ObjType)
	}
	return nil
}

// WebhookCodec decrypts an opaque webhook token into the webhook id it authorizes.
// A concrete AES-GCM implementation lives in internal/webhook.
type WebhookCodec interface {
	Decrypt(token string) (webhookID string, err error)
	Encrypt(webhookID string) (token string, err error)
}
