// Package audit defines the event model and publisher port for the audit
// stream. Events are emitted from domain logic and kept transport-agnostic so
// sinks can fan out.
package audit

import "time"

// Action names an auditable domain operation.
type Action string

const (
	ActionIdentityCreated  Action = "identity_created"
	ActionDelegateAdded    Action = "delegate_added"
	ActionDelegateRevoked  Action = "delegate_revoked"
	ActionOwnerChanged     Action = "owner_changed"
	ActionProfileCreated   Action = "profile_created"
	ActionRegistryAppended Action = "registry_appended"
)

// Event is one audit record. DID is the identity the action concerns; Actor is
// the key holder that requested it when known.
type Event struct {
	Action    Action            `json:"action"`
	DID       string            `json:"did,omitempty"`
	Actor     string            `json:"actor,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
	UserAgent string            `json:"userAgent,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Detail    map[string]string `json:"detail,omitempty"`
}
