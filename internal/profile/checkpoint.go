// Package profile orchestrates profile creation across ledger, content store
// and discovery registry, with checkpointed resume for multi-step failures.
package profile

import (
	"context"
	"time"

	dom "didhub/internal/domain"
	"didhub/pkg/domain"
)

// Step names one stage of the create pipeline. A checkpoint records the last
// completed step; a partial create error names the step that failed.
type Step string

const (
	StepCreateIdentity Step = "create_identity"
	StepStoreDocument  Step = "store_document"
	StepAnchorDocument Step = "anchor_document"
	StepStoreProfile   Step = "store_profile"
	StepAppendRegistry Step = "append_registry"
)

var stepOrder = []Step{
	StepCreateIdentity,
	StepStoreDocument,
	StepAnchorDocument,
	StepStoreProfile,
	StepAppendRegistry,
}

func stepRank(s Step) int {
	for i, step := range stepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// Checkpoint is the durable progress record of one in-flight create. It
// carries the original request payload so a resume can replay the remaining
// steps without the caller re-supplying anything but the key.
type Checkpoint struct {
	DID             domain.DID        `json:"did"`
	Step            Step              `json:"step"`
	DocumentAddress domain.Address    `json:"documentAddress,omitempty"`
	ProfileAddress  domain.Address    `json:"profileAddress,omitempty"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	AlsoKnownAs     []string          `json:"alsoKnownAs,omitempty"`
	Services        []dom.Service     `json:"services,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// CheckpointStore persists create progress keyed by DID. Load returns
// CodeNotFound when no create is in flight for the identity.
type CheckpointStore interface {
	Save(ctx context.Context, cp Checkpoint) error
	Load(ctx context.Context, did domain.DID) (Checkpoint, error)
	Clear(ctx context.Context, did domain.DID) error
}
