// Package content talks to the content network gateway: immutable byte
// payloads addressed by a deterministic hash of their contents.
package content

import (
	"context"

	"didhub/pkg/domain"
)

// Store is the port every component uses for content objects. Implementations
// must honor the content-addressing invariant: identical bytes yield identical
// addresses and never a duplicate write.
type Store interface {
	// Put uploads a payload and returns its content address. Idempotent.
	Put(ctx context.Context, data []byte, opts ...PutOption) (domain.Address, error)

	// Get fetches a payload. Returns CodeNotFound when the object is missing
	// or not yet propagated.
	Get(ctx context.Context, addr domain.Address) ([]byte, error)

	// Unpin releases storage for an address. It is a garbage-collection hint,
	// not a correctness requirement; callers log failures and move on.
	Unpin(ctx context.Context, addr domain.Address) error
}

// PutOption configures a single upload.
type PutOption func(*putOptions)

type putOptions struct {
	label string
}

// WithLabel attaches a human-readable label to the stored object. Labels may
// embed the identity string for operator convenience but are never used for
// lookup; lookup is always by content address.
func WithLabel(label string) PutOption {
	return func(o *putOptions) {
		o.label = label
	}
}

func applyOptions(opts []PutOption) putOptions {
	var o putOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
