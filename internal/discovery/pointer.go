// Package discovery maintains the append-only index of known identities as a
// chain of content objects behind one well-known pointer.
package discovery

import (
	"context"

	"didhub/pkg/domain"
)

// PointerStore is the versioned reference cell holding the latest registry
// address. The pointer update is the sole point of contention for appends:
// CompareAndSwap must be atomic, keyed on the previously observed address.
type PointerStore interface {
	// Current returns the latest registry address, or the zero Address when
	// the registry has never been written.
	Current(ctx context.Context) (domain.Address, error)

	// CompareAndSwap replaces old with next only if the slot still holds
	// old. A lost race returns CodePointerConflict; the caller restarts its
	// read-modify-append sequence from scratch.
	CompareAndSwap(ctx context.Context, old, next domain.Address) error
}
