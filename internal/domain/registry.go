package domain

import (
	"time"

	pkgdomain "didhub/pkg/domain"
)

// RegistryEntry is one row of the discovery index. Entries are append-only:
// never removed, never mutated.
type RegistryEntry struct {
	DID pkgdomain.DID `json:"did"`
	// Profile points at the identity's profile record so discovery readers
	// can fetch application data without resolving the full document.
	Profile   pkgdomain.Address `json:"profile,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// RegistryObject is the single content object holding the discovery index.
// Each append produces a new object whose address supersedes the previous one
// behind the well-known pointer.
type RegistryObject struct {
	DIDs []RegistryEntry `json:"dids"`
}
