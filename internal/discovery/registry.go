package discovery

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"

	"didhub/internal/content"
	dom "didhub/internal/domain"
	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
	"didhub/pkg/platform/audit"
)

var tracer = otel.Tracer("discovery")

var (
	appendConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "didhub_registry_append_conflicts_total",
		Help: "Pointer CAS conflicts encountered while appending, all retried",
	})
	appendAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "didhub_registry_append_attempts",
		Help:    "Attempts needed per successful registry append",
		Buckets: []float64{1, 2, 3, 5, 8, 13},
	})
)

const registryLabel = "did-registry.json"

// Registry is the discovery index. A logical registry is a chain of content
// objects; each append writes a complete new object and advances the
// well-known pointer with compare-and-swap, so concurrent appenders never
// lose entries.
type Registry struct {
	pointer    PointerStore
	store      content.Store
	maxRetries uint64
	logger     *slog.Logger
	auditor    audit.Publisher
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(r *Registry) { r.auditor = p }
}

// WithMaxRetries bounds the CAS retry budget per append.
func WithMaxRetries(n uint64) Option {
	return func(r *Registry) { r.maxRetries = n }
}

// New builds a Registry. Pointer store and content store are required.
func New(pointer PointerStore, store content.Store, opts ...Option) (*Registry, error) {
	if pointer == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "pointer store is required")
	}
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "content store is required")
	}
	r := &Registry{
		pointer:    pointer,
		store:      store,
		maxRetries: 8,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Append adds an entry and returns the new registry address. The sequence is
// read pointer, fetch object, append, write new object, CAS pointer; a lost
// CAS restarts the whole sequence with backoff. Only the CAS conflict is
// retried here — content-store transients retry inside the store itself.
func (r *Registry) Append(ctx context.Context, entry dom.RegistryEntry) (domain.Address, error) {
	ctx, span := tracer.Start(ctx, "Discovery.Append")
	defer span.End()

	var (
		newAddr  domain.Address
		prevAddr domain.Address
		attempts int
	)

	operation := func() error {
		attempts++
		old, err := r.pointer.Current(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		object, err := r.fetch(ctx, old)
		if err != nil {
			return backoff.Permanent(err)
		}
		object.DIDs = append(object.DIDs, entry)

		// The new object is always fully constructed and uploaded before the
		// pointer moves; a half-appended registry is unrepresentable.
		payload, err := json.MarshalIndent(object, "", "  ")
		if err != nil {
			return backoff.Permanent(dErrors.Wrap(err, dErrors.CodeInternal, "encoding registry object"))
		}
		addr, err := r.store.Put(ctx, payload, content.WithLabel(registryLabel))
		if err != nil {
			return backoff.Permanent(err)
		}

		if err := r.pointer.CompareAndSwap(ctx, old, addr); err != nil {
			if dErrors.HasCode(err, dErrors.CodePointerConflict) {
				appendConflicts.Inc()
				r.logger.Debug("registry append lost pointer race, retrying", "did", entry.DID)
				return err
			}
			return backoff.Permanent(err)
		}
		newAddr, prevAddr = addr, old
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newAppendBackoff(), r.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		span.RecordError(err)
		if dErrors.HasCode(err, dErrors.CodePointerConflict) {
			return "", dErrors.Wrap(err, dErrors.CodePointerConflict, "append retry budget exhausted")
		}
		return "", err
	}
	appendAttempts.Observe(float64(attempts))

	// The superseded object is only a storage hint now; failing to release
	// it never fails the append.
	if !prevAddr.IsZero() {
		if err := r.store.Unpin(ctx, prevAddr); err != nil {
			r.logger.Warn("unpin of superseded registry object failed", "address", prevAddr, "error", err)
		}
	}

	audit.Emit(ctx, r.auditor, audit.Event{
		Action: audit.ActionRegistryAppended,
		DID:    entry.DID.String(),
		Detail: map[string]string{"address": newAddr.String()},
	})
	return newAddr, nil
}

// List returns all known entries in append order.
func (r *Registry) List(ctx context.Context) ([]dom.RegistryEntry, error) {
	ctx, span := tracer.Start(ctx, "Discovery.List")
	defer span.End()

	addr, err := r.pointer.Current(ctx)
	if err != nil {
		return nil, err
	}
	object, err := r.fetch(ctx, addr)
	if err != nil {
		return nil, err
	}
	return object.DIDs, nil
}

// Find returns the newest entry for a DID, or CodeNotFound when the identity
// was never appended.
func (r *Registry) Find(ctx context.Context, did domain.DID) (dom.RegistryEntry, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return dom.RegistryEntry{}, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].DID == did {
			return entries[i], nil
		}
	}
	return dom.RegistryEntry{}, dErrors.Newf(dErrors.CodeNotFound, "no registry entry for %s", did)
}

// fetch loads the registry object behind addr; the zero address is an empty
// registry.
func (r *Registry) fetch(ctx context.Context, addr domain.Address) (dom.RegistryObject, error) {
	if addr.IsZero() {
		return dom.RegistryObject{}, nil
	}
	data, err := r.store.Get(ctx, addr)
	if err != nil {
		return dom.RegistryObject{}, dErrors.Wrap(err, dErrors.CodeInternal, "fetching registry object")
	}
	var object dom.RegistryObject
	if err := json.Unmarshal(data, &object); err != nil {
		return dom.RegistryObject{}, dErrors.Wrap(err, dErrors.CodeInternal, "decoding registry object")
	}
	return object, nil
}

func newAppendBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return b
}
