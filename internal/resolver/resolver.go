// Package resolver assembles identity documents from the authoritative
// ownership record plus any off-chain augmentation it references.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/singleflight"

	"didhub/internal/content"
	dom "didhub/internal/domain"
	"didhub/internal/platform/metrics"
	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
)

var tracer = otel.Tracer("resolver")

// RecordReader is the slice of the ownership controller the resolver needs.
type RecordReader interface {
	Record(ctx context.Context, did domain.DID) (dom.OwnershipRecord, error)
}

// Resolver produces identity documents. Documents are built fresh on every
// resolve so they always reflect the latest sequence number; concurrent
// resolves of the same DID are coalesced into one upstream read.
type Resolver struct {
	ledger       RecordReader
	store        content.Store
	ledgerWindow time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
	group        singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithLedgerWindow bounds how long a ledger read may take before the resolve
// fails with CodeResolutionTimeout.
func WithLedgerWindow(d time.Duration) Option {
	return func(r *Resolver) { r.ledgerWindow = d }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// New builds a Resolver. Ledger reader and content store are required.
func New(ledger RecordReader, store content.Store, opts ...Option) (*Resolver, error) {
	if ledger == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ledger reader is required")
	}
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "content store is required")
	}
	r := &Resolver{
		ledger:       ledger,
		store:        store,
		ledgerWindow: 10 * time.Second,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the identity document for a DID.
//
// Errors: CodeUnknownIdentity when no ownership record exists;
// CodeResolutionTimeout when the ledger read exceeds the bounded window;
// CodeDocumentUnavailable when the referenced content object cannot be
// fetched. In the last case the ledger-derived document is returned alongside
// the error: the ownership facts are still trustworthy.
func (r *Resolver) Resolve(ctx context.Context, did domain.DID) (dom.IdentityDocument, error) {
	ctx, span := tracer.Start(ctx, "Resolver.Resolve")
	defer span.End()

	start := r.now()
	type result struct {
		doc dom.IdentityDocument
		err error
	}
	v, _, _ := r.group.Do(did.String(), func() (any, error) {
		doc, err := r.resolve(ctx, did)
		return result{doc: doc, err: err}, nil
	})
	res := v.(result)

	if r.metrics != nil {
		r.metrics.ResolveDuration.Observe(r.now().Sub(start).Seconds())
		r.metrics.Resolves.WithLabelValues(outcome(res.err)).Inc()
	}
	if res.err != nil {
		span.RecordError(res.err)
	}
	return res.doc, res.err
}

func (r *Resolver) resolve(ctx context.Context, did domain.DID) (dom.IdentityDocument, error) {
	ledgerCtx, cancel := context.WithTimeout(ctx, r.ledgerWindow)
	rec, err := r.ledger.Record(ledgerCtx, did)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return dom.IdentityDocument{}, dErrors.Wrap(err, dErrors.CodeResolutionTimeout, "ledger query exceeded deadline")
		}
		return dom.IdentityDocument{}, err
	}

	doc := dom.BuildIdentityDocument(rec, r.now())
	if rec.DocumentRef.IsZero() {
		return doc, nil
	}

	data, err := r.store.Get(ctx, rec.DocumentRef)
	if err != nil {
		// Reported separately from ledger failures: the on-chain portion of
		// the document is complete and returned as-is.
		return doc, dErrors.Wrap(err, dErrors.CodeDocumentUnavailable, "fetching document augmentation")
	}
	var aug dom.DocumentAugmentation
	if err := json.Unmarshal(data, &aug); err != nil {
		return doc, dErrors.Wrap(err, dErrors.CodeDocumentUnavailable, "decoding document augmentation")
	}
	return dom.ApplyAugmentation(doc, aug), nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(dErrors.CodeOf(err))
}
