package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"didhub/internal/content"
	dom "didhub/internal/domain"
	"didhub/internal/ledger"
	"didhub/internal/platform/metrics"
	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
	"didhub/pkg/platform/audit"
)

var tracer = otel.Tracer("profile")

// Ledger is the slice of the ownership controller the orchestrator needs.
type Ledger interface {
	CreateIdentity(ctx context.Context, signer *ledger.Signer) (domain.DID, dom.Receipt, error)
	SetDocumentRef(ctx context.Context, signer *ledger.Signer, did domain.DID, addr domain.Address) (dom.Receipt, error)
}

// Resolver produces identity documents for LoadProfile.
type Resolver interface {
	Resolve(ctx context.Context, did domain.DID) (dom.IdentityDocument, error)
}

// Registry is the discovery index the orchestrator appends to.
type Registry interface {
	Append(ctx context.Context, entry dom.RegistryEntry) (domain.Address, error)
	Find(ctx context.Context, did domain.DID) (dom.RegistryEntry, error)
}

// PartialCreateError reports a create that stopped partway. The identity and
// any stored artifacts survive; ResumeCreate picks up from the recorded step.
// There is no on-chain rollback.
type PartialCreateError struct {
	Step            Step
	Identity        domain.DID
	DocumentAddress domain.Address
	ProfileAddress  domain.Address
	Err             error
}

func (e *PartialCreateError) Error() string {
	return fmt.Sprintf("profile create for %s stopped at %s: %v", e.Identity, e.Step, e.Err)
}

func (e *PartialCreateError) Unwrap() error { return e.Err }

// CreateRequest is the caller-supplied profile payload.
type CreateRequest struct {
	Attributes  map[string]string `json:"attributes,omitempty"`
	AlsoKnownAs []string          `json:"alsoKnownAs,omitempty"`
	Services    []dom.Service     `json:"services,omitempty"`
}

// CreateResult names every artifact a completed create produced.
type CreateResult struct {
	Identity        domain.DID     `json:"identity"`
	DocumentAddress domain.Address `json:"documentAddress"`
	ProfileAddress  domain.Address `json:"profileAddress"`
	RegistryAddress domain.Address `json:"registryAddress"`
}

// View is the resolved pair returned by LoadProfile.
type View struct {
	Document dom.IdentityDocument `json:"document"`
	Profile  dom.ProfileRecord    `json:"profile"`
}

// Service sequences identity creation, content uploads and the discovery
// append into one profile create, checkpointing after each completed step.
type Service struct {
	ledger      Ledger
	resolver    Resolver
	registry    Registry
	store       content.Store
	checkpoints CheckpointStore
	logger      *slog.Logger
	auditor     audit.Publisher
	metrics     *metrics.Metrics
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds the orchestrator. All collaborators are required.
func New(l Ledger, r Resolver, reg Registry, store content.Store, checkpoints CheckpointStore, opts ...Option) (*Service, error) {
	switch {
	case l == nil:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ledger is required")
	case r == nil:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "resolver is required")
	case reg == nil:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "registry is required")
	case store == nil:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "content store is required")
	case checkpoints == nil:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "checkpoint store is required")
	}
	s := &Service{
		ledger:      l,
		resolver:    r,
		registry:    reg,
		store:       store,
		checkpoints: checkpoints,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateProfile runs the full pipeline: register the identity, store and
// anchor its document, store the profile record, append to discovery. The
// identity registration is the only step with no partial state; from the
// moment it commits, any later failure yields a PartialCreateError and the
// work is resumable.
func (s *Service) CreateProfile(ctx context.Context, signer *ledger.Signer, req CreateRequest) (CreateResult, error) {
	ctx, span := tracer.Start(ctx, "Profile.Create")
	defer span.End()

	did, _, err := s.ledger.CreateIdentity(ctx, signer)
	if err != nil {
		span.RecordError(err)
		return CreateResult{}, err
	}

	now := s.now().UTC()
	cp := Checkpoint{
		DID:         did,
		Step:        StepCreateIdentity,
		Attributes:  req.Attributes,
		AlsoKnownAs: req.AlsoKnownAs,
		Services:    req.Services,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.save(ctx, cp)

	return s.run(ctx, signer, cp)
}

// ResumeCreate continues an interrupted create from its checkpoint. The same
// key holder that started the create must resume it.
func (s *Service) ResumeCreate(ctx context.Context, signer *ledger.Signer, did domain.DID) (CreateResult, error) {
	ctx, span := tracer.Start(ctx, "Profile.Resume")
	defer span.End()

	if signer == nil {
		return CreateResult{}, dErrors.New(dErrors.CodeSignerUnavailable, "no key holder supplied")
	}
	if signer.Address() != did.Identity() {
		return CreateResult{}, dErrors.Newf(dErrors.CodeUnauthorized, "key holder %s did not start the create of %s", signer.Address().Hex(), did)
	}
	cp, err := s.checkpoints.Load(ctx, did)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return CreateResult{}, dErrors.Wrap(err, dErrors.CodeNotFound, "no partial create in flight")
		}
		return CreateResult{}, err
	}

	s.logger.Info("resuming profile create", "did", did, "step", cp.Step)
	return s.run(ctx, signer, cp)
}

// run executes every step after identity creation, skipping the ones the
// checkpoint already records.
func (s *Service) run(ctx context.Context, signer *ledger.Signer, cp Checkpoint) (CreateResult, error) {
	if stepRank(cp.Step) < stepRank(StepStoreDocument) {
		aug := dom.DocumentAugmentation{
			ID:          cp.DID.String(),
			AlsoKnownAs: cp.AlsoKnownAs,
			Service:     cp.Services,
			Updated:     s.now().UTC().Format(time.RFC3339),
		}
		payload, err := json.Marshal(aug)
		if err != nil {
			return CreateResult{}, s.partial(cp, StepStoreDocument, err)
		}
		addr, err := s.store.Put(ctx, payload, content.WithLabel("diddoc-"+cp.DID.String()+".json"))
		if err != nil {
			return CreateResult{}, s.partial(cp, StepStoreDocument, err)
		}
		cp.DocumentAddress = addr
		cp = s.advance(ctx, cp, StepStoreDocument)
	}

	if stepRank(cp.Step) < stepRank(StepAnchorDocument) {
		if _, err := s.ledger.SetDocumentRef(ctx, signer, cp.DID, cp.DocumentAddress); err != nil {
			return CreateResult{}, s.partial(cp, StepAnchorDocument, err)
		}
		cp = s.advance(ctx, cp, StepAnchorDocument)
	}

	if stepRank(cp.Step) < stepRank(StepStoreProfile) {
		rec := dom.ProfileRecord{
			DID:             cp.DID,
			DocumentAddress: cp.DocumentAddress,
			Attributes:      cp.Attributes,
			CreatedAt:       cp.CreatedAt,
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return CreateResult{}, s.partial(cp, StepStoreProfile, err)
		}
		addr, err := s.store.Put(ctx, payload, content.WithLabel("profile-"+cp.DID.String()+".json"))
		if err != nil {
			return CreateResult{}, s.partial(cp, StepStoreProfile, err)
		}
		cp.ProfileAddress = addr
		cp = s.advance(ctx, cp, StepStoreProfile)
	}

	regAddr, err := s.registry.Append(ctx, dom.RegistryEntry{
		DID:       cp.DID,
		Profile:   cp.ProfileAddress,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		return CreateResult{}, s.partial(cp, StepAppendRegistry, err)
	}

	if err := s.checkpoints.Clear(ctx, cp.DID); err != nil {
		s.logger.Warn("clearing completed checkpoint failed", "did", cp.DID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.ProfilesCreated.Inc()
	}
	audit.Emit(ctx, s.auditor, audit.Event{
		Action: audit.ActionProfileCreated,
		DID:    cp.DID.String(),
		Actor:  signer.Address().Hex(),
		Detail: map[string]string{
			"document": cp.DocumentAddress.String(),
			"profile":  cp.ProfileAddress.String(),
		},
	})
	s.logger.Info("profile created", "did", cp.DID, "profile", cp.ProfileAddress)

	return CreateResult{
		Identity:        cp.DID,
		DocumentAddress: cp.DocumentAddress,
		ProfileAddress:  cp.ProfileAddress,
		RegistryAddress: regAddr,
	}, nil
}

// LoadProfile resolves the identity document and fetches the profile record.
// The two content reads run concurrently. A document augmentation that cannot
// be fetched degrades the document, not the whole load: the ledger-derived
// document and the profile are returned alongside CodeDocumentUnavailable.
func (s *Service) LoadProfile(ctx context.Context, did domain.DID) (View, error) {
	ctx, span := tracer.Start(ctx, "Profile.Load")
	defer span.End()

	var (
		view   View
		docErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := s.resolver.Resolve(gctx, did)
		if err != nil && !dErrors.HasCode(err, dErrors.CodeDocumentUnavailable) {
			return err
		}
		view.Document = doc
		docErr = err
		return nil
	})
	g.Go(func() error {
		entry, err := s.registry.Find(gctx, did)
		if err != nil {
			return err
		}
		if entry.Profile.IsZero() {
			return dErrors.Newf(dErrors.CodeNotFound, "registry entry for %s carries no profile", did)
		}
		data, err := s.store.Get(gctx, entry.Profile)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeDocumentUnavailable, "fetching profile record")
		}
		if err := json.Unmarshal(data, &view.Profile); err != nil {
			return dErrors.Wrap(err, dErrors.CodeDocumentUnavailable, "decoding profile record")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return View{}, err
	}
	return view, docErr
}

// partial records the metric and builds the typed error for a failed step.
func (s *Service) partial(cp Checkpoint, step Step, cause error) error {
	if s.metrics != nil {
		s.metrics.PartialCreates.WithLabelValues(string(step)).Inc()
	}
	s.logger.Error("profile create stopped", "did", cp.DID, "step", step, "error", cause)
	return &PartialCreateError{
		Step:            step,
		Identity:        cp.DID,
		DocumentAddress: cp.DocumentAddress,
		ProfileAddress:  cp.ProfileAddress,
		Err:             dErrors.Wrap(cause, dErrors.CodePartialCreate, fmt.Sprintf("step %s failed", step)),
	}
}

func (s *Service) advance(ctx context.Context, cp Checkpoint, step Step) Checkpoint {
	cp.Step = step
	cp.UpdatedAt = s.now().UTC()
	s.save(ctx, cp)
	return cp
}

// save is best-effort: a checkpoint write failure costs resumability, never
// the create itself.
func (s *Service) save(ctx context.Context, cp Checkpoint) {
	if err := s.checkpoints.Save(ctx, cp); err != nil {
		s.logger.Warn("checkpoint save failed", "did", cp.DID, "step", cp.Step, "error", err)
	}
}
