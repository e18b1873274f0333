package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"

	dom "didhub/internal/domain"
	"didhub/internal/platform/metrics"
	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
	"didhub/pkg/platform/audit"
)

var tracer = otel.Tracer("ledger")

// Controller is the ownership controller: every state-changing registry
// operation goes through here. Authorization and validation failures are
// surfaced immediately and never retried; finality is polled, never
// re-submitted.
type Controller struct {
	client       Client
	network      string
	pollInterval time.Duration
	logger       *slog.Logger
	auditor      audit.Publisher
	metrics      *metrics.Metrics
	now          func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(c *Controller) { c.auditor = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock overrides the time source used for validity evaluation (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithPollInterval overrides how often finality is polled.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.pollInterval = d }
}

// New builds a Controller. The client and network name are required.
func New(client Client, network string, opts ...Option) (*Controller, error) {
	if client == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ledger client is required")
	}
	if network == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "network name is required")
	}
	c := &Controller{
		client:       client,
		network:      network,
		pollInterval: 2 * time.Second,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateIdentity binds a new identity to the caller's key material and waits
// for the registration to reach finality.
func (c *Controller) CreateIdentity(ctx context.Context, signer *Signer) (domain.DID, dom.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Ledger.CreateIdentity")
	defer span.End()

	if signer == nil {
		return "", dom.Receipt{}, dErrors.New(dErrors.CodeSignerUnavailable, "no key holder supplied")
	}
	did := domain.NewDID(c.network, signer.Address())

	owner, err := c.client.IdentityOwner(ctx, signer.Address())
	if err != nil {
		span.RecordError(err)
		return did, dom.Receipt{}, dErrors.Wrap(err, dErrors.CodeInternal, "reading ownership record")
	}
	if owner != (common.Address{}) {
		return did, dom.Receipt{}, dErrors.Newf(dErrors.CodeRejected, "identity %s already registered", did)
	}

	ref, err := c.client.SubmitRegister(ctx, signer)
	if err != nil {
		span.RecordError(err)
		return did, dom.Receipt{}, dErrors.Wrap(err, dErrors.CodeInternal, "submitting registration")
	}
	receipt, err := c.await(ctx, did, ref)
	if err != nil {
		return did, receipt, err
	}
	if receipt.Status != domain.StatusCommitted {
		return did, receipt, dErrors.Newf(dErrors.CodeRejected, "registration rejected: %s", receipt.Reason)
	}

	if c.metrics != nil {
		c.metrics.IdentitiesCreated.Inc()
	}
	audit.Emit(ctx, c.auditor, audit.Event{
		Action: audit.ActionIdentityCreated,
		DID:    did.String(),
		Actor:  signer.Address().Hex(),
	})
	c.logger.Info("identity created", "did", did, "sequence", receipt.Sequence)
	return did, receipt, nil
}

// AddDelegate grants a scoped, time-bounded capability over an identity.
// Only the current owner may call it.
func (c *Controller) AddDelegate(ctx context.Context, signer *Signer, did domain.DID, delegate common.Address, role string, window time.Duration, ownerBound bool) (dom.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Ledger.AddDelegate")
	defer span.End()

	if signer == nil {
		return dom.Receipt{}, dErrors.New(dErrors.CodeSignerUnavailable, "no key holder supplied")
	}
	if window <= 0 {
		return dom.Receipt{}, dErrors.Newf(dErrors.CodeInvalidWindow, "validity window must be positive, got %s", window)
	}
	if err := c.ensureOwner(ctx, did, signer.Address()); err != nil {
		return dom.Receipt{}, err
	}

	validTo := c.now().Add(window)
	ref, err := c.client.SubmitAddDelegate(ctx, signer, did.Identity(), delegate, role, validTo, ownerBound)
	if err != nil {
		span.RecordError(err)
		return dom.Receipt{}, dErrors.Wrap(err, dErrors.CodeInternal, "submitting delegate grant")
	}
	receipt, err := c.await(ctx, did, ref)
	if err != nil {
		return receipt, err
	}
	if receipt.Status != domain.StatusCommitted {
		return receipt, dErrors.Newf(dErrors.CodeRejected, "delegate grant rejected: %s", receipt.Reason)
	}

	audit.Emit(ctx, c.auditor, audit.Event{
		Action: audit.ActionDelegateAdded,
		DID:    did.String(),
		Actor:  signer.Address().Hex(),
		Detail: map[string]string{"delegate": delegate.Hex(), "role": role},
	})
	return receipt, nil
}

// RevokeDelegate is idempotent: revoking a delegate that is unknown, expired
// or already revoked succeeds as a no-op reported as StatusAlreadyRevoked so
// callers can detect staleness.
func (c *Controller) RevokeDelegate(ctx context.Context, signer *Signer, did domain.DID, delegate common.Address) (dom.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Ledger.RevokeDelegate")
	defer span.End()

	if signer == nil {
		return dom.Receipt{}, dErrors.New(dErrors.CodeSignerUnavailable, "no key holder supplied")
	}
	if err := c.ensureOwner(ctx, did, signer.Address()); err != nil {
		return dom.Receipt{}, err
	}

	delegates, err := c.client.Delegates(ctx, did.Identity())
	if err != nil {
		span.RecordError(err)
		return dom.Receipt{}, dErrors.Wrap(err, dErrors.CodeInternal, "reading delegates")
	}
	if !delegateActive(delegates, delegate, c.now()) {
		return dom.Receipt{Status: domain.StatusAlreadyRevoked, ObservedAt: c.now()}, nil
	}

	ref, err := c.client.SubmitRevokeDelegate(ctx, signer, did.Identity(), delegate)
	if err != nil {
		span.RecordError(err)
		return dom.Receipt{}, dErrors.Wrap(err, dErrors.CodeInternal, "submitting revocation")
	}
	receipt, err := c.await(ctx, did, ref)
	if err != nil {
		return receipt, err
	}
	if receipt.Status != domain.StatusCommitted {
		return receipt, dErrors.Newf(dErrors.CodeRejected, "revocation rejected: %s", receipt.Reason)
	}

	audit.Emit(ctx, c.auditor, audit.Event{
		Action: audit.ActionDelegateRevoked,
		DID:    did.String(),
		Actor:  signer.Address().Hex(),
		Detail: map[string]string{"delegate": delegate.Hex()},
	})
	return receipt, nil
}

// ChangeOwner atomically replaces the owner and invalidates owner-bound
// delegates. Two concurrent calls race on the sequence number: exactly one
// commits and the loser's receipt reports StatusSuperseded.
func (c *Controller) ChangeOwner(ctx context.Context, signer *Signer, did domain.DID, newOwner common.Address) (dom.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Ledger.ChangeOwner")
	defer span.End()

	if signer == nil {
		return dom.Receipt{}, dErrors.New(dErrors.CodeSignerUnavailable, "no key holder supplied")
	}
	if err := c.ensureOwner(ctx, did, signer.Address()); err != nil {
		return dom.Receipt{}, err
	}

	expectedSeq, err := c.client.Changed(ctx, did.Identity())
	if err != nil {
		span.RecordError(err)
		return dom.Receipt{}, dErrors.Wrap(err, dErrors.CodeInternal, "reading sequence number")
	}

	ref, err := c.client.SubmitChangeOwner(ctx, signer, did.Identity(), newOwner, expectedSeq)
	if err != nil {
		span.RecordError(err)
		return dom.Receipt{}, dErrors.Wrap(err, dErrors.CodeInternal, "submitting owner change")
	}
	receipt, err := c.await(ctx, did, ref)
	if err != nil {
		return receipt, err
	}

	if receipt.Status == domain.StatusRejected {
		// Distinguish a lost sequence race from a plain revert so the caller
		// knows whether re-reading and retrying can help.
		current, seqErr := c.client.Changed(ctx, did.Identity())
		if seqErr == nil && current != expectedSeq {
			receipt.Status = domain.StatusSuperseded
			return receipt, dErrors.Newf(dErrors.CodeSuperseded,
				"owner change superseded: sequence moved from %d to %d", expectedSeq, current)
		}
		return receipt, dErrors.Newf(dErrors.CodeRejected, "owner change rejected: %s", receipt.Reason)
	}

	audit.Emit(ctx, c.auditor, audit.Event{
		Action: audit.ActionOwnerChanged,
		DID:    did.String(),
		Actor:  signer.Address().Hex(),
		Detail: map[string]string{"newOwner": newOwner.Hex()},
	})
	return receipt, nil
}

// SetDocumentRef anchors an off-chain document augmentation address in the
// ownership record.
func (c *Controller) SetDocumentRef(ctx context.Context, signer *Signer, did domain.DID, addr domain.Address) (dom.Receipt, error) {
	ctx, span := tracer.Start(ctx, "Ledger.SetDocumentRef")
	defer span.End()

	if signer == nil {
		return dom.Receipt{}, dErrors.New(dErrors.CodeSignerUnavailable, "no key holder supplied")
	}
	if err := c.ensureOwner(ctx, did, signer.Address()); err != nil {
		return dom.Receipt{}, err
	}

	ref, err := c.client.SubmitSetDocumentRef(ctx, signer, did.Identity(), addr.String())
	if err != nil {
		span.RecordError(err)
		return dom.Receipt{}, dErrors.Wrap(err, dErrors.CodeInternal, "submitting document ref")
	}
	receipt, err := c.await(ctx, did, ref)
	if err != nil {
		return receipt, err
	}
	if receipt.Status != domain.StatusCommitted {
		return receipt, dErrors.Newf(dErrors.CodeRejected, "document ref rejected: %s", receipt.Reason)
	}
	return receipt, nil
}

// CheckDelegate evaluates delegate validity against current chain time, never
// a cached snapshot. An expired delegate reports inactive without any chain
// write having happened.
func (c *Controller) CheckDelegate(ctx context.Context, did domain.DID, key common.Address) (dom.DelegateStatus, error) {
	ctx, span := tracer.Start(ctx, "Ledger.CheckDelegate")
	defer span.End()

	if err := c.ensureRegistered(ctx, did); err != nil {
		return dom.DelegateStatus{}, err
	}
	delegates, err := c.client.Delegates(ctx, did.Identity())
	if err != nil {
		span.RecordError(err)
		return dom.DelegateStatus{}, dErrors.Wrap(err, dErrors.CodeInternal, "reading delegates")
	}
	for _, d := range delegates {
		if d.Key == key {
			return dom.DelegateStatus{Active: d.ActiveAt(c.now()), Role: d.Role, Expiry: d.Expiry}, nil
		}
	}
	return dom.DelegateStatus{Active: false}, nil
}

// CheckOwnership is a read-only equality check against the current owner.
func (c *Controller) CheckOwnership(ctx context.Context, did domain.DID, key common.Address) (bool, error) {
	ctx, span := tracer.Start(ctx, "Ledger.CheckOwnership")
	defer span.End()

	owner, err := c.client.IdentityOwner(ctx, did.Identity())
	if err != nil {
		span.RecordError(err)
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "reading ownership record")
	}
	if owner == (common.Address{}) {
		return false, dErrors.Newf(dErrors.CodeUnknownIdentity, "identity %s is not registered", did)
	}
	return owner == key, nil
}

// Record reads the full ownership record. Used by the resolver, which must
// see the latest sequence number on every call.
func (c *Controller) Record(ctx context.Context, did domain.DID) (dom.OwnershipRecord, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Record")
	defer span.End()

	identity := did.Identity()
	owner, err := c.client.IdentityOwner(ctx, identity)
	if err != nil {
		span.RecordError(err)
		return dom.OwnershipRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "reading ownership record")
	}
	if owner == (common.Address{}) {
		return dom.OwnershipRecord{}, dErrors.Newf(dErrors.CodeUnknownIdentity, "identity %s is not registered", did)
	}

	seq, err := c.client.Changed(ctx, identity)
	if err != nil {
		span.RecordError(err)
		return dom.OwnershipRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "reading sequence number")
	}
	delegates, err := c.client.Delegates(ctx, identity)
	if err != nil {
		span.RecordError(err)
		return dom.OwnershipRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "reading delegates")
	}

	rec := dom.OwnershipRecord{
		Identity:  did,
		Owner:     owner,
		Sequence:  seq,
		Delegates: delegates,
	}
	ref, err := c.client.DocumentRef(ctx, identity)
	if err != nil {
		span.RecordError(err)
		return dom.OwnershipRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "reading document ref")
	}
	if ref != "" {
		addr, err := domain.ParseAddress(ref)
		if err != nil {
			// A malformed on-chain ref must not make the identity
			// unresolvable; ownership facts still stand.
			c.logger.Warn("ignoring malformed document ref", "did", did, "ref", ref)
		} else {
			rec.DocumentRef = addr
		}
	}
	return rec, nil
}

// Status reports the current finality state for a pending reference.
func (c *Controller) Status(ctx context.Context, ref TxRef) (dom.Receipt, error) {
	state, err := c.client.TxStatus(ctx, ref)
	if err != nil {
		return dom.Receipt{}, dErrors.Wrap(err, dErrors.CodeInternal, "polling finality")
	}
	return dom.Receipt{Ref: ref.ID, Status: state.Status, Reason: state.Reason, ObservedAt: c.now()}, nil
}

// await polls until finality or the caller's deadline. A deadline hit yields
// CodeTimeout distinct from a definitive rejection so retry logic can tell
// "try again" from "do not retry".
func (c *Controller) await(ctx context.Context, did domain.DID, ref TxRef) (dom.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		state, err := c.client.TxStatus(ctx, ref)
		if err != nil {
			return dom.Receipt{Ref: ref.ID, Status: domain.StatusPending}, dErrors.Wrap(err, dErrors.CodeInternal, "polling finality")
		}
		if state.Status.Terminal() {
			receipt := dom.Receipt{Ref: ref.ID, Status: state.Status, Reason: state.Reason, ObservedAt: c.now()}
			if state.Status == domain.StatusCommitted {
				if seq, err := c.client.Changed(ctx, did.Identity()); err == nil {
					receipt.Sequence = seq
				}
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return dom.Receipt{Ref: ref.ID, Status: domain.StatusPending},
				dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "finality not observed before deadline")
		case <-ticker.C:
		}
	}
}

func (c *Controller) ensureRegistered(ctx context.Context, did domain.DID) error {
	owner, err := c.client.IdentityOwner(ctx, did.Identity())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "reading ownership record")
	}
	if owner == (common.Address{}) {
		return dErrors.Newf(dErrors.CodeUnknownIdentity, "identity %s is not registered", did)
	}
	return nil
}

func (c *Controller) ensureOwner(ctx context.Context, did domain.DID, caller common.Address) error {
	owner, err := c.client.IdentityOwner(ctx, did.Identity())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "reading ownership record")
	}
	if owner == (common.Address{}) {
		return dErrors.Newf(dErrors.CodeUnknownIdentity, "identity %s is not registered", did)
	}
	if owner != caller {
		return dErrors.Newf(dErrors.CodeUnauthorized, "caller %s is not the owner of %s", caller.Hex(), did)
	}
	return nil
}

func delegateActive(delegates []dom.Delegate, key common.Address, now time.Time) bool {
	for _, d := range delegates {
		if d.Key == key && d.ActiveAt(now) {
			return true
		}
	}
	return false
}
