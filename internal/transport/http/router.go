// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services and encode; no business logic lives here.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dom "didhub/internal/domain"
	"didhub/internal/ledger"
	"didhub/internal/profile"
	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
)

// IdentityService covers the ownership operations exposed over HTTP.
type IdentityService interface {
	AddDelegate(ctx context.Context, signer *ledger.Signer, did domain.DID, delegate common.Address, role string, window time.Duration, ownerBound bool) (dom.Receipt, error)
	RevokeDelegate(ctx context.Context, signer *ledger.Signer, did domain.DID, delegate common.Address) (dom.Receipt, error)
	ChangeOwner(ctx context.Context, signer *ledger.Signer, did domain.DID, newOwner common.Address) (dom.Receipt, error)
	CheckDelegate(ctx context.Context, did domain.DID, key common.Address) (dom.DelegateStatus, error)
	CheckOwnership(ctx context.Context, did domain.DID, key common.Address) (bool, error)
}

// DocumentResolver resolves identity documents.
type DocumentResolver interface {
	Resolve(ctx context.Context, did domain.DID) (dom.IdentityDocument, error)
}

// ProfileService is the orchestrator surface.
type ProfileService interface {
	CreateProfile(ctx context.Context, signer *ledger.Signer, req profile.CreateRequest) (profile.CreateResult, error)
	ResumeCreate(ctx context.Context, signer *ledger.Signer, did domain.DID) (profile.CreateResult, error)
	LoadProfile(ctx context.Context, did domain.DID) (profile.View, error)
}

// RegistryService lists the discovery index.
type RegistryService interface {
	List(ctx context.Context) ([]dom.RegistryEntry, error)
}

// Handler bundles the services behind the public API.
type Handler struct {
	identity IdentityService
	resolver DocumentResolver
	profiles ProfileService
	registry RegistryService
	logger   *slog.Logger
}

func NewHandler(identity IdentityService, resolver DocumentResolver, profiles ProfileService, registry RegistryService, logger *slog.Logger) *Handler {
	return &Handler{
		identity: identity,
		resolver: resolver,
		profiles: profiles,
		registry: registry,
		logger:   logger,
	}
}

// NewRouter wires all public endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestContext(h.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/identities/{did}", func(r chi.Router) {
		r.Get("/", h.resolveIdentity)
		r.Put("/owner", h.changeOwner)
		r.Get("/ownership", h.checkOwnership)
		r.Post("/delegates", h.addDelegate)
		r.Get("/delegates/{key}", h.checkDelegate)
		r.Post("/delegates/{key}/revoke", h.revokeDelegate)
	})

	r.Post("/profiles", h.createProfile)
	r.Get("/profiles/{did}", h.loadProfile)
	r.Post("/profiles/{did}/resume", h.resumeCreate)

	r.Get("/registry/dids", h.listRegistry)
	return r
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates a domain error into the JSON error envelope. Partial
// creates carry their artifacts so the caller can decide whether to resume.
func writeError(w http.ResponseWriter, err error) {
	var partial *profile.PartialCreateError
	if errors.As(err, &partial) {
		respond(w, dErrors.ToHTTPStatus(dErrors.CodePartialCreate), map[string]any{
			"error":           string(dErrors.CodePartialCreate),
			"message":         partial.Error(),
			"step":            string(partial.Step),
			"identity":        partial.Identity.String(),
			"documentAddress": partial.DocumentAddress.String(),
			"profileAddress":  partial.ProfileAddress.String(),
		})
		return
	}

	code := dErrors.CodeOf(err)
	message := err.Error()
	var de *dErrors.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	respond(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": message,
	})
}

func didParam(r *http.Request) (domain.DID, error) {
	return domain.ParseDID(chi.URLParam(r, "did"))
}

func addressParam(r *http.Request, name string) (common.Address, error) {
	raw := chi.URLParam(r, name)
	if !common.IsHexAddress(raw) {
		return common.Address{}, dErrors.Newf(dErrors.CodeInvalidInput, "invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed request body")
	}
	return nil
}
