package httptransport

import (
	"net/http"

	dom "didhub/internal/domain"
	"didhub/internal/ledger"
	"didhub/internal/profile"
	dErrors "didhub/pkg/domain-errors"
)

type createProfileRequest struct {
	PrivateKey  string            `json:"privateKey"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	AlsoKnownAs []string          `json:"alsoKnownAs,omitempty"`
	Services    []dom.Service     `json:"services,omitempty"`
}

func (h *Handler) createProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	signer, err := ledger.SignerFromHex(req.PrivateKey)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.profiles.CreateProfile(r.Context(), signer, profile.CreateRequest{
		Attributes:  req.Attributes,
		AlsoKnownAs: req.AlsoKnownAs,
		Services:    req.Services,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusCreated, result)
}

func (h *Handler) resumeCreate(w http.ResponseWriter, r *http.Request) {
	did, err := didParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req keyHolderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	signer, err := ledger.SignerFromHex(req.PrivateKey)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.profiles.ResumeCreate(r.Context(), signer, did)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

func (h *Handler) loadProfile(w http.ResponseWriter, r *http.Request) {
	did, err := didParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.profiles.LoadProfile(r.Context(), did)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeDocumentUnavailable) {
			respond(w, http.StatusOK, map[string]any{
				"document": view.Document,
				"profile":  view.Profile,
				"degraded": string(dErrors.CodeDocumentUnavailable),
			})
			return
		}
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) listRegistry(w http.ResponseWriter, r *http.Request) {
	entries, err := h.registry.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []dom.RegistryEntry{}
	}
	respond(w, http.StatusOK, map[string]any{"dids": entries})
}
