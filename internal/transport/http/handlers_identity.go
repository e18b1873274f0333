package httptransport

import (
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"didhub/internal/ledger"
	dErrors "didhub/pkg/domain-errors"
)

func (h *Handler) resolveIdentity(w http.ResponseWriter, r *http.Request) {
	did, err := didParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	doc, err := h.resolver.Resolve(r.Context(), did)
	if err != nil {
		// The ledger-derived document is still usable when only the off-chain
		// augmentation failed; return it with the degradation flagged.
		if dErrors.HasCode(err, dErrors.CodeDocumentUnavailable) {
			respond(w, http.StatusOK, map[string]any{
				"document": doc,
				"degraded": string(dErrors.CodeDocumentUnavailable),
			})
			return
		}
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"document": doc})
}

type addDelegateRequest struct {
	PrivateKey      string `json:"privateKey"`
	Delegate        string `json:"delegate"`
	Role            string `json:"role"`
	ValiditySeconds int64  `json:"validitySeconds"`
	OwnerBound      bool   `json:"ownerBound"`
}

func (h *Handler) addDelegate(w http.ResponseWriter, r *http.Request) {
	did, err := didParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req addDelegateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	signer, err := ledger.SignerFromHex(req.PrivateKey)
	if err != nil {
		writeError(w, err)
		return
	}
	if !common.IsHexAddress(req.Delegate) {
		writeError(w, dErrors.Newf(dErrors.CodeInvalidInput, "invalid delegate address %q", req.Delegate))
		return
	}

	window := time.Duration(req.ValiditySeconds) * time.Second
	receipt, err := h.identity.AddDelegate(r.Context(), signer, did, common.HexToAddress(req.Delegate), req.Role, window, req.OwnerBound)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{"receipt": receipt})
}

type keyHolderRequest struct {
	PrivateKey string `json:"privateKey"`
}

func (h *Handler) revokeDelegate(w http.ResponseWriter, r *http.Request) {
	did, err := didParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	key, err := addressParam(r, "key")
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

	receipt, err := h.identity.RevokeDelegate(r.Context(), signer, did, key)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"receipt": receipt})
}

type changeOwnerRequest struct {
	PrivateKey string `json:"privateKey"`
	NewOwner   string `json:"newOwner"`
}

func (h *Handler) changeOwner(w http.ResponseWriter, r *http.Request) {
	did, err := didParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req changeOwnerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	signer, err := ledger.SignerFromHex(req.PrivateKey)
	if err != nil {
		writeError(w, err)
		return
	}
	if !common.IsHexAddress(req.NewOwner) {
		writeError(w, dErrors.Newf(dErrors.CodeInvalidInput, "invalid owner address %q", req.NewOwner))
		return
	}

	receipt, err := h.identity.ChangeOwner(r.Context(), signer, did, common.HexToAddress(req.NewOwner))
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"receipt": receipt})
}

func (h *Handler) checkDelegate(w http.ResponseWriter, r *http.Request) {
	did, err := didParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	key, err := addressParam(r, "key")
	if err != nil {
		writeError(w, err)
		return
	}

	status, err := h.identity.CheckDelegate(r.Context(), did, key)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, status)
}

func (h *Handler) checkOwnership(w http.ResponseWriter, r *http.Request) {
	did, err := didParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	raw := r.URL.Query().Get("key")
	if !common.IsHexAddress(raw) {
		writeError(w, dErrors.Newf(dErrors.CodeInvalidInput, "invalid key %q", raw))
		return
	}

	owner, err := h.identity.CheckOwnership(r.Context(), did, common.HexToAddress(raw))
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]bool{"owner": owner})
}
