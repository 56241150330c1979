package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/mossvale/menagerie/internal/platform/errors"
	"github.com/mossvale/menagerie/internal/services/auth/storage"
)

// ListCredentials handles GET /members/{memberID}/credentials.
//
// Public keys and counters stay internal; only management metadata is
// returned.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")

	credentials, err := h.ceremonies.ListCredentials(r.Context(), memberID)
	if err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}

	summaries := make([]CredentialSummary, 0, len(credentials))
	for _, record := range credentials {
		summaries = append(summaries, credentialSummary(record))
	}
	h.writeJSON(w, http.StatusOK, CredentialListResponse{Credentials: summaries})
}

// RenameCredential handles PATCH /members/{memberID}/credentials/{credentialID}.
func (h *Handler) RenameCredential(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")
	credentialID := chi.URLParam(r, "credentialID")

	var req RenameCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, string(apperrors.CodeUnknown), "invalid request body")
		return
	}

	if err := h.ceremonies.RenameCredential(r.Context(), memberID, credentialID, req.Label); err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveCredential handles DELETE /members/{memberID}/credentials/{credentialID}.
func (h *Handler) RemoveCredential(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")
	credentialID := chi.URLParam(r, "credentialID")

	if err := h.ceremonies.RemoveCredential(r.Context(), memberID, credentialID); err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func credentialSummary(record storage.Credential) CredentialSummary {
	summary := CredentialSummary{
		CredentialID: record.CredentialID,
		Label:        record.Label,
		Transports:   record.Transports,
		CreatedAt:    record.CreatedAt,
	}
	if record.LastUsedAt != nil {
		lastUsed := *record.LastUsedAt
		summary.LastUsedAt = &lastUsed
	}
	return summary
}
