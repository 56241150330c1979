package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-webauthn/webauthn/protocol"
	apperrors "github.com/mossvale/menagerie/internal/platform/errors"
	"github.com/mossvale/menagerie/internal/services/auth/session"
	"github.com/mossvale/menagerie/internal/services/auth/storage"
)

// ceremonies is the slice of the passkey service the handlers use.
type ceremonies interface {
	BeginRegistration(ctx context.Context, memberID string, displayLabel string) (*protocol.CredentialCreation, error)
	CompleteRegistration(ctx context.Context, memberID string, response []byte, deviceLabel string) (string, error)
	BeginAuthentication(ctx context.Context) (*protocol.CredentialAssertion, error)
	CompleteAuthentication(ctx context.Context, response []byte) (string, error)
	ListCredentials(ctx context.Context, memberID string) ([]storage.Credential, error)
	RenameCredential(ctx context.Context, memberID string, credentialID string, label string) error
	RemoveCredential(ctx context.Context, memberID string, credentialID string) error
}

// sessionIssuer mints tokens once a ceremony proves a member.
type sessionIssuer interface {
	Issue(memberID string) (string, session.Claims, error)
}

// Handler exposes the passkey ceremonies over HTTP.
type Handler struct {
	ceremonies ceremonies
	sessions   sessionIssuer
	logger     *slog.Logger
}

// NewHandler builds the ceremony HTTP handler.
func NewHandler(ceremonies ceremonies, sessions sessionIssuer) *Handler {
	return &Handler{
		ceremonies: ceremonies,
		sessions:   sessions,
		logger:     slog.Default(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	h.logger = logger
	return h
}

// BeginRegistration handles POST /registration/begin.
//
// Responds with WebAuthn creation options; the embedded challenge is the
// only ceremony state a client needs to echo back.
func (h *Handler) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	var req BeginRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, string(apperrors.CodeUnknown), "invalid request body")
		return
	}
	if req.MemberID == "" {
		h.writeError(w, http.StatusBadRequest, string(apperrors.CodeMemberNotFound), "member_id is required")
		return
	}

	creation, err := h.ceremonies.BeginRegistration(r.Context(), req.MemberID, req.DisplayName)
	if err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, creation)
}

// FinishRegistration handles POST /registration/finish.
func (h *Handler) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	var req FinishRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, string(apperrors.CodeUnknown), "invalid request body")
		return
	}
	if req.MemberID == "" || len(req.Response) == 0 {
		h.writeError(w, http.StatusBadRequest, string(apperrors.CodeUnknown), "member_id and response are required")
		return
	}

	credentialID, err := h.ceremonies.CompleteRegistration(r.Context(), req.MemberID, req.Response, req.Label)
	if err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, FinishRegistrationResponse{CredentialID: credentialID})
}

// BeginLogin handles POST /login/begin.
//
// The body is ignored: login is usernameless, so there is nothing for the
// caller to declare up front.
func (h *Handler) BeginLogin(w http.ResponseWriter, r *http.Request) {
	assertion, err := h.ceremonies.BeginAuthentication(r.Context())
	if err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, assertion)
}

// FinishLogin handles POST /login/finish.
//
// A verified assertion resolves the member and is exchanged for a signed
// session token in the same response.
func (h *Handler) FinishLogin(w http.ResponseWriter, r *http.Request) {
	var req FinishLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, string(apperrors.CodeUnknown), "invalid request body")
		return
	}
	if len(req.Response) == 0 {
		h.writeError(w, http.StatusBadRequest, string(apperrors.CodeUnknown), "response is required")
		return
	}

	memberID, err := h.ceremonies.CompleteAuthentication(r.Context(), req.Response)
	if err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}

	token, claims, err := h.sessions.Issue(memberID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "issue session token", "error", err)
		h.writeError(w, http.StatusInternalServerError, string(apperrors.CodeUnknown), "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, SessionResponse{
		Token:     token,
		MemberID:  claims.MemberID,
		ExpiresAt: claims.ExpiresAt,
	})
}

// writeDomainError maps a ceremony error onto the wire.
//
// Domain errors already carry caller-safe messages; anything else is
// reported as an opaque internal error. The cause chain stays in logs.
func (h *Handler) writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		h.logger.ErrorContext(ctx, "ceremony failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, string(apperrors.CodeUnknown), "internal server error")
		return
	}

	status := domainErr.Code.HTTPStatus()
	message := domainErr.Message
	if domainErr.Code == apperrors.CodeStorage {
		message = "service unavailable"
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "ceremony failed", "code", string(domainErr.Code), "error", err)
	} else {
		h.logger.InfoContext(ctx, "ceremony rejected", "code", string(domainErr.Code), "error", err)
	}
	h.writeError(w, status, string(domainErr.Code), message)
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("encode response", "error", err, "status", status)
	}
}

// writeError writes the uniform error payload.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}
