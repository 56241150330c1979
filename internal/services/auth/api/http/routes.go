package http

import (
	"github.com/go-chi/chi/v5"
)

// Routes builds the ceremony router.
//
// Callers mount it under their own prefix, typically /api/v1/passkeys.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/registration/begin", h.BeginRegistration)
	r.Post("/registration/finish", h.FinishRegistration)
	r.Post("/login/begin", h.BeginLogin)
	r.Post("/login/finish", h.FinishLogin)
	r.Get("/members/{memberID}/credentials", h.ListCredentials)
	r.Patch("/members/{memberID}/credentials/{credentialID}", h.RenameCredential)
	r.Delete("/members/{memberID}/credentials/{credentialID}", h.RemoveCredential)
	return r
}
