package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/buxmate/buxmate/internal/application/invite"
	"github.com/buxmate/buxmate/internal/domain"
	"github.com/buxmate/buxmate/internal/transport/http/middleware"
)

// InvitationHandler handles guest invitation endpoints.
type InvitationHandler struct {
	svc invite.Service
}

func NewInvitationHandler(svc invite.Service) *InvitationHandler {
	return &InvitationHandler{svc: svc}
}

// AddGuests invites the contacts in the submitted free-text blocks to the event.
func (h *InvitationHandler) AddGuests(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.AddGuestsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.AddGuests(r.Context(), claims.UserID, chi.URLParam(r, "id"), &req, clientInfo(r))
	if err != nil {
		httpError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *InvitationHandler) ListGuests(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	guests, err := h.svc.ListGuests(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, guests)
}

// ListMine returns the invitations addressed to the authenticated account.
func (h *InvitationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	invitations, err := h.svc.ListForRecipient(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invitations)
}

func (h *InvitationHandler) Respond(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body struct {
		Accept *bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Accept == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.Respond(r.Context(), claims.UserID, chi.URLParam(r, "id"), *body.Accept, clientInfo(r)); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "response recorded"})
}
