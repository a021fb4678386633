package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/buxmate/buxmate/internal/application/contact"
	"github.com/buxmate/buxmate/internal/pkg/validate"
	"github.com/buxmate/buxmate/internal/transport/http/middleware"
)

// ContactHandler handles the OTP-verified contact change and confirmation
// endpoints.
type ContactHandler struct {
	svc contact.Service
}

func NewContactHandler(svc contact.Service) *ContactHandler { return &ContactHandler{svc: svc} }

// EmailChangeAction dispatches /contact/email/{action}: request, verify, resend.
func (h *ContactHandler) EmailChangeAction(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	switch chi.URLParam(r, "action") {
	case "request":
		var body struct {
			NewEmail string `json:"new_email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !validate.Email(body.NewEmail) {
			writeError(w, http.StatusBadRequest, "invalid email address")
			return
		}
		ticket, err := h.svc.RequestEmailChange(r.Context(), claims.UserID, body.NewEmail, clientInfo(r))
		if err != nil {
			httpError(w, err)
			return
		}
		writeData(w, http.StatusOK, ticket)
	case "verify":
		var body struct {
			NewEmail string `json:"new_email"`
			OTP      string `json:"otp"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.svc.VerifyEmailChange(r.Context(), claims.UserID, body.NewEmail, body.OTP, clientInfo(r)); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "email updated"})
	case "resend":
		ticket, err := h.svc.ResendEmailChangeOTP(r.Context(), claims.UserID, clientInfo(r))
		if err != nil {
			httpError(w, err)
			return
		}
		writeData(w, http.StatusOK, ticket)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

// PhoneChangeAction dispatches /contact/phone/{action}: request, verify, resend.
func (h *ContactHandler) PhoneChangeAction(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	switch chi.URLParam(r, "action") {
	case "request":
		var body struct {
			NewPhone string `json:"new_phone"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ticket, err := h.svc.RequestPhoneChange(r.Context(), claims.UserID, body.NewPhone, clientInfo(r))
		if err != nil {
			httpError(w, err)
			return
		}
		writeData(w, http.StatusOK, ticket)
	case "verify":
		var body struct {
			NewPhone string `json:"new_phone"`
			OTP      string `json:"otp"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.svc.VerifyPhoneChange(r.Context(), claims.UserID, body.NewPhone, body.OTP, clientInfo(r)); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "phone number updated"})
	case "resend":
		ticket, err := h.svc.ResendPhoneChangeOTP(r.Context(), claims.UserID, clientInfo(r))
		if err != nil {
			httpError(w, err)
			return
		}
		writeData(w, http.StatusOK, ticket)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

// ConfirmEmailAction dispatches /confirm-email/{action}: request, validate.
func (h *ContactHandler) ConfirmEmailAction(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	switch chi.URLParam(r, "action") {
	case "request":
		if err := h.svc.RequestEmailConfirmation(r.Context(), claims.UserID); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "confirmation email sent"})
	case "validate":
		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.svc.ConfirmEmail(r.Context(), claims.UserID, body.Token); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "email confirmed"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

// ConfirmPhoneAction dispatches /confirm-phone/{action}: request, validate.
func (h *ContactHandler) ConfirmPhoneAction(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	switch chi.URLParam(r, "action") {
	case "request":
		if err := h.svc.RequestPhoneConfirmation(r.Context(), claims.UserID); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "confirmation SMS sent"})
	case "validate":
		var body struct {
			OTP string `json:"otp"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.svc.ConfirmPhone(r.Context(), claims.UserID, body.OTP); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "phone confirmed"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
