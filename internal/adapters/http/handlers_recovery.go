package http

import (
	"net/http"

	"github.com/mobilauth/activation-service/internal/application"
)

func (h *Handler) createRecoveryCode(w http.ResponseWriter, r *http.Request) {
	var req application.CreateRecoveryCodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_recovery_code", err)
		return
	}

	res, err := h.service.CreateRecoveryCode(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_recovery_code", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) recoveryActivation(w http.ResponseWriter, r *http.Request) {
	var req application.RecoveryActivationRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "recovery_activation", err)
		return
	}

	res, err := h.service.CreateActivationUsingRecoveryCode(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "recovery_activation", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) confirmRecoveryCode(w http.ResponseWriter, r *http.Request) {
	var req application.ConfirmRecoveryCodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "confirm_recovery_code", err)
		return
	}

	res, err := h.service.ConfirmRecoveryCode(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "confirm_recovery_code", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) revokeRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	var req application.RevokeRecoveryCodesRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "revoke_recovery_codes", err)
		return
	}

	res, err := h.service.RevokeRecoveryCodes(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "revoke_recovery_codes", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) lookupRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	var req application.LookupRecoveryCodesRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "lookup_recovery_codes", err)
		return
	}

	items, err := h.service.LookupRecoveryCodes(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "lookup_recovery_codes", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"recovery_codes": items})
}
