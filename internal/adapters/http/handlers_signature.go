package http

import (
	"net/http"

	"github.com/mobilauth/activation-service/internal/application"
)

func (h *Handler) verifySignature(w http.ResponseWriter, r *http.Request) {
	var req application.VerifySignatureRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "verify_signature", err)
		return
	}

	res, err := h.service.VerifySignature(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "verify_signature", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) vaultUnlock(w http.ResponseWriter, r *http.Request) {
	var req application.VaultUnlockRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "vault_unlock", err)
		return
	}

	res, err := h.service.VaultUnlock(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "vault_unlock", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) createToken(w http.ResponseWriter, r *http.Request) {
	var req application.CreateTokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_token", err)
		return
	}

	res, err := h.service.CreateToken(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_token", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) validateToken(w http.ResponseWriter, r *http.Request) {
	var req application.ValidateTokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "validate_token", err)
		return
	}

	res, err := h.service.ValidateToken(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "validate_token", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) removeToken(w http.ResponseWriter, r *http.Request) {
	var req application.RemoveTokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "remove_token", err)
		return
	}

	if err := h.service.RemoveToken(r.Context(), req); err != nil {
		writeMappedError(r.Context(), w, "remove_token", err)
		return
	}
	writeMessage(w, http.StatusOK, "Token removed successfully")
}
