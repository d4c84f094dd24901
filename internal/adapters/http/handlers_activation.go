package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mobilauth/activation-service/internal/application"
)

func (h *Handler) initActivation(w http.ResponseWriter, r *http.Request) {
	var req application.InitActivationRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "init_activation", err)
		return
	}

	res, err := h.service.InitActivation(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "init_activation", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) prepareActivation(w http.ResponseWriter, r *http.Request) {
	var req application.PrepareActivationRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "prepare_activation", err)
		return
	}

	res, err := h.service.PrepareActivation(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "prepare_activation", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) commitActivation(w http.ResponseWriter, r *http.Request) {
	var req application.CommitActivationRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "commit_activation", err)
		return
	}

	res, err := h.service.CommitActivation(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "commit_activation", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) activationStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetActivationStatus(r.Context(), chi.URLParam(r, "activation_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "activation_status", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) listActivations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	var applicationID *uuid.UUID
	if raw := r.URL.Query().Get("application_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeValidationError(r.Context(), w, "list_activations", errors.New("invalid application_id"))
			return
		}
		applicationID = &id
	}

	items, err := h.service.ListActivationsForUser(r.Context(), userID, applicationID)
	if err != nil {
		writeMappedError(r.Context(), w, "list_activations", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"activations": items})
}

func (h *Handler) blockActivation(w http.ResponseWriter, r *http.Request) {
	var req application.BlockActivationRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeValidationError(r.Context(), w, "block_activation", err)
			return
		}
	}
	req.ActivationID = chi.URLParam(r, "activation_id")

	res, err := h.service.BlockActivation(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "block_activation", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) unblockActivation(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.UnblockActivation(r.Context(), chi.URLParam(r, "activation_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "unblock_activation", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) removeActivation(w http.ResponseWriter, r *http.Request) {
	revokeCodes := true
	if raw := r.URL.Query().Get("revoke_recovery_codes"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeValidationError(r.Context(), w, "remove_activation", errors.New("invalid revoke_recovery_codes"))
			return
		}
		revokeCodes = parsed
	}
	res, err := h.service.RemoveActivation(r.Context(), chi.URLParam(r, "activation_id"), revokeCodes)
	if err != nil {
		writeMappedError(r.Context(), w, "remove_activation", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
