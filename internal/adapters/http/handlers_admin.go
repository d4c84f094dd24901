package http

import (
	"net/http"

	"github.com/mobilauth/activation-service/internal/application"
)

func (h *Handler) createApplication(w http.ResponseWriter, r *http.Request) {
	var req application.CreateApplicationRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_application", err)
		return
	}

	res, err := h.service.CreateApplication(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_application", err)
		return
	}
	if claims, ok := adminClaimsFromContext(r.Context()); ok {
		httpLogger().InfoContext(r.Context(), "application created",
			"operation", "create_application",
			"outcome", "success",
			"application_id", res.ApplicationID,
			"subject", claims.Subject,
			"request_id", requestIDFromContext(r.Context()),
		)
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListApplications(r.Context())
	if err != nil {
		writeMappedError(r.Context(), w, "list_applications", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"applications": items})
}

func (h *Handler) applicationDetail(w http.ResponseWriter, r *http.Request) {
	applicationID, err := parseUUIDParam(r, "application_id")
	if err != nil {
		writeValidationError(r.Context(), w, "application_detail", err)
		return
	}

	res, err := h.service.GetApplicationDetail(r.Context(), applicationID)
	if err != nil {
		writeMappedError(r.Context(), w, "application_detail", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) createApplicationVersion(w http.ResponseWriter, r *http.Request) {
	applicationID, err := parseUUIDParam(r, "application_id")
	if err != nil {
		writeValidationError(r.Context(), w, "create_application_version", err)
		return
	}
	var req application.CreateApplicationVersionRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_application_version", err)
		return
	}
	req.ApplicationID = applicationID

	res, err := h.service.CreateApplicationVersion(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_application_version", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) supportApplicationVersion(w http.ResponseWriter, r *http.Request) {
	h.setVersionSupported(w, r, true, "support_application_version")
}

func (h *Handler) unsupportApplicationVersion(w http.ResponseWriter, r *http.Request) {
	h.setVersionSupported(w, r, false, "unsupport_application_version")
}

func (h *Handler) setVersionSupported(w http.ResponseWriter, r *http.Request, supported bool, operation string) {
	versionID, err := parseUUIDParam(r, "version_id")
	if err != nil {
		writeValidationError(r.Context(), w, operation, err)
		return
	}

	if err := h.service.SetVersionSupported(r.Context(), versionID, supported); err != nil {
		writeMappedError(r.Context(), w, operation, err)
		return
	}
	writeMessage(w, http.StatusOK, "Application version updated successfully")
}

func (h *Handler) createCallback(w http.ResponseWriter, r *http.Request) {
	applicationID, err := parseUUIDParam(r, "application_id")
	if err != nil {
		writeValidationError(r.Context(), w, "create_callback", err)
		return
	}
	var req application.CreateCallbackRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_callback", err)
		return
	}
	req.ApplicationID = applicationID

	res, err := h.service.CreateCallback(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_callback", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) listCallbacks(w http.ResponseWriter, r *http.Request) {
	applicationID, err := parseUUIDParam(r, "application_id")
	if err != nil {
		writeValidationError(r.Context(), w, "list_callbacks", err)
		return
	}

	items, err := h.service.ListCallbacks(r.Context(), applicationID)
	if err != nil {
		writeMappedError(r.Context(), w, "list_callbacks", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"callbacks": items})
}

func (h *Handler) deleteCallback(w http.ResponseWriter, r *http.Request) {
	callbackID, err := parseUUIDParam(r, "callback_id")
	if err != nil {
		writeValidationError(r.Context(), w, "delete_callback", err)
		return
	}

	if err := h.service.DeleteCallback(r.Context(), callbackID); err != nil {
		writeMappedError(r.Context(), w, "delete_callback", err)
		return
	}
	writeMessage(w, http.StatusOK, "Callback removed successfully")
}
