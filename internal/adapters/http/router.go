package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mobilauth/activation-service/internal/application"
	"github.com/mobilauth/activation-service/internal/ports"
)

// Handler is the HTTP adapter entrypoint for activation use-cases.
// Keeping only the application dependency here preserves clean adapter
// boundaries; the token signer exists solely for the admin middleware.
type Handler struct {
	service     *application.Service
	adminTokens ports.AdminTokenSigner
}

// NewHandler constructs an HTTP handler bound to the application service.
func NewHandler(service *application.Service, adminTokens ports.AdminTokenSigner) *Handler {
	return &Handler{service: service, adminTokens: adminTokens}
}

// NewRouter registers HTTP routes and the middleware stack. Device-facing
// endpoints stay public: the protocol itself authenticates them (activation
// code plus application signature, or recovery code plus PUK). Everything an
// integrator backend calls sits behind bearer auth.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/activation/v1", func(r chi.Router) {
		r.Post("/activation/prepare", handler.prepareActivation)
		r.Post("/activation/recovery", handler.recoveryActivation)

		r.Group(func(r chi.Router) {
			r.Use(handler.adminAuthMiddleware)
			r.Post("/activation/init", handler.initActivation)
			r.Post("/activation/commit", handler.commitActivation)
			r.Get("/activation", handler.listActivations)
			r.Get("/activation/{activation_id}", handler.activationStatus)
			r.Post("/activation/{activation_id}/block", handler.blockActivation)
			r.Post("/activation/{activation_id}/unblock", handler.unblockActivation)
			r.Delete("/activation/{activation_id}", handler.removeActivation)

			r.Post("/signature/verify", handler.verifySignature)
			r.Post("/vault/unlock", handler.vaultUnlock)

			r.Post("/token/create", handler.createToken)
			r.Post("/token/validate", handler.validateToken)
			r.Post("/token/remove", handler.removeToken)

			r.Post("/recovery/create", handler.createRecoveryCode)
			r.Post("/recovery/confirm", handler.confirmRecoveryCode)
			r.Post("/recovery/revoke", handler.revokeRecoveryCodes)
			r.Post("/recovery/lookup", handler.lookupRecoveryCodes)

			r.Post("/application", handler.createApplication)
			r.Get("/application", handler.listApplications)
			r.Get("/application/{application_id}", handler.applicationDetail)
			r.Post("/application/{application_id}/version", handler.createApplicationVersion)
			r.Post("/application/version/{version_id}/support", handler.supportApplicationVersion)
			r.Post("/application/version/{version_id}/unsupport", handler.unsupportApplicationVersion)
			r.Post("/application/{application_id}/callback", handler.createCallback)
			r.Get("/application/{application_id}/callback", handler.listCallbacks)
			r.Delete("/application/callback/{callback_id}", handler.deleteCallback)
		})
	})

	return r
}
