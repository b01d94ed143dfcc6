package api

import (
	"net/http"

	"github.com/kaushalacts/research-ai-platform/internal/api/shared"
	"github.com/kaushalacts/research-ai-platform/internal/store"
)

// ServiceHandler exposes the service registrations.
type ServiceHandler struct {
	services store.ServiceStore
}

// NewServiceHandler creates a ServiceHandler.
func NewServiceHandler(services store.ServiceStore) *ServiceHandler {
	return &ServiceHandler{services: services}
}

// ListServices handles GET /api/services.
func (h *ServiceHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	regs, err := h.services.List(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list services")
		return
	}
	resp := make([]ServiceResponse, 0, len(regs))
	for _, reg := range regs {
		resp = append(resp, serviceToResponse(reg))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
