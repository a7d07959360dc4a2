package handlers

import (
	"github.com/gin-gonic/gin"

	"stockflow/internal/domain/location"
	"stockflow/internal/infrastructure/http/v1/dto"
)

// LocationHandler serves the location registry.
type LocationHandler struct {
	*BaseHandler
	service *location.Service
}

// NewLocationHandler creates a new location handler.
func NewLocationHandler(base *BaseHandler, service *location.Service) *LocationHandler {
	return &LocationHandler{BaseHandler: base, service: service}
}

// List handles GET /locations
func (h *LocationHandler) List(c *gin.Context) {
	locations, err := h.service.List(c.Request.Context(), h.GetTenantID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(locations))
}

// Create handles POST /locations
func (h *LocationHandler) Create(c *gin.Context) {
	var req dto.CreateLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	loc, err := h.service.Create(c.Request.Context(), h.GetTenantID(c), req.Name, location.Type(req.Type))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, loc)
}

// Get handles GET /locations/:id
func (h *LocationHandler) Get(c *gin.Context) {
	locationID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	loc, err := h.service.Get(c.Request.Context(), h.GetTenantID(c), locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, loc)
}
