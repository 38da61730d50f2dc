package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/response"
	"github.com/stemsi/hris-authz/internal/service"
)

// PermissionHandler serves the permission catalog.
type PermissionHandler struct {
	catalog *service.CatalogService
	log     zerolog.Logger
}

// NewPermissionHandler creates a new PermissionHandler.
func NewPermissionHandler(catalog *service.CatalogService, log zerolog.Logger) *PermissionHandler {
	return &PermissionHandler{
		catalog: catalog,
		log:     log.With().Str("component", "permission_handler").Logger(),
	}
}

// ListPermissions godoc
// GET /api/v1/admin/permissions?group_by=group
func (h *PermissionHandler) ListPermissions(c *gin.Context) {
	ctx := c.Request.Context()

	switch c.Query("group_by") {
	case "":
		perms, err := h.catalog.List(ctx)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to list permissions")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		response.Success(c, http.StatusOK, perms)
	case "group":
		groups, err := h.catalog.Grouped(ctx)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to group permissions")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		response.Success(c, http.StatusOK, groups)
	default:
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"group_by": "group_by must be empty or group",
		})
	}
}
