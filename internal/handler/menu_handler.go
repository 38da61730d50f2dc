package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/authz"
	"github.com/stemsi/hris-authz/internal/response"
	"github.com/stemsi/hris-authz/internal/service"
)

// MenuHandler serves the unfiltered navigation tree to administrators.
type MenuHandler struct {
	authz *service.AuthzService
	log   zerolog.Logger
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(authzService *service.AuthzService, log zerolog.Logger) *MenuHandler {
	return &MenuHandler{
		authz: authzService,
		log:   log.With().Str("component", "menu_handler").Logger(),
	}
}

// Tree godoc
// GET /api/v1/admin/menu
func (h *MenuHandler) Tree(c *gin.Context) {
	tree, err := h.authz.MenuTree(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load menu tree")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, tree)
}

// Preview godoc
// GET /api/v1/admin/menu/preview?role=manager&role_id=3
// Renders the menu a hypothetical principal would see.
func (h *MenuHandler) Preview(c *gin.Context) {
	legacy := c.Query("role")
	if legacy == "" {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"role": "role is a required query parameter",
		})
		return
	}

	var roleID *int
	if raw := c.Query("role_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
				"role_id": "role_id must be a positive integer",
			})
			return
		}
		roleID = &id
	}

	ctx := c.Request.Context()
	res, err := h.authz.Simulate(ctx, legacy, roleID)
	if errors.Is(err, authz.ErrInvalidPrincipalState) {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"role": "role must be one of super_admin admin hr manager employee",
		})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to simulate principal")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	sections, err := h.authz.Menu(ctx, res.Set)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build menu preview")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"permissions": res.Set.Sorted(),
		"sections":    sections,
	})
}
