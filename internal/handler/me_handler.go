package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/authz"
	"github.com/stemsi/hris-authz/internal/middleware"
	"github.com/stemsi/hris-authz/internal/response"
	"github.com/stemsi/hris-authz/internal/service"
)

// MeHandler serves the authenticated principal's own permissions and menu.
type MeHandler struct {
	authz *service.AuthzService
	log   zerolog.Logger
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(authzService *service.AuthzService, log zerolog.Logger) *MeHandler {
	return &MeHandler{
		authz: authzService,
		log:   log.With().Str("component", "me_handler").Logger(),
	}
}

// PermissionsResponse is the body of GET /me/permissions.
type PermissionsResponse struct {
	UserID       int      `json:"user_id"`
	Role         string   `json:"role"`
	CustomRoleID *int     `json:"custom_role_id"`
	Permissions  []string `json:"permissions"`
	SuperAdmin   bool     `json:"super_admin"`
}

// AuthorizeResponse is the body of GET /me/authorize.
type AuthorizeResponse struct {
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
	Missing    string `json:"missing,omitempty"`
}

// Permissions godoc
// GET /api/v1/me/permissions
func (h *MeHandler) Permissions(c *gin.Context) {
	eff := middleware.GetEffective(c)
	if eff == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	response.Success(c, http.StatusOK, PermissionsResponse{
		UserID:       eff.Principal.UserID,
		Role:         eff.Principal.LegacyRole,
		CustomRoleID: eff.Principal.CustomRoleID,
		Permissions:  eff.Set.Sorted(),
		SuperAdmin:   eff.Set.HasWildcard(),
	})
}

// Menu godoc
// GET /api/v1/me/menu
// Returns the active menu pruned to what the principal may see, by section.
func (h *MeHandler) Menu(c *gin.Context) {
	eff := middleware.GetEffective(c)
	if eff == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sections, err := h.authz.Menu(c.Request.Context(), eff.Set)
	if err != nil {
		h.log.Error().Err(err).Int("user_id", eff.Principal.UserID).Msg("Failed to build menu")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, sections)
}

// Authorize godoc
// GET /api/v1/me/authorize?permission=expenses.approve
// Previews the guard decision for one permission without performing anything.
func (h *MeHandler) Authorize(c *gin.Context) {
	eff := middleware.GetEffective(c)
	if eff == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	// The name is checked verbatim, exactly as the guard would see it.
	perm := c.Query("permission")
	if strings.TrimSpace(perm) == "" {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"permission": "permission is a required query parameter",
		})
		return
	}

	d := authz.Authorize(eff.Set, perm)
	h.authz.RecordDecision(d)
	response.Success(c, http.StatusOK, AuthorizeResponse{
		Permission: perm,
		Allowed:    d.Allowed,
		Missing:    d.Missing,
	})
}
