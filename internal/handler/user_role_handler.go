package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/authz"
	"github.com/stemsi/hris-authz/internal/model"
	"github.com/stemsi/hris-authz/internal/response"
	"github.com/stemsi/hris-authz/internal/service"
	"github.com/stemsi/hris-authz/internal/validator"
)

// UserRoleHandler assigns custom roles to users.
type UserRoleHandler struct {
	principals *service.PrincipalService
	authz      *service.AuthzService
	log        zerolog.Logger
}

// NewUserRoleHandler creates a new UserRoleHandler.
func NewUserRoleHandler(principals *service.PrincipalService, authzService *service.AuthzService, log zerolog.Logger) *UserRoleHandler {
	return &UserRoleHandler{
		principals: principals,
		authz:      authzService,
		log:        log.With().Str("component", "user_role_handler").Logger(),
	}
}

// UserPermissionsResponse explains how a user's effective set was assembled.
type UserPermissionsResponse struct {
	UserID       int      `json:"user_id"`
	Role         string   `json:"role"`
	CustomRoleID *int     `json:"custom_role_id"`
	Active       bool     `json:"active"`
	Permissions  []string `json:"permissions"`
	SourceRoleID int      `json:"source_role_id,omitempty"`
	Floor        []string `json:"floor"`
	Bindings     []string `json:"bindings"`
	Legacy       []string `json:"legacy"`
	LegacyError  string   `json:"legacy_error,omitempty"`
	Wildcard     bool     `json:"wildcard"`
}

// GetUser godoc
// GET /api/v1/admin/users/:id
func (h *UserRoleHandler) GetUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	user, err := h.principals.GetUser(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// GetUserPermissions godoc
// GET /api/v1/admin/users/:id/permissions
func (h *UserRoleHandler) GetUserPermissions(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	p, res, err := h.authz.Explain(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	out := UserPermissionsResponse{
		UserID:       p.UserID,
		Role:         p.LegacyRole,
		CustomRoleID: p.CustomRoleID,
		Active:       p.Active,
		Permissions:  res.Set.Sorted(),
		SourceRoleID: res.RoleID,
		Floor:        res.Floor,
		Bindings:     res.Bindings,
		Legacy:       res.LegacyJSON,
		Wildcard:     res.Wildcard,
	}
	if res.LegacyErr != nil {
		out.LegacyError = res.LegacyErr.Error()
	}
	response.Success(c, http.StatusOK, out)
}

// AssignRole godoc
// PUT /api/v1/admin/users/:id/role
// A null role_id clears the custom role; the enum is never changed here.
func (h *UserRoleHandler) AssignRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.AssignRoleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.principals.AssignCustomRole(c.Request.Context(), id, req.RoleID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

func (h *UserRoleHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrRoleNotFound):
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrValidation, map[string]string{
			"role_id": "role does not exist",
		})
	case errors.Is(err, authz.ErrInvalidPrincipalState):
		response.Fail(c, http.StatusConflict, response.ErrInvalidPrincipalState)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("User role request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
