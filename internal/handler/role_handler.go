package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/model"
	"github.com/stemsi/hris-authz/internal/response"
	"github.com/stemsi/hris-authz/internal/service"
	"github.com/stemsi/hris-authz/internal/validator"
)

// RoleHandler administers roles and their permission bindings.
type RoleHandler struct {
	service *service.RoleService
	log     zerolog.Logger
}

// NewRoleHandler creates a new RoleHandler.
func NewRoleHandler(service *service.RoleService, log zerolog.Logger) *RoleHandler {
	return &RoleHandler{
		service: service,
		log:     log.With().Str("component", "role_handler").Logger(),
	}
}

// SetBindingsRequest replaces only the bindings of a role.
type SetBindingsRequest struct {
	Permissions []string `json:"permissions" binding:"required,dive,required,max=100,permission"`
}

// ListRoles gets all roles with their bindings and legacy JSON mirror.
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.service.ListRoles(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, roles)
}

// GetRole gets a role and its permissions by ID.
func (h *RoleHandler) GetRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	role, err := h.service.GetRole(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// CreateRole creates a custom role with the given permissions.
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req model.CreateRoleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	role, err := h.service.CreateRole(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, role)
}

// UpdateRole replaces a role's fields and bindings.
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateRoleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	role, err := h.service.UpdateRole(c.Request.Context(), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// SetBindings replaces the permission bindings of a role.
func (h *RoleHandler) SetBindings(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req SetBindingsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	role, err := h.service.SetBindings(c.Request.Context(), id, req.Permissions)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// DeleteRole deletes a custom role.
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteRole(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Role deleted successfully"})
}

// Drift reports roles whose bindings and legacy JSON disagree.
func (h *RoleHandler) Drift(c *gin.Context) {
	report, err := h.service.DriftReport(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

func (h *RoleHandler) fail(c *gin.Context, err error) {
	var (
		unknown *service.UnknownPermissionsError
		system  *service.SystemRoleError
	)
	switch {
	case errors.As(err, &unknown):
		response.FailWithFields(c, http.StatusUnprocessableEntity, response.ErrUnknownPermission, map[string]string{
			"permissions": strings.Join(unknown.Names, ", "),
		})
	case errors.As(err, &system):
		fields := map[string]string{"reason": system.Reason}
		if len(system.Names) > 0 {
			fields["permissions"] = strings.Join(system.Names, ", ")
		}
		response.FailWithFields(c, http.StatusForbidden, response.ErrSystemRoleReadOnly, fields)
	case errors.Is(err, service.ErrRoleNameRequired):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"name": "name is a required field",
		})
	case errors.Is(err, service.ErrRoleNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrRoleNameTaken):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Role request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// paramID parses a positive integer path parameter. On failure the response
// has already been written.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
