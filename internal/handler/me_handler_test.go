package handler

import (
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/hris-authz/internal/model"
	"github.com/stemsi/hris-authz/internal/response"
)

func seedMenu(s *fakeStore) {
	admin := 2
	s.menu = []model.MenuItem{
		{ID: 1, Name: "Dashboard", Path: "/dashboard", Section: "main", SortOrder: 1, IsActive: true, Permission: "dashboard.view"},
		{ID: 2, Name: "Administration", Section: "administration", SortOrder: 2, IsActive: true},
		{ID: 3, ParentID: &admin, Name: "Roles", Path: "/admin/roles", SortOrder: 1, IsActive: true, Permission: "roles.view"},
	}
}

func meRouter(userID int) *harness {
	h := newHarness()
	h.store.users[1] = &model.User{ID: 1, Role: "employee", IsActive: true}
	h.store.users[2] = &model.User{ID: 2, Role: "super_admin", IsActive: true}
	seedMenu(h.store)

	mh := NewMeHandler(h.authz, zerolog.Nop())
	me := h.router.Group("/me", h.asUser(userID))
	me.GET("/permissions", mh.Permissions)
	me.GET("/menu", mh.Menu)
	me.GET("/authorize", mh.Authorize)
	return h
}

func TestMePermissions(t *testing.T) {
	h := meRouter(1)
	w := h.do(http.MethodGet, "/me/permissions", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body PermissionsResponse
	decode(t, w, &body)
	assert.Equal(t, 1, body.UserID)
	assert.Equal(t, "employee", body.Role)
	assert.False(t, body.SuperAdmin)
	assert.Contains(t, body.Permissions, "leaves.request")
	assert.NotContains(t, body.Permissions, "roles.view")

	h = meRouter(2)
	w = h.do(http.MethodGet, "/me/permissions", "")
	decode(t, w, &body)
	assert.True(t, body.SuperAdmin)
	assert.Contains(t, body.Permissions, "*")
}

func TestMeAuthorize(t *testing.T) {
	h := meRouter(1)

	w := h.do(http.MethodGet, "/me/authorize?permission=leaves.request", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body AuthorizeResponse
	decode(t, w, &body)
	assert.True(t, body.Allowed)

	w = h.do(http.MethodGet, "/me/authorize?permission=payroll.manage", "")
	decode(t, w, &body)
	assert.False(t, body.Allowed)
	assert.Equal(t, "payroll.manage", body.Missing)

	w = h.do(http.MethodGet, "/me/authorize", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, response.ErrValidation, env.Error.Code)
	assert.Contains(t, env.Error.Fields, "permission")
}

func TestMeAuthorizeChecksNameVerbatim(t *testing.T) {
	h := meRouter(1)

	w := h.do(http.MethodGet, "/me/authorize?permission=%20leaves.request", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body AuthorizeResponse
	decode(t, w, &body)
	assert.False(t, body.Allowed)
	assert.Equal(t, " leaves.request", body.Missing)

	w = h.do(http.MethodGet, "/me/authorize?permission=%20%20", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMeMenu(t *testing.T) {
	h := meRouter(1)
	w := h.do(http.MethodGet, "/me/menu", "")
	require.Equal(t, http.StatusOK, w.Code)

	var sections []model.MenuSection
	decode(t, w, &sections)
	require.Len(t, sections, 1)
	assert.Equal(t, "main", sections[0].Key)

	h = meRouter(2)
	w = h.do(http.MethodGet, "/me/menu", "")
	decode(t, w, &sections)
	require.Len(t, sections, 2)
	assert.Equal(t, "administration", sections[1].Key)
	require.Len(t, sections[1].Items, 1)
	assert.Equal(t, "Roles", sections[1].Items[0].Children[0].Name)
}

func TestMeWithoutResolution(t *testing.T) {
	h := newHarness()
	mh := NewMeHandler(h.authz, zerolog.Nop())
	h.router.GET("/me/permissions", mh.Permissions)

	w := h.do(http.MethodGet, "/me/permissions", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
