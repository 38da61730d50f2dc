package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/hris-authz/internal/authz"
	"github.com/stemsi/hris-authz/internal/middleware"
	"github.com/stemsi/hris-authz/internal/model"
	"github.com/stemsi/hris-authz/internal/repository"
	"github.com/stemsi/hris-authz/internal/response"
	"github.com/stemsi/hris-authz/internal/service"
	"github.com/stemsi/hris-authz/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

// fakeStore backs every service with maps. Role 1 is the system role for
// the admin enum; later ids are custom.
type fakeStore struct {
	mu      sync.Mutex
	users   map[int]*model.User
	roles   map[int]*model.Role
	catalog []model.PermissionRecord
	menu    []model.MenuItem
	next    int
}

func newFakeStore() *fakeStore {
	s := &fakeStore{users: map[int]*model.User{}, roles: map[int]*model.Role{}, next: 10}
	for i, p := range model.AllPermissions {
		s.catalog = append(s.catalog, model.PermissionRecord{ID: i + 1, Name: string(p), GroupName: strings.SplitN(string(p), ".", 2)[0]})
	}
	admin := model.LegacyRoleAdmin
	sys := &model.Role{ID: 1, Name: "admin", IsSystem: true, LegacyRole: &admin}
	for _, p := range admin.FallbackPermissions() {
		sys.Bindings = append(sys.Bindings, model.RoleBinding{PermissionID: s.idOf(string(p)), PermissionName: string(p)})
	}
	s.roles[1] = sys
	return s
}

func (s *fakeStore) idOf(name string) int {
	for _, r := range s.catalog {
		if r.Name == name {
			return r.ID
		}
	}
	return 0
}

func (s *fakeStore) bind(ids []int) []model.RoleBinding {
	out := make([]model.RoleBinding, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.RoleBinding{PermissionID: id, PermissionName: s.catalog[id-1].Name})
	}
	return out
}

func (s *fakeStore) GetPrincipalByID(_ context.Context, id int) (model.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.Principal{}, repository.ErrNotFound
	}
	return u.Principal(), nil
}

func (s *fakeStore) GetByID(_ context.Context, id int) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *fakeStore) AssignCustomRole(_ context.Context, userID int, roleID *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.CustomRoleID = roleID
	return nil
}

func (s *fakeStore) GetRoleByID(_ context.Context, id int) (*model.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *r
	return &c, nil
}

func (s *fakeStore) ListRoles(context.Context) ([]*model.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Role, 0, len(s.roles))
	for _, r := range s.roles {
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) CreateRole(_ context.Context, role *model.Role, ids []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if r.Name == role.Name {
			return repository.ErrConflict
		}
	}
	s.next++
	role.ID = s.next
	c := *role
	c.Bindings = s.bind(ids)
	s.roles[c.ID] = &c
	return nil
}

func (s *fakeStore) UpdateRole(_ context.Context, role *model.Role, ids []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role.ID]; !ok {
		return repository.ErrNotFound
	}
	c := *role
	c.Bindings = s.bind(ids)
	s.roles[c.ID] = &c
	return nil
}

func (s *fakeStore) DeleteRole(_ context.Context, id int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return nil, repository.ErrNotFound
	}
	var cleared []int
	for _, u := range s.users {
		if u.CustomRoleID != nil && *u.CustomRoleID == id {
			u.CustomRoleID = nil
			cleared = append(cleared, u.ID)
		}
	}
	delete(s.roles, id)
	return cleared, nil
}

func (s *fakeStore) AddBindings(context.Context, int, []int) (int64, error) { return 0, nil }

func (s *fakeStore) UserIDsWithRole(context.Context, int) ([]int, error) { return nil, nil }

func (s *fakeStore) ListPermissions(context.Context) ([]model.PermissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PermissionRecord(nil), s.catalog...), nil
}

func (s *fakeStore) IDsByName(_ context.Context, names []string) (map[string]int, error) {
	out := make(map[string]int)
	for _, n := range names {
		if id := s.idOf(n); id != 0 {
			out[n] = id
		}
	}
	return out, nil
}

func (s *fakeStore) GetActiveMenuTree(context.Context) ([]model.MenuNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return authz.BuildMenuTree(s.menu), nil
}

// ─── Harness ─────────────────────────────────────────────────────────

type harness struct {
	store  *fakeStore
	authz  *service.AuthzService
	roles  *service.RoleService
	users  *service.PrincipalService
	router *gin.Engine
}

func newHarness() *harness {
	store := newFakeStore()
	log := zerolog.Nop()
	return &harness{
		store:  store,
		authz:  service.NewAuthzService(store, store, store, nil, nil, log),
		roles:  service.NewRoleService(store, store, nil, log),
		users:  service.NewPrincipalService(store, store, nil, log),
		router: gin.New(),
	}
}

// asUser resolves userID the way the guard does before the handler runs.
func (h *harness) asUser(userID int) gin.HandlerFunc {
	return func(c *gin.Context) {
		eff, err := h.authz.EffectivePermissions(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Set(middleware.ContextKeyEffective, eff)
		c.Next()
	}
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && env.Error == nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}
