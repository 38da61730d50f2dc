package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/stemsi/hris-authz/internal/authz"
	"github.com/stemsi/hris-authz/internal/cache"
	"github.com/stemsi/hris-authz/internal/model"
	"github.com/stemsi/hris-authz/internal/repository"
)

// memStore is an in-memory stand-in for every repository the services use.
type memStore struct {
	mu       sync.Mutex
	users    map[int]*model.User
	roles    map[int]*model.Role
	catalog  []model.PermissionRecord
	menu     []model.MenuItem
	nextRole int

	roleLoads    atomic.Int32
	catalogLoads atomic.Int32
	principalErr error
	// roleGate, when set, runs before every GetRoleByID.
	roleGate func(ctx context.Context) error
}

// newMemStore seeds the full catalog and one system role per enum value,
// bound to that enum's fallback permissions. System role ids are 1..5 in
// model.LegacyRoles order.
func newMemStore() *memStore {
	s := &memStore{
		users:    make(map[int]*model.User),
		roles:    make(map[int]*model.Role),
		nextRole: 100,
	}
	for i, p := range model.AllPermissions {
		s.catalog = append(s.catalog, model.PermissionRecord{ID: i + 1, Name: string(p), SortOrder: (i + 1) * 10})
	}
	for i, lr := range model.LegacyRoles {
		legacy := lr
		role := &model.Role{ID: i + 1, Name: string(lr), IsSystem: true, LegacyRole: &legacy}
		for _, p := range lr.FallbackPermissions() {
			if p != model.PermissionWildcard {
				role.Bindings = append(role.Bindings, s.binding(string(p)))
			}
		}
		s.roles[role.ID] = role
	}
	return s
}

func (s *memStore) addUser(id int, legacy string, roleID *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &model.User{ID: id, Email: "u@example.com", Name: "User", Role: legacy, CustomRoleID: roleID, IsActive: true}
}

func (s *memStore) addRole(id int, legacyJSON string, bindings ...string) *model.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	role := &model.Role{ID: id, Name: "custom-" + strconv.Itoa(id)}
	if legacyJSON != "" {
		role.LegacyPermissions = json.RawMessage(legacyJSON)
	}
	for _, b := range bindings {
		role.Bindings = append(role.Bindings, s.binding(b))
	}
	s.roles[id] = role
	return role
}

func (s *memStore) binding(name string) model.RoleBinding {
	for _, r := range s.catalog {
		if r.Name == name {
			return model.RoleBinding{PermissionID: r.ID, PermissionName: name}
		}
	}
	return model.RoleBinding{PermissionName: name}
}

func (s *memStore) nameOf(id int) string {
	for _, r := range s.catalog {
		if r.ID == id {
			return r.Name
		}
	}
	return ""
}

func cloneRole(r *model.Role) *model.Role {
	c := *r
	c.Bindings = append([]model.RoleBinding(nil), r.Bindings...)
	return &c
}

// ─── PrincipalStore / UserStore ──────────────────────────────────────

func (s *memStore) GetPrincipalByID(_ context.Context, id int) (model.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principalErr != nil {
		return model.Principal{}, s.principalErr
	}
	u, ok := s.users[id]
	if !ok {
		return model.Principal{}, repository.ErrNotFound
	}
	return u.Principal(), nil
}

func (s *memStore) GetByID(_ context.Context, id int) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	if c.CustomRoleID != nil {
		if r, ok := s.roles[*c.CustomRoleID]; ok {
			c.CustomRoleName = r.Name
		}
	}
	return &c, nil
}

func (s *memStore) AssignCustomRole(_ context.Context, userID int, roleID *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.CustomRoleID = roleID
	return nil
}

// ─── RoleStore / RoleAdminStore ──────────────────────────────────────

func (s *memStore) GetRoleByID(ctx context.Context, id int) (*model.Role, error) {
	s.roleLoads.Add(1)
	if s.roleGate != nil {
		if err := s.roleGate(ctx); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRole(r), nil
}

func (s *memStore) ListRoles(context.Context) ([]*model.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, cloneRole(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) CreateRole(_ context.Context, role *model.Role, ids []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(role.Name, 0) {
		return repository.ErrConflict
	}
	s.nextRole++
	role.ID = s.nextRole
	role.Bindings = nil
	for _, id := range ids {
		role.Bindings = append(role.Bindings, model.RoleBinding{PermissionID: id, PermissionName: s.nameOf(id)})
	}
	s.roles[role.ID] = cloneRole(role)
	return nil
}

func (s *memStore) UpdateRole(_ context.Context, role *model.Role, ids []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role.ID]; !ok {
		return repository.ErrNotFound
	}
	if s.nameTaken(role.Name, role.ID) {
		return repository.ErrConflict
	}
	updated := cloneRole(role)
	updated.Bindings = nil
	for _, id := range ids {
		updated.Bindings = append(updated.Bindings, model.RoleBinding{PermissionID: id, PermissionName: s.nameOf(id)})
	}
	s.roles[role.ID] = updated
	return nil
}

func (s *memStore) DeleteRole(_ context.Context, id int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok || r.IsSystem {
		return nil, repository.ErrNotFound
	}
	var cleared []int
	for _, u := range s.users {
		if u.CustomRoleID != nil && *u.CustomRoleID == id {
			u.CustomRoleID = nil
			cleared = append(cleared, u.ID)
		}
	}
	sort.Ints(cleared)
	delete(s.roles, id)
	return cleared, nil
}

func (s *memStore) AddBindings(_ context.Context, roleID int, ids []int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[roleID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	have := make(map[int]bool, len(r.Bindings))
	for _, b := range r.Bindings {
		have[b.PermissionID] = true
	}
	var added int64
	for _, id := range ids {
		if !have[id] {
			r.Bindings = append(r.Bindings, model.RoleBinding{PermissionID: id, PermissionName: s.nameOf(id)})
			have[id] = true
			added++
		}
	}
	return added, nil
}

func (s *memStore) UserIDsWithRole(_ context.Context, roleID int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int
	for _, u := range s.users {
		if u.CustomRoleID != nil && *u.CustomRoleID == roleID {
			ids = append(ids, u.ID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *memStore) nameTaken(name string, except int) bool {
	for id, r := range s.roles {
		if id != except && r.Name == name {
			return true
		}
	}
	return false
}

// ─── CatalogStore ────────────────────────────────────────────────────

func (s *memStore) ListPermissions(context.Context) ([]model.PermissionRecord, error) {
	s.catalogLoads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PermissionRecord{}, s.catalog...), nil
}

func (s *memStore) IDsByName(_ context.Context, names []string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := authz.NewPermissionSet(names...)
	out := make(map[string]int, len(names))
	for _, r := range s.catalog {
		if want.Has(r.Name) {
			out[r.Name] = r.ID
		}
	}
	return out, nil
}

// ─── MenuStore ───────────────────────────────────────────────────────

func (s *memStore) GetActiveMenuTree(context.Context) ([]model.MenuNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []model.MenuItem
	for _, it := range s.menu {
		if it.IsActive {
			active = append(active, it)
		}
	}
	return authz.BuildMenuTree(active), nil
}

// recordingInvalidator captures published events.
type recordingInvalidator struct {
	mu     sync.Mutex
	events []cache.Event
	err    error
}

func (r *recordingInvalidator) InvalidateAndPublish(_ context.Context, evt cache.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingInvalidator) snapshot() []cache.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cache.Event(nil), r.events...)
}

var errStoreDown = errors.New("store down")

func intPtr(v int) *int { return &v }

// holdFirstRoleLoad parks the first GetRoleByID until release is called or
// its ctx ends. Later loads pass straight through. entered is closed once the
// first load is parked.
func (s *memStore) holdFirstRoleLoad() (entered <-chan struct{}, release func()) {
	in := make(chan struct{})
	out := make(chan struct{})
	var first atomic.Bool
	s.roleGate = func(ctx context.Context) error {
		if !first.CompareAndSwap(false, true) {
			return nil
		}
		close(in)
		select {
		case <-out:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	var once sync.Once
	return in, func() { once.Do(func() { close(out) }) }
}

// setBindings replaces role id's bindings in place.
func (s *memStore) setBindings(id int, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.roles[id]
	r.Bindings = nil
	for _, n := range names {
		r.Bindings = append(r.Bindings, s.binding(n))
	}
}
