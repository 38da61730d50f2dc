package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/hris-authz/internal/authz"
	"github.com/stemsi/hris-authz/internal/cache"
	"github.com/stemsi/hris-authz/internal/metrics"
	"github.com/stemsi/hris-authz/internal/model"
)

func newAuthz(store *memStore, c *cache.PermissionCache, m *metrics.Metrics) *AuthzService {
	return NewAuthzService(store, store, store, c, m, zerolog.Nop())
}

func newRedisCache(t *testing.T) (*cache.PermissionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.NewPermissionCache(rdb, time.Minute, zerolog.Nop()), mr
}

func floorNamesOf(r model.LegacyRole) []string {
	var out []string
	for _, p := range r.FallbackPermissions() {
		out = append(out, string(p))
	}
	return out
}

// counterValue reads one labelled counter sample from reg.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestEffectivePermissionsEmployeeFloor(t *testing.T) {
	store := newMemStore()
	store.addUser(1, "employee", nil)

	eff, err := newAuthz(store, nil, nil).EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)

	assert.ElementsMatch(t, floorNamesOf(model.LegacyRoleEmployee), eff.Set.Sorted())
	assert.False(t, eff.Cached)
	assert.Equal(t, 1, eff.Principal.UserID)
	assert.Zero(t, store.roleLoads.Load())
}

func TestEffectivePermissionsUnionsCustomRole(t *testing.T) {
	store := newMemStore()
	store.addRole(200, `["reports.view","beta.preview"]`, string(model.PermissionTrainingView))
	store.addUser(1, "employee", intPtr(200))

	eff, err := newAuthz(store, nil, nil).EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)

	for _, n := range floorNamesOf(model.LegacyRoleEmployee) {
		assert.True(t, eff.Set.Has(n), "floor permission %s lost", n)
	}
	assert.True(t, eff.Set.Has("training.view"))
	assert.True(t, eff.Set.Has("reports.view"))
	assert.True(t, eff.Set.Has("beta.preview"), "legacy JSON names outside the catalog still count")
	assert.False(t, eff.Set.HasWildcard())
}

func TestEffectivePermissionsMalformedLegacyJSON(t *testing.T) {
	store := newMemStore()
	store.addRole(200, `{"oops":true}`, string(model.PermissionTrainingView))
	store.addUser(1, "manager", intPtr(200))
	m := metrics.New()

	eff, err := newAuthz(store, nil, m).EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, eff.Set.Has("training.view"))
	assert.True(t, eff.Set.Has("leaves.approve"))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var malformed float64
	for _, f := range families {
		if f.GetName() == "hris_authz_legacy_malformed_total" {
			malformed = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, malformed)
}

func TestEffectivePermissionsDanglingRoleYieldsFloor(t *testing.T) {
	store := newMemStore()
	store.addUser(1, "hr", intPtr(999))

	eff, err := newAuthz(store, nil, nil).EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, floorNamesOf(model.LegacyRoleHR), eff.Set.Sorted())
}

func TestEffectivePermissionsUnknownUser(t *testing.T) {
	_, err := newAuthz(newMemStore(), nil, nil).EffectivePermissions(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestEffectivePermissionsStoreFailure(t *testing.T) {
	store := newMemStore()
	store.principalErr = errStoreDown

	_, err := newAuthz(store, nil, nil).EffectivePermissions(context.Background(), 1)
	assert.ErrorIs(t, err, errStoreDown)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestEffectivePermissionsInvalidEnumIsHardFailure(t *testing.T) {
	for _, raw := range []string{"contractor", " ADMIN", "Manager"} {
		store := newMemStore()
		store.addUser(1, raw, nil)

		_, err := newAuthz(store, nil, nil).EffectivePermissions(context.Background(), 1)
		require.Error(t, err, raw)

		var invalid *authz.InvalidPrincipalStateError
		require.True(t, errors.As(err, &invalid), raw)
		assert.Equal(t, raw, invalid.Value)
		assert.ErrorIs(t, err, authz.ErrInvalidPrincipalState)
	}
}

func TestEffectivePermissionsSuperAdminRoleGrantsWildcard(t *testing.T) {
	store := newMemStore()
	// System role 1 mirrors super_admin.
	store.addUser(1, "employee", intPtr(1))

	eff, err := newAuthz(store, nil, nil).EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, eff.Set.HasWildcard())
	assert.True(t, authz.Authorize(eff.Set, "anything.at_all").Allowed)
}

func TestEffectivePermissionsReturnsPrivateCopy(t *testing.T) {
	store := newMemStore()
	store.addUser(1, "employee", nil)
	svc := newAuthz(store, nil, nil)

	first, err := svc.EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	first.Set.Add(string(model.PermissionPayrollManage))

	second, err := svc.EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, second.Set.Has(string(model.PermissionPayrollManage)))
}

func TestEffectivePermissionsRevokeDuringInFlightResolve(t *testing.T) {
	store := newMemStore()
	store.addRole(200, "", string(model.PermissionPayrollManage))
	store.addUser(1, "employee", intPtr(200))
	entered, release := store.holdFirstRoleLoad()
	defer release()
	svc := newAuthz(store, nil, nil)

	first := make(chan error, 1)
	go func() {
		_, err := svc.EffectivePermissions(context.Background(), 1)
		first <- err
	}()
	<-entered

	store.setBindings(200, string(model.PermissionReportsView))

	second := make(chan *Effective, 1)
	go func() {
		eff, err := svc.EffectivePermissions(context.Background(), 1)
		assert.NoError(t, err)
		second <- eff
	}()

	select {
	case eff := <-second:
		require.NotNil(t, eff)
		assert.False(t, eff.Set.Has(string(model.PermissionPayrollManage)))
		assert.True(t, eff.Set.Has(string(model.PermissionReportsView)))
	case <-time.After(2 * time.Second):
		t.Fatal("resolve after revoke waited on the in-flight resolve")
	}

	release()
	require.NoError(t, <-first)
}

func TestEffectivePermissionsFirstCallerCancellationIsolated(t *testing.T) {
	store := newMemStore()
	store.addRole(200, "", string(model.PermissionReportsView))
	store.addUser(1, "employee", intPtr(200))
	entered, release := store.holdFirstRoleLoad()
	defer release()
	svc := newAuthz(store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan error, 1)
	go func() {
		_, err := svc.EffectivePermissions(ctx, 1)
		first <- err
	}()
	<-entered

	second := make(chan error, 1)
	go func() {
		eff, err := svc.EffectivePermissions(context.Background(), 1)
		if err == nil {
			assert.True(t, eff.Set.Has(string(model.PermissionReportsView)))
		}
		second <- err
	}()
	cancel()

	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}
	select {
	case err := <-second:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("live caller did not return")
	}
}

func TestEffectivePermissionsCache(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addRole(200, "", string(model.PermissionReportsView))
	store.addUser(1, "employee", intPtr(200))
	c, _ := newRedisCache(t)
	m := metrics.New()
	svc := newAuthz(store, c, m)

	first, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Set.Sorted(), second.Set.Sorted())
	assert.Equal(t, int32(1), store.roleLoads.Load())

	assert.Equal(t, 1.0, counterValue(t, m.Registry(), "hris_authz_cache_requests_total", metrics.CacheHit))
	assert.Equal(t, 1.0, counterValue(t, m.Registry(), "hris_authz_cache_requests_total", metrics.CacheMiss))

	t.Run("principal changed without invalidation", func(t *testing.T) {
		require.NoError(t, store.AssignCustomRole(ctx, 1, nil))

		eff, err := svc.EffectivePermissions(ctx, 1)
		require.NoError(t, err)
		assert.False(t, eff.Cached, "an entry for the old role must not be served")
		assert.False(t, eff.Set.Has("reports.view"))
	})

	t.Run("generation bump hides entries", func(t *testing.T) {
		_, err := svc.EffectivePermissions(ctx, 1)
		require.NoError(t, err)

		_, err = c.Invalidate(ctx)
		require.NoError(t, err)

		eff, err := svc.EffectivePermissions(ctx, 1)
		require.NoError(t, err)
		assert.False(t, eff.Cached)
	})
}

func TestEffectivePermissionsCacheOutageFallsBack(t *testing.T) {
	store := newMemStore()
	store.addUser(1, "manager", nil)
	c, mr := newRedisCache(t)
	m := metrics.New()
	mr.Close()

	eff, err := newAuthz(store, c, m).EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, floorNamesOf(model.LegacyRoleManager), eff.Set.Sorted())
	assert.False(t, eff.Cached)
	assert.Equal(t, 1.0, counterValue(t, m.Registry(), "hris_authz_cache_requests_total", metrics.CacheError))
}

func TestAuthorize(t *testing.T) {
	store := newMemStore()
	store.addUser(1, "manager", nil)
	m := metrics.New()
	svc := newAuthz(store, nil, m)

	d, eff, err := svc.Authorize(context.Background(), 1, "expenses.approve")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.NotNil(t, eff)

	d, _, err = svc.Authorize(context.Background(), 1, "payroll.manage")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "payroll.manage", d.Missing)

	assert.Equal(t, 1.0, counterValue(t, m.Registry(), "hris_authz_decisions_total", "allow"))
	assert.Equal(t, 1.0, counterValue(t, m.Registry(), "hris_authz_decisions_total", "deny"))
}

func TestExplainBreakdown(t *testing.T) {
	store := newMemStore()
	store.addRole(200, `["beta.preview"]`, string(model.PermissionTrainingView))
	store.addUser(1, "employee", intPtr(200))

	p, res, err := newAuthz(store, nil, nil).Explain(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "employee", p.LegacyRole)
	assert.Equal(t, 200, res.RoleID)
	assert.Equal(t, []string{"training.view"}, res.Bindings)
	assert.Equal(t, []string{"beta.preview"}, res.LegacyJSON)
	assert.ElementsMatch(t, floorNamesOf(model.LegacyRoleEmployee), res.Floor)
}

func TestSimulate(t *testing.T) {
	store := newMemStore()
	store.addRole(200, "", string(model.PermissionTrainingView))
	svc := newAuthz(store, nil, nil)

	res, err := svc.Simulate(context.Background(), "manager", intPtr(200))
	require.NoError(t, err)
	assert.True(t, res.Set.Has("training.view"))
	assert.True(t, res.Set.Has("leaves.approve"))

	_, err = svc.Simulate(context.Background(), "intern", nil)
	assert.ErrorIs(t, err, authz.ErrInvalidPrincipalState)
}

func TestMenuForPrincipal(t *testing.T) {
	store := newMemStore()
	admin := 90
	store.menu = []model.MenuItem{
		{ID: 1, Name: "Dashboard", Path: "/dashboard", Section: "main", IsActive: true, Permission: "dashboard.view"},
		{ID: admin, Name: "Administration", Section: "administration", IsActive: true, Permission: "roles.view"},
		{ID: 91, ParentID: &admin, Name: "Roles", Path: "/admin/roles", Section: "administration", IsActive: true, Permission: "roles.view"},
		{ID: 2, Name: "Hidden", Path: "/hidden", Section: "main", IsActive: false},
	}
	store.addUser(1, "employee", nil)
	store.addUser(2, "admin", nil)
	svc := newAuthz(store, nil, nil)
	ctx := context.Background()

	emp, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	sections, err := svc.Menu(ctx, emp.Set)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "main", sections[0].Key)
	require.Len(t, sections[0].Items, 1)
	assert.Equal(t, "Dashboard", sections[0].Items[0].Name)

	adm, err := svc.EffectivePermissions(ctx, 2)
	require.NoError(t, err)
	sections, err = svc.Menu(ctx, adm.Set)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "administration", sections[1].Key)

	tree, err := svc.MenuTree(ctx)
	require.NoError(t, err)
	assert.Len(t, tree, 2)
}

func TestMenuTreeEmptyIsNotNil(t *testing.T) {
	tree, err := newAuthz(newMemStore(), nil, nil).MenuTree(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tree)
	assert.Empty(t, tree)
}

func TestAuthorizeIgnoresWildcardStoredOnCustomRole(t *testing.T) {
	store := newMemStore()
	store.addRole(50, `["*"]`, "*", string(model.PermissionTrainingView))
	store.addUser(1, "employee", intPtr(50))
	svc := newAuthz(store, nil, nil)

	d, eff, err := svc.Authorize(context.Background(), 1, string(model.PermissionRolesManage))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.False(t, eff.Set.HasWildcard())
	assert.True(t, eff.Set.Has(string(model.PermissionTrainingView)))
}
