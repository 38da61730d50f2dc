package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/hris-authz/internal/authz"
	"github.com/stemsi/hris-authz/internal/model"
	"github.com/stemsi/hris-authz/internal/response"
	"github.com/stemsi/hris-authz/internal/service"
)

// ContextKeyEffective is the Gin context key for the request's resolved permissions.
const ContextKeyEffective = "effective_permissions"

// PermissionResolver is satisfied by *service.AuthzService.
type PermissionResolver interface {
	EffectivePermissions(ctx context.Context, userID int) (*service.Effective, error)
	RecordDecision(d authz.Decision)
}

// Guard is the enforcement point. It resolves the principal once per request
// and checks required permissions before the handler runs.
type Guard struct {
	resolver PermissionResolver
	log      zerolog.Logger
}

// NewGuard creates a Guard.
func NewGuard(resolver PermissionResolver, log zerolog.Logger) *Guard {
	return &Guard{resolver: resolver, log: log.With().Str("component", "authz_guard").Logger()}
}

// LoadPermissions resolves the authenticated principal and stores the result
// for later middlewares and handlers. It must run after RequireJWT.
func (g *Guard) LoadPermissions() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := g.effective(c); ok {
			c.Next()
		}
	}
}

// RequirePermission denies the request unless the principal holds code.
func (g *Guard) RequirePermission(code model.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		eff, ok := g.effective(c)
		if !ok {
			return
		}
		g.enforce(c, eff, authz.AuthorizePermission(eff.Set, code))
	}
}

// RequireAnyPermission denies the request unless the principal holds at least
// one of codes.
func (g *Guard) RequireAnyPermission(codes ...model.Permission) gin.HandlerFunc {
	names := make([]string, len(codes))
	for i, p := range codes {
		names[i] = string(p)
	}
	return func(c *gin.Context) {
		eff, ok := g.effective(c)
		if !ok {
			return
		}
		g.enforce(c, eff, authz.AuthorizeAny(eff.Set, names...))
	}
}

// GetEffective retrieves the request's resolved permissions, or nil.
func GetEffective(c *gin.Context) *service.Effective {
	val, exists := c.Get(ContextKeyEffective)
	if !exists {
		return nil
	}
	eff, _ := val.(*service.Effective)
	return eff
}

func (g *Guard) enforce(c *gin.Context, eff *service.Effective, d authz.Decision) {
	g.resolver.RecordDecision(d)
	if d.Allowed {
		c.Next()
		return
	}

	g.log.Debug().
		Int("user_id", eff.Principal.UserID).
		Str("permission", d.Missing).
		Str("path", c.FullPath()).
		Msg("Permission denied")
	response.AbortFailWithFields(c, http.StatusForbidden, response.ErrPermissionDenied, map[string]string{
		"permission": d.Missing,
	})
}

// effective returns the request's resolution, resolving it on first use. On
// failure the request has already been aborted.
func (g *Guard) effective(c *gin.Context) (*service.Effective, bool) {
	if eff := GetEffective(c); eff != nil {
		return eff, true
	}

	claims := GetClaims(c)
	if claims == nil {
		response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	eff, err := g.resolver.EffectivePermissions(c.Request.Context(), claims.UserID)
	if err != nil {
		g.abortResolveError(c, claims.UserID, err)
		return nil, false
	}
	if !eff.Principal.Active {
		response.AbortFail(c, http.StatusForbidden, response.ErrAccountInactive)
		return nil, false
	}

	c.Set(ContextKeyEffective, eff)
	return eff, true
}

func (g *Guard) abortResolveError(c *gin.Context, userID int, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
	case errors.Is(err, authz.ErrInvalidPrincipalState):
		response.AbortFail(c, http.StatusInternalServerError, response.ErrInvalidPrincipalState)
	default:
		g.log.Error().Err(err).Int("user_id", userID).Msg("Failed to resolve permissions")
		response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
