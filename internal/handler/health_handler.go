package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/hris-authz/internal/response"
)

// DependencyChecker is satisfied by *database.HealthChecker.
type DependencyChecker interface {
	Check(ctx context.Context) (map[string]string, bool)
}

// HealthHandler reports liveness of the service and its stores.
type HealthHandler struct {
	checker DependencyChecker
}

// NewHealthHandler creates a new HealthHandler. checker may be nil.
func NewHealthHandler(checker DependencyChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health godoc
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	if h.checker == nil {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
		return
	}

	deps, healthy := h.checker.Check(c.Request.Context())
	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	response.Success(c, code, gin.H{"status": status, "dependencies": deps})
}
