package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/hris-authz/internal/response"
	"github.com/stemsi/hris-authz/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubValidator accepts "good-<n>" style tokens from a fixed table.
type stubValidator map[string]*service.Claims

func (s stubValidator) ValidateToken(tok string) (*service.Claims, error) {
	if tok == "expired" {
		return nil, service.ErrTokenExpired
	}
	c, ok := s[tok]
	if !ok {
		return nil, service.ErrTokenInvalid
	}
	return c, nil
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error, "body: %s", w.Body.String())
	return body.Error.Code
}
