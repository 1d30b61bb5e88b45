package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func corsEngine(allowlist []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(CORS(allowlist))
	engine.GET("/api/v1/knowledge", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return engine
}

func TestCORSAllowsAllByDefault(t *testing.T) {
	engine := corsEngine(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/knowledge", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, corsMethods, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSAllowlistFiltersOrigins(t *testing.T) {
	engine := corsEngine([]string{"http://allowed.example"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/knowledge", nil)
	req.Header.Set("Origin", "http://allowed.example")
	engine.ServeHTTP(rec, req)
	require.Equal(t, "http://allowed.example", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Origin", rec.Header().Get("Vary"))

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/v1/knowledge", nil)
	req.Header.Set("Origin", "http://other.example")
	engine.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	engine := corsEngine(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/api/v1/knowledge", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, corsHeaders, rec.Header().Get("Access-Control-Allow-Headers"))
}
