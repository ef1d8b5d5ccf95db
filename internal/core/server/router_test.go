package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"shelf-taught/internal/core/config"
)

func init() { gin.SetMode(gin.TestMode) }

func TestCORSConfig(t *testing.T) {
	c := corsConfig(config.App{FrontendURL: "http://localhost:3000"})
	assert.Equal(t, []string{"http://localhost:3000"}, c.AllowOrigins)
	assert.True(t, c.AllowCredentials)

	c = corsConfig(config.App{CORSOrigins: []string{"https://a.test", "https://b.test"}, FrontendURL: "https://ignored.test"})
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, c.AllowOrigins)

	c = corsConfig(config.App{})
	assert.True(t, c.AllowAllOrigins)
	assert.False(t, c.AllowCredentials)
}

func TestNewRouter_Preflight(t *testing.T) {
	r := NewRouter(config.App{FrontendURL: "https://shelftaught.test"})
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://shelftaught.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shelftaught.test", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBuildServer(t *testing.T) {
	s := BuildServer(Addr("127.0.0.1", 3001), http.NotFoundHandler(), zap.NewNop(), time.Second, 2*time.Second, 3*time.Second)
	assert.Equal(t, "127.0.0.1:3001", s.Addr)
	assert.Equal(t, 2*time.Second, s.WriteTimeout)
	assert.NotNil(t, s.ErrorLog)
}
