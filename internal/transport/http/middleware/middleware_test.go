package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"shelf-taught/internal/core/auth"
	"shelf-taught/internal/transport/http/response"
)

func init() { gin.SetMode(gin.TestMode) }

func testJWT() *auth.JWTer {
	return &auth.JWTer{Secret: []byte("test-secret"), Issuer: "shelf-test", Audience: "shelf-client", TTL: time.Hour}
}

func do(r http.Handler, req *http.Request) (*httptest.ResponseRecorder, response.Envelope) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env response.Envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func ok(c *gin.Context) { c.JSON(http.StatusOK, response.OK(gin.H{"user": UserID(c)})) }

func TestAuthenticate(t *testing.T) {
	j := testJWT()
	r := gin.New()
	r.GET("/me", Authenticate(j), ok)
	r.GET("/admin", Authenticate(j), RequireRole("ADMIN"), ok)

	w, env := do(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "AUTHENTICATION_ERROR", env.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	w, _ = do(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, err := j.Issue("u1", "a@b.co", "USER")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w, env = do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"user": "u1"}, env.Data)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w, env = do(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "AUTHORIZATION_ERROR", env.Error.Code)

	admin, err := j.Issue("a1", "root@b.co", "ADMIN")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	w, _ = do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOptionalAuth(t *testing.T) {
	j := testJWT()
	r := gin.New()
	r.GET("/x", OptionalAuth(j), ok)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w, env := do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"user": ""}, env.Data)
}

func TestRequireRole_NoUser(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequireRole("ADMIN"), ok)
	w, _ := do(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIPLimiter(t *testing.T) {
	l := NewIPLimiter(rate.Limit(0.5), 2)
	r := gin.New()
	r.GET("/x", l.Middleware("slow down"), ok)

	for i := 0; i < 2; i++ {
		w, _ := do(r, httptest.NewRequest(http.MethodGet, "/x", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}
	w, env := do(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "slow down", env.Error.Message)

	// 另一个 IP 有独立的桶
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	w, _ = do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, l.Len())
}

func TestIPLimiter_SweepsIdle(t *testing.T) {
	l := NewIPLimiter(rate.Limit(1), 1)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	l.get("1.1.1.1")
	l.get("2.2.2.2")
	require.Equal(t, 2, l.Len())

	now = now.Add(11 * time.Minute)
	l.get("3.3.3.3")
	assert.Equal(t, 1, l.Len())
}

func TestSanitize(t *testing.T) {
	r := gin.New()
	r.Use(Sanitize())
	r.POST("/x", func(c *gin.Context) {
		var body map[string]any
		require.NoError(t, c.ShouldBindJSON(&body))
		c.JSON(http.StatusOK, response.OK(body))
	})

	in := `{"name":"<b>Math</b> & Logic<script>alert(1)</script>","password":"<pa&ss>1","tags":["<i>a</i>"],"n":3}`
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(in))
	req.Header.Set("Content-Type", "application/json")
	w, env := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	data := env.Data.(map[string]any)
	assert.Equal(t, "Math & Logic", data["name"])
	assert.Equal(t, "<pa&ss>1", data["password"])
	assert.Equal(t, []any{"a"}, data["tags"])
	assert.Equal(t, float64(3), data["n"])
}

func TestSanitize_TooLarge(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodyBytes(16), Sanitize())
	r.POST("/x", ok)

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"name":"`+strings.Repeat("a", 64)+`"}`))
	req.Header.Set("Content-Type", "application/json")
	w, env := do(r, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", env.Error.Code)
}

func TestSanitizeText(t *testing.T) {
	p := bluemonday.StrictPolicy()
	assert.Equal(t, "plain", SanitizeText(p, "plain"))
	assert.Equal(t, "Tom & Jerry", SanitizeText(p, "Tom & Jerry"))
	assert.Equal(t, "bold", SanitizeText(p, "<strong>bold</strong>"))
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(20 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	r.GET("/fast", ok)

	w, env := do(r, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.False(t, env.Success)

	w, _ = do(r, httptest.NewRequest(http.MethodGet, "/fast", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery(t *testing.T) {
	response.ExposeStack(false)
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w, env := do(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Internal server error", env.Error.Message)
	assert.Empty(t, env.Error.Stack)

	response.ExposeStack(true)
	t.Cleanup(func() { response.ExposeStack(false) })
	w, env = do(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, env.Error.Stack, "goroutine")
}

func TestMaxBodyBytes(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodyBytes(8))
	r.POST("/x", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})
	w, _ := do(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	w, _ = do(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("0123")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConcurrencyLimit(t *testing.T) {
	r := gin.New()
	r.Use(ConcurrencyLimit(1))
	r.GET("/x", ok)

	w, _ := do(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/x", nil).WithContext(ctx)
	w, env := do(r, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", ok)

	w, _ := do(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Len(t, w.Header().Get(KeyRequestID), 36)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(KeyRequestID, "abc-123")
	w, _ = do(r, req)
	assert.Equal(t, "abc-123", w.Header().Get(KeyRequestID))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(KeyRequestID, strings.Repeat("x", 200))
	w, _ = do(r, req)
	assert.Len(t, w.Header().Get(KeyRequestID), 36)
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/x", ok)
	w, _ := do(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestRateLimit_Global(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(rate.Limit(1), 1))
	r.GET("/x", ok)

	w, _ := do(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.1.1.1:80"
	w, env := do(r, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", env.Error.Code)
}
