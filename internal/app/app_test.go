package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shelf-taught/internal/core/config"
	"shelf-taught/internal/core/storage"
	"shelf-taught/internal/domain"
	"shelf-taught/internal/testkit"
	"shelf-taught/internal/transport/http/response"
	"shelf-taught/internal/transport/http/router"
)

func init() { gin.SetMode(gin.TestMode) }

type harness struct {
	t     *testing.T
	app   *App
	api   *gin.Engine
	admin *gin.Engine
	grade *domain.GradeLevel
	math  *domain.Subject
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.DB.Driver = "sqlite"
	cfg.App.FrontendURL = "https://shelftaught.test"

	db := testkit.NewDB(t)
	a, err := New(t.Context(), cfg, zap.NewNop(), db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	h := &harness{
		t:     t,
		app:   a,
		api:   router.NewAPIEngine(zap.NewNop(), a.JWT, a.Registry, a.RouterOptions()),
		admin: router.NewAdminEngine(zap.NewNop(), a.JWT, a.Registry, a.RouterOptions()),
	}
	h.grade = testkit.GradeLevel(t, db, "Elementary", 5, 10, 1)
	h.math = testkit.Subject(t, db, "Mathematics")
	return h
}

func (h *harness) do(r http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, response.Envelope) {
	h.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env response.Envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (h *harness) token(email, role string) string {
	h.t.Helper()
	u := testkit.User(h.t, h.app.DB, email, role)
	tok, err := h.app.JWT.Issue(u.ID, u.Email, u.Role)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) curriculum(name string) *domain.Curriculum {
	return testkit.Curriculum(h.t, h.app.DB, name, "Demme Learning", h.grade, []*domain.Subject{h.math}, func(c *domain.Curriculum) {
		c.TeachingApproachStyle = "Mastery"
		c.TeachingApproachRating = 4
	})
}

func TestNew_DegradesWithoutRedisOrBucket(t *testing.T) {
	h := newHarness(t)
	assert.IsType(t, storage.Unconfigured{}, h.app.Images)
	assert.Equal(t, int64(6<<20), h.app.RouterOptions().MaxBodyBytes)
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)

	w, env := h.do(h.api, http.MethodPost, "/api/auth/register", "",
		`{"email":"Ann@Example.com","password":"secret123","firstName":"<b>Ann</b>","lastName":"Lee"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Registration successful", env.Message)
	data := env.Data.(map[string]any)
	assert.NotEmpty(t, data["token"])
	user := data["user"].(map[string]any)
	assert.Equal(t, "ann@example.com", user["email"])
	assert.Equal(t, "Ann", user["firstName"])
	assert.Equal(t, domain.RoleUser, user["role"])
	assert.NotContains(t, w.Body.String(), "passwordHash")

	w, _ = h.do(h.api, http.MethodPost, "/api/auth/register", "",
		`{"email":"ann@example.com","password":"secret123","firstName":"Ann","lastName":"Lee"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = h.do(h.api, http.MethodPost, "/api/auth/login", "", `{"email":"ann@example.com","password":"wrong-pass1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", env.Error.Message)

	w, env = h.do(h.api, http.MethodPost, "/api/auth/login", "", `{"email":"ann@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusOK, w.Code)
	tok := env.Data.(map[string]any)["token"].(string)

	w, env = h.do(h.api, http.MethodGet, "/api/auth/me", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ann@example.com", env.Data.(map[string]any)["email"])

	w, _ = h.do(h.api, http.MethodGet, "/api/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegister_Validation(t *testing.T) {
	h := newHarness(t)
	w, env := h.do(h.api, http.MethodPost, "/api/auth/register", "",
		`{"email":"nope","password":"short","firstName":"A","lastName":"Lee"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.NotEmpty(t, env.Error.Details)
}

func TestCurricula_PublicListAndDetail(t *testing.T) {
	h := newHarness(t)
	mus := h.curriculum("Math-U-See")
	h.curriculum("Saxon Math")

	w, env := h.do(h.api, http.MethodGet, "/api/curricula?limit=500", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, env.Data, 2)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 50, env.Pagination.Limit)
	assert.Equal(t, int64(2), env.Pagination.TotalCount)

	w, env = h.do(h.api, http.MethodGet, "/api/curricula/"+mus.Slug, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Math-U-See"`)

	w, _ = h.do(h.api, http.MethodGet, "/api/curricula/"+mus.ID, "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = h.do(h.api, http.MethodGet, "/api/curricula/does-not-exist", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestSearch(t *testing.T) {
	h := newHarness(t)
	h.curriculum("Math-U-See")

	w, env := h.do(h.api, http.MethodGet, "/api/search?q=", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Search query is required", env.Error.Message)

	w, env = h.do(h.api, http.MethodGet, "/api/search?q=math", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := env.Data.(map[string]any)
	assert.Equal(t, "math", data["query"])
	assert.Len(t, data["items"], 1)
	assert.Equal(t, int64(1), env.Pagination.TotalCount)

	for _, q := range []string{"zzzz", "%25", "m_th"} {
		w, env = h.do(h.api, http.MethodGet, "/api/search?q="+q, "", "")
		require.Equal(t, http.StatusOK, w.Code, q)
		data = env.Data.(map[string]any)
		assert.Equal(t, []any{}, data["items"], q)
		require.NotNil(t, env.Pagination)
		assert.Equal(t, int64(0), env.Pagination.TotalCount, q)
	}

	w, _ = h.do(h.api, http.MethodGet, "/api/search/suggestions?q=ma", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(h.api, http.MethodGet, "/api/search/filters", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSavedCurricula(t *testing.T) {
	h := newHarness(t)
	mus := h.curriculum("Math-U-See")
	tok := h.token("saver@example.com", domain.RoleUser)
	other := h.token("other@example.com", domain.RoleUser)

	w, _ := h.do(h.api, http.MethodGet, "/api/user/saved", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := h.do(h.api, http.MethodPost, "/api/user/saved", tok, `{"curriculumId":"`+mus.ID+`","personalNotes":"try in fall"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Curriculum saved", env.Message)
	savedID := env.Data.(map[string]any)["id"].(string)

	w, env = h.do(h.api, http.MethodPost, "/api/user/saved", tok, `{"curriculumId":"`+mus.ID+`","personalNotes":"maybe spring"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Saved curriculum updated", env.Message)
	assert.Equal(t, savedID, env.Data.(map[string]any)["id"])

	w, _ = h.do(h.api, http.MethodPost, "/api/user/saved", tok, `{"curriculumId":"missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = h.do(h.api, http.MethodGet, "/api/user/saved/check/"+mus.ID, tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"saved": true, "savedId": savedID}, env.Data)

	w, env = h.do(h.api, http.MethodGet, "/api/user/saved", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, env.Data, 1)

	w, _ = h.do(h.api, http.MethodDelete, "/api/user/saved/"+savedID, other, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = h.do(h.api, http.MethodDelete, "/api/user/saved/"+savedID, tok, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = h.do(h.api, http.MethodGet, "/api/user/saved/check/"+mus.ID, tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"saved": false}, env.Data)
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	h := newHarness(t)
	user := h.token("user@example.com", domain.RoleUser)
	admin := h.token("admin@example.com", domain.RoleAdmin)

	w, _ := h.do(h.api, http.MethodGet, "/api/admin/analytics", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := h.do(h.api, http.MethodGet, "/api/admin/analytics", user, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "AUTHORIZATION_ERROR", env.Error.Code)

	w, _ = h.do(h.api, http.MethodGet, "/api/admin/analytics", admin, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(h.admin, http.MethodGet, "/api/admin/users", admin, "")
	assert.Equal(t, http.StatusOK, w.Code)

	// 管理端 engine 不暴露公开接口
	w, _ = h.do(h.admin, http.MethodGet, "/api/curricula", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_CurriculumAndTaxonomy(t *testing.T) {
	h := newHarness(t)
	admin := h.token("admin@example.com", domain.RoleAdmin)

	body := `{"name":"Beast Academy","publisher":"Art of Problem Solving","description":"Comic-based math for curious kids",` +
		`"gradeLevelId":"` + h.grade.ID + `","subjectIds":["` + h.math.ID + `"]}`
	w, env := h.do(h.api, http.MethodPost, "/api/admin/curricula", admin, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Curriculum created successfully", env.Message)
	id := env.Data.(map[string]any)["id"].(string)

	w, env = h.do(h.api, http.MethodPut, "/api/admin/curricula/"+id, admin, `{"publisher":"AoPS"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "AoPS", env.Data.(map[string]any)["publisher"])

	w, _ = h.do(h.api, http.MethodDelete, "/api/admin/curricula/"+id, admin, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = h.do(h.api, http.MethodDelete, "/api/admin/curricula/"+id, admin, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = h.do(h.api, http.MethodPost, "/api/admin/subjects", admin, `{"name":"Latin"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Latin", env.Data.(map[string]any)["name"])

	w, env = h.do(h.api, http.MethodGet, "/api/categories/subjects", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, env.Data, 2)

	h.curriculum("Math-U-See")
	w, env = h.do(h.api, http.MethodDelete, "/api/admin/grade-levels/"+h.grade.ID, admin, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", env.Error.Code)
}

func TestHealthAndSEO(t *testing.T) {
	h := newHarness(t)
	mus := h.curriculum("Math-U-See")

	w, env := h.do(h.api, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", env.Data.(map[string]any)["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, env = h.do(h.api, http.MethodGet, "/health/detailed", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	checks := env.Data.(map[string]any)["checks"].(map[string]any)
	assert.Equal(t, "up", checks["database"].(map[string]any)["status"])
	assert.Equal(t, "disabled", checks["cache"].(map[string]any)["status"])

	w, _ = h.do(h.api, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = h.do(h.api, http.MethodGet, "/live", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(h.api, http.MethodGet, "/sitemap.xml", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/xml"))
	assert.Contains(t, w.Body.String(), "https://shelftaught.test/curriculum/"+mus.Slug)

	w, _ = h.do(h.api, http.MethodGet, "/robots.txt", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sitemap: https://shelftaught.test/sitemap.xml")

	w, env = h.do(h.api, http.MethodGet, "/api/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Route GET /api/nope not found", env.Error.Message)

	w, _ = h.do(h.api, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
