package authz

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// stubSessions decodes a fixed subject from the X-Test-User / X-Test-Role
// headers; no header means anonymous, X-Test-Bad forces a decode error.
type stubSessions struct{}

func (stubSessions) DecodeSession(r *http.Request) (Subject, error) {
	if r.Header.Get("X-Test-Bad") != "" {
		return Subject{}, errors.New("malformed session")
	}
	id := r.Header.Get("X-Test-User")
	if id == "" {
		return Subject{}, errors.New("no session")
	}
	return Subject{ID: id, Role: Role(r.Header.Get("X-Test-Role"))}, nil
}

func newGuardedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewGuard(stubSessions{}).Handle())

	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/", ok)
	r.GET("/login", ok)
	r.GET("/events", ok)
	r.GET("/profile/:id", ok)
	r.GET("/settings", ok)
	r.GET("/api/teams/:id", ok)
	for _, role := range AllRoles {
		r.GET(role.HomePath(), ok)
	}
	return r
}

func doGuarded(r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGuard_PublicPaths(t *testing.T) {
	r := newGuardedRouter()

	for _, path := range []string{"/", "/login", "/events", "/profile/u-1"} {
		w := doGuarded(r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, "anonymous should reach %s", path)
	}
}

func TestGuard_AnonymousProtected(t *testing.T) {
	r := newGuardedRouter()

	t.Run("browser path redirects to login", func(t *testing.T) {
		w := doGuarded(r, http.MethodGet, "/settings", nil)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
	})

	t.Run("api path gets 401 json", func(t *testing.T) {
		w := doGuarded(r, http.MethodGet, "/api/teams/t-1", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "unauthenticated")
	})

	t.Run("malformed session treated as anonymous", func(t *testing.T) {
		w := doGuarded(r, http.MethodGet, "/settings", map[string]string{"X-Test-Bad": "1"})
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
	})
}

func TestGuard_AuthedOnAuthPages(t *testing.T) {
	r := newGuardedRouter()

	w := doGuarded(r, http.MethodGet, "/login", map[string]string{
		"X-Test-User": "u-1", "X-Test-Role": "judge",
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/judge", w.Header().Get("Location"))
}

func TestGuard_DashboardPrefixes(t *testing.T) {
	r := newGuardedRouter()

	t.Run("matching role passes", func(t *testing.T) {
		for _, role := range AllRoles {
			w := doGuarded(r, http.MethodGet, role.HomePath(), map[string]string{
				"X-Test-User": "u-1", "X-Test-Role": string(role),
			})
			assert.Equal(t, http.StatusOK, w.Code, "role %s on own dashboard", role)
		}
	})

	t.Run("mismatched role redirects to own home", func(t *testing.T) {
		w := doGuarded(r, http.MethodGet, "/admin", map[string]string{
			"X-Test-User": "u-1", "X-Test-Role": "participant",
		})
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/participant", w.Header().Get("Location"))
	})

	t.Run("redirect target never loops", func(t *testing.T) {
		// Follow the redirect chain by hand; the second hop must terminate.
		headers := map[string]string{"X-Test-User": "u-1", "X-Test-Role": "mentor"}
		w := doGuarded(r, http.MethodGet, "/organizer", headers)
		assert.Equal(t, http.StatusFound, w.Code)

		next := w.Header().Get("Location")
		w = doGuarded(r, http.MethodGet, next, headers)
		assert.Equal(t, http.StatusOK, w.Code, "own dashboard must serve, not redirect")
	})
}

func TestSubjectFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("round trip", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(ContextKeyUserID, "u-1")
		c.Set(ContextKeyUserRole, "organizer")
		s := SubjectFromContext(c)
		assert.Equal(t, Subject{ID: "u-1", Role: RoleOrganizer}, s)
	})

	t.Run("unknown role yields anonymous", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(ContextKeyUserID, "u-1")
		c.Set(ContextKeyUserRole, "superuser")
		assert.True(t, SubjectFromContext(c).Anonymous())
	})

	t.Run("empty context yields anonymous", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		assert.True(t, SubjectFromContext(c).Anonymous())
	})
}
