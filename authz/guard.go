package authz

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys for the request-scoped subject.
const (
	ContextKeyUserID   = "user_id"
	ContextKeyUserRole = "user_role"
)

// SessionDecoder turns an inbound request into a Subject. Implementations
// must reject unknown roles and treat malformed or expired tokens as an
// error; the guard treats every decode failure identically to "no session".
type SessionDecoder interface {
	DecodeSession(r *http.Request) (Subject, error)
}

// Guard classifies every inbound request before handler logic runs:
// public allowlist, session requirement, role-gated dashboard prefixes.
// Browser navigation gets redirects (never a bare error page), API paths
// get JSON statuses.
type Guard struct {
	sessions SessionDecoder
}

// NewGuard creates a route guard on top of the given session decoder.
func NewGuard(sessions SessionDecoder) *Guard {
	return &Guard{sessions: sessions}
}

// publicPrefixes are the paths reachable without a session. Contract with
// the rest of the system; must match exactly.
var publicPrefixes = []string{
	"/login",
	"/register",
	"/events",
	"/verify",
	"/api/auth",
}

// isPublicPath reports whether the path needs no session. /profile is a
// read-only public prefix: GET only.
func isPublicPath(method, path string) bool {
	if path == "/" {
		return true
	}
	for _, p := range publicPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	if method == http.MethodGet && (path == "/profile" || strings.HasPrefix(path, "/profile/")) {
		return true
	}
	return false
}

// dashboardRole returns the required role when the path sits under a
// role-gated dashboard prefix, or "" when it does not.
func dashboardRole(path string) Role {
	for _, r := range AllRoles {
		home := r.HomePath()
		if path == home || strings.HasPrefix(path, home+"/") {
			return r
		}
	}
	return ""
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// Handle is the guard middleware. Classification order, first match wins:
// public path, missing session, role-prefix mismatch, default allow.
func (g *Guard) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		subject, err := g.sessions.DecodeSession(c.Request)
		if err != nil {
			// Malformed or expired sessions are indistinguishable from none.
			subject = Subject{}
		}
		if !subject.Anonymous() {
			c.Set(ContextKeyUserID, subject.ID)
			c.Set(ContextKeyUserRole, string(subject.Role))
		}

		if isPublicPath(c.Request.Method, path) {
			// A signed-in user has no business on the auth pages; send them home.
			if !subject.Anonymous() && (path == "/login" || path == "/register") {
				c.Redirect(http.StatusFound, subject.Role.HomePath())
				c.Abort()
				return
			}
			c.Next()
			return
		}

		if subject.Anonymous() {
			if isAPIPath(path) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   "unauthenticated",
					"message": "sign in required",
				})
				return
			}
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		if required := dashboardRole(path); required != "" && required != subject.Role {
			log.Printf("GUARD DENIED - user %s (%s) requested %s", subject.ID, subject.Role, path)
			if isAPIPath(path) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":   "role-forbidden",
					"message": "your role cannot view this dashboard",
				})
				return
			}
			// Always redirect to the subject's own home, never back to the
			// denied path: requesting your own prefix lands in the branch
			// above with required == subject.Role, so no loop is possible.
			c.Redirect(http.StatusFound, subject.Role.HomePath())
			c.Abort()
			return
		}

		c.Next()
	}
}

// SubjectFromContext rebuilds the Subject a guard or session middleware
// stored on the request. Anonymous when nothing was stored.
func SubjectFromContext(c *gin.Context) Subject {
	id := c.GetString(ContextKeyUserID)
	role := Role(c.GetString(ContextKeyUserRole))
	if id == "" || !role.Valid() {
		return Subject{}
	}
	return Subject{ID: id, Role: role}
}
