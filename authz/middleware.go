package authz

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Middleware wires the policy engine into Gin route groups.
type Middleware struct {
	engine *Engine
}

// NewMiddleware creates an authorization middleware around the engine.
func NewMiddleware(engine *Engine) *Middleware {
	return &Middleware{engine: engine}
}

// RequirePermission enforces the policy rule for (action, kind) before the
// handler runs. For ownership-required rules the resource id is read from
// the named URL parameter.
//
// Usage: routes.Use(mw.RequirePermission(authz.ActionUpdate, authz.KindEvent, "id"))
func (m *Middleware) RequirePermission(action Action, kind ResourceKind, idParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := SubjectFromContext(c)

		var resourceID string
		if idParam != "" {
			resourceID = c.Param(idParam)
		}

		decision, err := m.engine.Evaluate(c.Request.Context(), subject, action, kind, resourceID)
		if err != nil && errors.Is(err, ErrInvalidInput) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "bad_request",
				"message": err.Error(),
			})
			return
		}
		if !decision.Allow {
			log.Printf("AUTHZ DENIED - user %s (%s) %s %s %s: %s",
				subject.ID, subject.Role, action, kind, resourceID, decision.Reason)
			abortDenied(c, decision)
			return
		}
		c.Next()
	}
}

// RequireRole is the coarse check for routes that are role-gated without a
// resource (admin user management, dashboards).
func (m *Middleware) RequireRole(allowed ...Role) gin.HandlerFunc {
	set := make(map[Role]bool, len(allowed))
	for _, r := range allowed {
		set[r] = true
	}
	return func(c *gin.Context) {
		subject := SubjectFromContext(c)
		if subject.Anonymous() {
			abortDenied(c, Decision{Reason: ReasonUnauthenticated})
			return
		}
		if !set[subject.Role] {
			log.Printf("AUTHZ DENIED - user %s (%s) requires one of %v", subject.ID, subject.Role, allowed)
			abortDenied(c, Decision{Reason: ReasonRoleForbidden})
			return
		}
		c.Next()
	}
}

// abortDenied writes the JSON denial for an API request. Authorization
// denials never carry a field detail map.
func abortDenied(c *gin.Context, d Decision) {
	status := http.StatusForbidden
	switch d.Reason {
	case ReasonUnauthenticated:
		status = http.StatusUnauthorized
	case ReasonNotFound:
		status = http.StatusNotFound
	case ReasonAlreadyExists:
		status = http.StatusConflict
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":   string(d.Reason),
		"message": d.Err().Error(),
	})
}

// StatusForError maps the package's sentinel errors to HTTP statuses.
// Handlers use it so every service error renders consistently.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
