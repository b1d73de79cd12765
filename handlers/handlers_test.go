package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/joeljohnson18227/eventflow/authz"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("internal errors hide the wrapped detail", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest("GET", "/boom", nil)

		respondError(c, fmt.Errorf("failed to scan row: pq: column does not exist"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
	})

	t.Run("sentinel errors keep their message", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest("GET", "/teams/nope", nil)

		respondError(c, fmt.Errorf("%w: no such team", authz.ErrNotFound))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "no such team")
	})
}
