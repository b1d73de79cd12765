package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_FailsOpenWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(nil, 3, time.Minute)
	r := gin.New()
	r.POST("/login", rl.Middleware("login"), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("POST", "/login", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiter_NilLimiterPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var rl *RateLimiter
	r := gin.New()
	r.POST("/login", rl.Middleware("login"), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
