package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joeljohnson18227/eventflow/authz"
	"github.com/joeljohnson18227/eventflow/services"
)

type DashboardHandler struct {
	DashboardService *services.DashboardService
}

func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{DashboardService: dashboardService}
}

// Home serves the role dashboard landing data. The route guard has already
// redirected anyone whose role does not match the prefix.
// GET /admin, /organizer, /judge, /mentor, /participant
func (h *DashboardHandler) Home(c *gin.Context) {
	subject := authz.SubjectFromContext(c)

	summary, err := h.DashboardService.Summary(c.Request.Context(), subject)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"role":    string(subject.Role),
		"summary": summary,
	})
}
