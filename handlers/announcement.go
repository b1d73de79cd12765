package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joeljohnson18227/eventflow/authz"
	"github.com/joeljohnson18227/eventflow/services"
)

type AnnouncementHandler struct {
	AnnouncementService *services.AnnouncementService
}

func NewAnnouncementHandler(announcementService *services.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{AnnouncementService: announcementService}
}

// CreateAnnouncement posts an announcement (organizer or admin)
// POST /api/announcements
func (h *AnnouncementHandler) CreateAnnouncement(c *gin.Context) {
	var req services.CreateAnnouncementInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	ann, err := h.AnnouncementService.CreateAnnouncement(c.Request.Context(), authz.SubjectFromContext(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"announcement": ann, "message": "Announcement posted"})
}

// DeleteAnnouncement removes an announcement (organizer or admin)
// DELETE /api/announcements/{id}
func (h *AnnouncementHandler) DeleteAnnouncement(c *gin.Context) {
	if err := h.AnnouncementService.DeleteAnnouncement(c.Request.Context(), authz.SubjectFromContext(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Announcement deleted"})
}
