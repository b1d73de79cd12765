package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joeljohnson18227/eventflow/authz"
	"github.com/joeljohnson18227/eventflow/services"
)

type EventHandler struct {
	EventService        *services.EventService
	AnnouncementService *services.AnnouncementService
	SubmissionService   *services.SubmissionService
	TeamService         *services.TeamService
}

func NewEventHandler(eventService *services.EventService, announcementService *services.AnnouncementService,
	submissionService *services.SubmissionService, teamService *services.TeamService) *EventHandler {
	return &EventHandler{
		EventService:        eventService,
		AnnouncementService: announcementService,
		SubmissionService:   submissionService,
		TeamService:         teamService,
	}
}

// CreateEvent creates a new event owned by the caller
// POST /api/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req services.CreateEventInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	event, err := h.EventService.CreateEvent(c.Request.Context(), authz.SubjectFromContext(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": event, "message": "Event created successfully"})
}

// ListEvents returns published events
// GET /api/events
func (h *EventHandler) ListEvents(c *gin.Context) {
	events, err := h.EventService.ListEvents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// GetEvent returns a single event
// GET /api/events/{id}
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, err := h.EventService.GetEvent(c.Request.Context(), authz.SubjectFromContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

// UpdateEvent updates an event (organizer-owner or admin)
// PUT /api/events/{id}
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	var req services.UpdateEventInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	event, err := h.EventService.UpdateEvent(c.Request.Context(), authz.SubjectFromContext(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event, "message": "Event updated successfully"})
}

// DeleteEvent deletes an event (organizer-owner or admin)
// DELETE /api/events/{id}
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	if err := h.EventService.DeleteEvent(c.Request.Context(), authz.SubjectFromContext(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event deleted successfully"})
}

type assignJudgeRequest struct {
	JudgeID string `json:"judge_id" binding:"required"`
}

// AssignJudge assigns a judge to the event
// POST /api/events/{id}/judges
func (h *EventHandler) AssignJudge(c *gin.Context) {
	var req assignJudgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := h.EventService.AssignJudge(c.Request.Context(), authz.SubjectFromContext(c), c.Param("id"), req.JudgeID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Judge assigned successfully"})
}

// RemoveJudge removes a judge from the event
// DELETE /api/events/{id}/judges/{judge_id}
func (h *EventHandler) RemoveJudge(c *gin.Context) {
	if err := h.EventService.RemoveJudge(c.Request.Context(), authz.SubjectFromContext(c), c.Param("id"), c.Param("judge_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Judge removed successfully"})
}

// ListJudges returns an event's assigned judges
// GET /api/events/{id}/judges
func (h *EventHandler) ListJudges(c *gin.Context) {
	judges, err := h.EventService.ListJudges(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"judges": judges, "count": len(judges)})
}

// ListEventTeams returns an event's teams
// GET /api/events/{id}/teams
func (h *EventHandler) ListEventTeams(c *gin.Context) {
	teams, err := h.TeamService.ListEventTeams(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"teams": teams, "count": len(teams)})
}

// ListEventSubmissions returns an event's submissions ranked by score
// GET /api/events/{id}/submissions
func (h *EventHandler) ListEventSubmissions(c *gin.Context) {
	subs, err := h.SubmissionService.ListEventSubmissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs, "count": len(subs)})
}

// ListEventAnnouncements returns an event's announcements, public
// GET /events/{id}/announcements
func (h *EventHandler) ListEventAnnouncements(c *gin.Context) {
	anns, err := h.AnnouncementService.ListEventAnnouncements(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"announcements": anns, "count": len(anns)})
}
