package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joeljohnson18227/eventflow/authz"
	"github.com/joeljohnson18227/eventflow/services"
)

type TeamHandler struct {
	TeamService *services.TeamService
}

func NewTeamHandler(teamService *services.TeamService) *TeamHandler {
	return &TeamHandler{TeamService: teamService}
}

// CreateTeam creates a team with the caller as leader
// POST /api/teams
func (h *TeamHandler) CreateTeam(c *gin.Context) {
	var req services.CreateTeamInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	team, err := h.TeamService.CreateTeam(c.Request.Context(), authz.SubjectFromContext(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"team": team, "message": "Team created successfully"})
}

// GetTeam returns a team with its members
// GET /api/teams/{id}
func (h *TeamHandler) GetTeam(c *gin.Context) {
	team, err := h.TeamService.GetTeam(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"team": team})
}

type joinTeamRequest struct {
	InviteCode string `json:"invite_code" binding:"required"`
}

// JoinTeam adds the caller to the team behind an invite code
// POST /api/teams/join
func (h *TeamHandler) JoinTeam(c *gin.Context) {
	var req joinTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	team, err := h.TeamService.JoinTeam(c.Request.Context(), authz.SubjectFromContext(c), req.InviteCode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"team": team, "message": "Joined team successfully"})
}

// LeaveTeam removes the caller from a team
// POST /api/teams/{id}/leave
func (h *TeamHandler) LeaveTeam(c *gin.Context) {
	if err := h.TeamService.LeaveTeam(c.Request.Context(), authz.SubjectFromContext(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left team successfully"})
}

// UpdateTeam renames a team (leader or admin)
// PUT /api/teams/{id}
func (h *TeamHandler) UpdateTeam(c *gin.Context) {
	var req services.UpdateTeamInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	team, err := h.TeamService.UpdateTeam(c.Request.Context(), authz.SubjectFromContext(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"team": team, "message": "Team updated successfully"})
}

// DisbandTeam archives a team (leader or admin)
// DELETE /api/teams/{id}
func (h *TeamHandler) DisbandTeam(c *gin.Context) {
	if err := h.TeamService.DisbandTeam(c.Request.Context(), authz.SubjectFromContext(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Team disbanded"})
}

type assignMentorRequest struct {
	MentorID string `json:"mentor_id" binding:"required"`
}

// AssignMentor attaches a mentor to the team (event organizer or admin)
// POST /api/teams/{id}/mentor
func (h *TeamHandler) AssignMentor(c *gin.Context) {
	var req assignMentorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := h.TeamService.AssignMentor(c.Request.Context(), authz.SubjectFromContext(c), c.Param("id"), req.MentorID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Mentor assigned successfully"})
}
