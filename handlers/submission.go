package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joeljohnson18227/eventflow/authz"
	"github.com/joeljohnson18227/eventflow/services"
)

type SubmissionHandler struct {
	SubmissionService *services.SubmissionService
	EvaluationService *services.EvaluationService
}

func NewSubmissionHandler(submissionService *services.SubmissionService, evaluationService *services.EvaluationService) *SubmissionHandler {
	return &SubmissionHandler{SubmissionService: submissionService, EvaluationService: evaluationService}
}

// CreateSubmission records the caller's team submission
// POST /api/submissions
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	var req services.CreateSubmissionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	sub, err := h.SubmissionService.CreateSubmission(c.Request.Context(), authz.SubjectFromContext(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"submission": sub, "message": "Submission created successfully"})
}

// GetSubmission returns a single submission
// GET /api/submissions/{id}
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	sub, err := h.SubmissionService.GetSubmission(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission": sub})
}

// UpdateSubmission edits a submission (team member or admin)
// PUT /api/submissions/{id}
func (h *SubmissionHandler) UpdateSubmission(c *gin.Context) {
	var req services.UpdateSubmissionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	sub, err := h.SubmissionService.UpdateSubmission(c.Request.Context(), authz.SubjectFromContext(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission": sub, "message": "Submission updated successfully"})
}

// Evaluate records the caller's scores for a submission
// POST /api/submissions/{id}/evaluations
func (h *SubmissionHandler) Evaluate(c *gin.Context) {
	var req services.EvaluateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	eval, err := h.EvaluationService.Evaluate(c.Request.Context(), authz.SubjectFromContext(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"evaluation": eval, "message": "Evaluation recorded"})
}

// ListEvaluations returns all evaluations for a submission
// GET /api/submissions/{id}/evaluations
func (h *SubmissionHandler) ListEvaluations(c *gin.Context) {
	evals, err := h.EvaluationService.ListEvaluations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"evaluations": evals, "count": len(evals)})
}
