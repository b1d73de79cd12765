package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joeljohnson18227/eventflow/authz"
	"github.com/joeljohnson18227/eventflow/services"
)

type UserHandler struct {
	UserService        *services.UserService
	CertificateService *services.CertificateService
}

func NewUserHandler(userService *services.UserService, certificateService *services.CertificateService) *UserHandler {
	return &UserHandler{UserService: userService, CertificateService: certificateService}
}

// ListUsers returns all accounts (admin)
// GET /api/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.UserService.ListUsers(c.Request.Context(), authz.SubjectFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// UpdateUser edits an account (admin)
// PUT /api/users/{id}
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req services.UpdateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	user, err := h.UserService.UpdateUser(c.Request.Context(), authz.SubjectFromContext(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "message": "User updated successfully"})
}

// DeleteUser deactivates an account (admin)
// DELETE /api/users/{id}
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.UserService.DeleteUser(c.Request.Context(), authz.SubjectFromContext(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deactivated"})
}

// Profile returns a user's public profile: no email, no account flags
// GET /profile/{id}
func (h *UserHandler) Profile(c *gin.Context) {
	user, err := h.UserService.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": gin.H{
		"id":   user.ID,
		"name": user.Name,
		"role": user.Role,
	}})
}

// ListMyCertificates returns the caller's certificates
// GET /api/certificates
func (h *UserHandler) ListMyCertificates(c *gin.Context) {
	subject := authz.SubjectFromContext(c)
	if subject.Anonymous() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	certs, err := h.CertificateService.ListUserCertificates(c.Request.Context(), subject.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificates": certs, "count": len(certs)})
}

// GenerateCertificate issues a certificate for an event (organizer-owner or admin)
// POST /api/events/{id}/certificates
func (h *UserHandler) GenerateCertificate(c *gin.Context) {
	var req services.GenerateCertificateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	cert, err := h.CertificateService.GenerateCertificate(c.Request.Context(), authz.SubjectFromContext(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"certificate": cert, "message": "Certificate issued"})
}
