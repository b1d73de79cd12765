package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joeljohnson18227/eventflow/authz"
)

// respondError renders a service error with the status the authz package
// maps it to, keeping denial bodies uniform across handlers. Unmatched
// errors are logged and answered with a generic body so SQL detail never
// reaches the client.
func respondError(c *gin.Context, err error) {
	status := authz.StatusForError(err)
	if status == http.StatusInternalServerError {
		log.Printf("Internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
