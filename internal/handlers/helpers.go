package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/teamflow-dev/teamflow/internal/authz"
	"gorm.io/gorm"
)

// respondAccessError translates store and authorization failures into the
// client-facing taxonomy. Non-members get the same 404 as a missing
// resource so workspace existence cannot be probed; 403 is reserved for
// members whose role is below the policy minimum. Anything unexpected is
// logged with context and surfaced as a bare 500.
func respondAccessError(ctx *gin.Context, err error, resource string) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, authz.ErrNotAMember):
		ctx.JSON(http.StatusNotFound, gin.H{"error": resource + " not found"})
	case errors.Is(err, authz.ErrForbidden):
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	default:
		log.Printf("Unexpected error accessing %s: %v", resource, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
