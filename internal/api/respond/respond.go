// Package respond maps service errors onto HTTP responses.
package respond

import (
	"errors"
	"net/http"

	"scholarsphere/internal/doi"
	"scholarsphere/internal/domain/works"
	"scholarsphere/internal/infra/datacite"
	"scholarsphere/internal/platform/sentinel"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error writes the status and body matching err. Unexpected errors are logged
// and reported as 500 without details.
func Error(c *gin.Context, logger *zap.Logger, err error) {
	var (
		verr   *works.ValidationError
		dcVerr *datacite.ValidationError
		dcErr  *datacite.ClientError
	)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, sentinel.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Conflict", "details": err.Error()})
	case errors.Is(err, sentinel.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "Invalid state", "details": err.Error()})
	case errors.Is(err, doi.ErrInvalidResource):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verr.Messages})
	case errors.As(err, &dcVerr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": dcVerr.Error()})
	case errors.As(err, &dcErr):
		logger.Warn("datacite request failed", zap.Int("status", dcErr.StatusCode), zap.String("body", dcErr.Body))
		c.JSON(http.StatusBadGateway, gin.H{"error": "DOI registrar unavailable"})
	default:
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func Forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
}
