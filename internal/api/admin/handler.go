package admin

import (
	"context"
	"errors"
	"io"
	"net/http"

	"scholarsphere/internal/api/respond"
	"scholarsphere/internal/merge"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Merger interface {
	Merge(ctx context.Context, collectionUUID string, opts merge.Options) (*merge.Outcome, error)
}

type Handler struct {
	merger Merger
	logger *zap.Logger
}

func NewHandler(merger Merger, logger *zap.Logger) *Handler {
	return &Handler{merger: merger, logger: logger}
}

type MergeRequest struct {
	Force   bool `json:"force"`
	MintDOI bool `json:"mint_doi"`
}

type MergeResponse struct {
	WorkID   string `json:"work_id"`
	DOIError string `json:"doi_error,omitempty"`
}

// POST /admin/collections/:id/merge
func (h *Handler) MergeCollection(c *gin.Context) {
	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	out, err := h.merger.Merge(c.Request.Context(), c.Param("id"), merge.Options{Force: req.Force, MintDOI: req.MintDOI})
	switch {
	case err != nil && errors.Is(err, merge.ErrDOIAfterCommit) && out != nil:
		c.JSON(http.StatusOK, MergeResponse{WorkID: out.Work.UUID, DOIError: err.Error()})
	case err != nil:
		respond.Error(c, h.logger, err)
	case !out.Successful:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": out.Errors})
	default:
		c.JSON(http.StatusOK, MergeResponse{WorkID: out.Work.UUID})
	}
}
