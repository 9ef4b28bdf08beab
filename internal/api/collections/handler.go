package collections

import (
	"context"
	"net/http"
	"slices"

	"scholarsphere/internal/api/respond"
	"scholarsphere/internal/app/http/middleware"
	"scholarsphere/internal/domain/collections"
	"scholarsphere/internal/domain/users"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Store interface {
	FindCollection(ctx context.Context, uuid string) (*collections.Collection, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, target any) error
}

type Handler struct {
	store      Store
	dispatcher Dispatcher
	logger     *zap.Logger
}

func NewHandler(st Store, dispatcher Dispatcher, logger *zap.Logger) *Handler {
	return &Handler{store: st, dispatcher: dispatcher, logger: logger}
}

type WorkRef struct {
	ID       string `json:"id"`
	WorkType string `json:"work_type"`
	Title    string `json:"title,omitempty"`
}

type CollectionDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Keyword     []string  `json:"keyword"`
	Creators    []string  `json:"creators"`
	DOI         *string   `json:"doi"`
	Works       []WorkRef `json:"works"`
}

func toCollectionDTO(c *collections.Collection) CollectionDTO {
	dto := CollectionDTO{
		ID:          c.UUID,
		Title:       c.Title,
		Description: c.Description,
		Keyword:     append([]string{}, c.Keyword...),
		Creators:    make([]string, 0, len(c.Creators)),
		DOI:         c.DOI,
		Works:       make([]WorkRef, 0, len(c.Works)),
	}
	for _, a := range c.Creators {
		dto.Creators = append(dto.Creators, a.DisplayName)
	}
	for _, w := range c.Works {
		ref := WorkRef{ID: w.UUID, WorkType: w.WorkType}
		if v := w.LatestVersion(); v != nil {
			ref.Title = v.Title
		}
		dto.Works = append(dto.Works, ref)
	}
	return dto
}

// canEdit mirrors the work policy: depositor, edit access or admin.
func canEdit(u users.User, c *collections.Collection) bool {
	if u.Admin {
		return true
	}
	if u.ActorID != 0 && c.DepositorID == u.ActorID {
		return true
	}
	if u.AccessID != "" && slices.Contains(c.EditUsers, u.AccessID) {
		return true
	}
	for _, g := range u.Groups {
		if slices.Contains(c.EditGroups, g) {
			return true
		}
	}
	return false
}

// GET /collections/:id
func (h *Handler) GetCollection(c *gin.Context) {
	col, err := h.store.FindCollection(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toCollectionDTO(col))
}

// POST /collections/:id/doi
func (h *Handler) MintDOI(c *gin.Context) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	col, err := h.store.FindCollection(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	if !canEdit(u, col) {
		respond.Forbidden(c)
		return
	}
	if err := h.dispatcher.Dispatch(c.Request.Context(), col); err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": col.UUID, "doi": col.DOI})
}
