package works

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"scholarsphere/internal/api/respond"
	"scholarsphere/internal/app/http/middleware"
	"scholarsphere/internal/domain/access"
	"scholarsphere/internal/domain/media"
	"scholarsphere/internal/domain/users"
	"scholarsphere/internal/domain/works"
	"scholarsphere/internal/platform/sentinel"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store interface {
	FindWork(ctx context.Context, uuid string) (*works.Work, error)
	FindWorkByID(ctx context.Context, id uint) (*works.Work, error)
	FindVersion(ctx context.Context, uuid string) (*works.WorkVersion, error)
	PublishVersion(ctx context.Context, id uint, at time.Time) error
	AddFile(ctx context.Context, versionID uint, file *media.FileResource, title string) (*works.FileVersionMembership, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, target any) error
}

type Indexer interface {
	UpdateWork(ctx context.Context, w *works.Work) error
}

type FileStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

type Handler struct {
	store      Store
	dispatcher Dispatcher
	indexer    Indexer
	files      FileStore
	logger     *zap.Logger
}

func NewHandler(st Store, dispatcher Dispatcher, indexer Indexer, files FileStore, logger *zap.Logger) *Handler {
	return &Handler{store: st, dispatcher: dispatcher, indexer: indexer, files: files, logger: logger}
}

func mustUser(c *gin.Context) (users.User, bool) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return users.User{}, false
	}
	return u, true
}

// loadVersion resolves the version in the path together with its work.
func (h *Handler) loadVersion(c *gin.Context) (*works.WorkVersion, *works.Work, bool) {
	v, err := h.store.FindVersion(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, h.logger, err)
		return nil, nil, false
	}
	w, err := h.store.FindWorkByID(c.Request.Context(), v.WorkID)
	if err != nil {
		respond.Error(c, h.logger, err)
		return nil, nil, false
	}
	return v, w, true
}

// GET /works/:id
func (h *Handler) GetWork(c *gin.Context) {
	u, ok := mustUser(c)
	if !ok {
		return
	}
	w, err := h.store.FindWork(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	policy := access.ForWork(u, w)
	if !policy.Show() {
		respond.Forbidden(c)
		return
	}
	c.JSON(http.StatusOK, toWorkDTO(w, policy.Capabilities()))
}

// POST /works/:id/doi
func (h *Handler) MintWorkDOI(c *gin.Context) {
	u, ok := mustUser(c)
	if !ok {
		return
	}
	w, err := h.store.FindWork(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	if !access.ForWork(u, w).MintDOI() {
		respond.Forbidden(c)
		return
	}
	if err := h.dispatcher.Dispatch(c.Request.Context(), w); err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, DOIResponse{ID: w.UUID, DOI: w.DOI})
}

// POST /versions/:id/doi
func (h *Handler) MintVersionDOI(c *gin.Context) {
	u, ok := mustUser(c)
	if !ok {
		return
	}
	v, w, ok := h.loadVersion(c)
	if !ok {
		return
	}
	if !access.ForWork(u, w).MintDOI() {
		respond.Forbidden(c)
		return
	}
	if err := h.dispatcher.Dispatch(c.Request.Context(), v); err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, DOIResponse{ID: v.UUID, DOI: v.DOI})
}

// GET /versions/:id/prevalidate
//
// Reports what would block publishing. The rights error is left out because
// the deposit form asks for rights on its last step.
func (h *Handler) Prevalidate(c *gin.Context) {
	u, ok := mustUser(c)
	if !ok {
		return
	}
	v, w, ok := h.loadVersion(c)
	if !ok {
		return
	}
	if !access.ForWork(u, w).Edit() {
		respond.Forbidden(c)
		return
	}

	errs := []string{}
	for _, msg := range works.PublishErrors(*v) {
		if msg != rightsBlank {
			errs = append(errs, msg)
		}
	}
	c.JSON(http.StatusOK, PrevalidateResponse{Valid: len(errs) == 0, Errors: errs})
}

const rightsBlank = "Rights can't be blank"

// POST /versions/:id/publish
func (h *Handler) Publish(c *gin.Context) {
	u, ok := mustUser(c)
	if !ok {
		return
	}
	v, w, ok := h.loadVersion(c)
	if !ok {
		return
	}
	if !access.ForWork(u, w).Edit() {
		respond.Forbidden(c)
		return
	}
	if !v.Draft() {
		c.JSON(http.StatusConflict, gin.H{"error": "Version is already published"})
		return
	}
	if errs := works.PublishErrors(*v); len(errs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": errs})
		return
	}

	ctx := c.Request.Context()
	if err := h.store.PublishVersion(ctx, v.ID, time.Now()); err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	w, err := h.store.FindWorkByID(ctx, w.ID)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	if err := h.indexer.UpdateWork(ctx, w); err != nil {
		h.logger.Error("index published work", zap.String("work", w.UUID), zap.Error(err))
	}
	c.JSON(http.StatusOK, toWorkDTO(w, access.ForWork(u, w).Capabilities()))
}

// POST /versions/:id/files
func (h *Handler) UploadFile(c *gin.Context) {
	u, ok := mustUser(c)
	if !ok {
		return
	}
	v, w, ok := h.loadVersion(c)
	if !ok {
		return
	}
	if !access.ForWork(u, w).Edit() {
		respond.Forbidden(c)
		return
	}
	if !v.Draft() {
		c.JSON(http.StatusConflict, gin.H{"error": "Files can only be added to a draft version"})
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file"})
		return
	}
	f, err := header.Open()
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	defer f.Close()

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		respond.Error(c, h.logger, err)
		return
	}

	name := filepath.Base(header.Filename)
	title := c.PostForm("title")
	if title == "" {
		title = name
	}

	ctx := c.Request.Context()
	file := &media.FileResource{
		ID:          uuid.NewString(),
		Filename:    name,
		ContentType: mime.String(),
		Size:        header.Size,
	}
	file.StorageKey = "files/" + file.ID + "/" + name

	if err := h.files.Upload(ctx, file.StorageKey, f, header.Size, file.ContentType); err != nil {
		respond.Error(c, h.logger, err)
		return
	}

	m, err := h.store.AddFile(ctx, v.ID, file, title)
	if err != nil {
		if derr := h.files.Delete(ctx, file.StorageKey); derr != nil {
			h.logger.Warn("remove orphaned upload", zap.String("key", file.StorageKey), zap.Error(derr))
		}
		if errors.Is(err, sentinel.ErrConflict) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"File " + title + " has already been taken"}})
			return
		}
		respond.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toFileDTO(*m))
}
