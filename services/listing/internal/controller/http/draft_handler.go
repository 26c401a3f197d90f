package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"troc-marketplace/pkg/logger"
	"troc-marketplace/services/listing/internal/entity"
	"troc-marketplace/services/listing/internal/form"
	"troc-marketplace/services/listing/internal/repo/persistent"
	"troc-marketplace/services/listing/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

const maxPhotoSize = 10 << 20

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type DraftHandler struct {
	draftUseCase usecase.DraftUseCase
	redisClient  *redis.Client
	logger       *logger.Logger
}

func NewDraftHandler(draftUseCase usecase.DraftUseCase, redisClient *redis.Client, logger *logger.Logger) *DraftHandler {
	return &DraftHandler{
		draftUseCase: draftUseCase,
		redisClient:  redisClient,
		logger:       logger,
	}
}

// CreateDraft godoc
// @Summary      Start a listing draft
// @Description  Open a new "create listing" form. Anonymous callers get a draft too, but cannot upload or submit.
// @Tags         drafts
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  usecase.Outcome
// @Router       /drafts [post]
func (h *DraftHandler) CreateDraft(c *gin.Context) {
	out, err := h.draftUseCase.CreateDraft(c.Request.Context(), profileFromContext(c))
	h.respond(c, http.StatusCreated, out, err)
}

// GetDraft godoc
// @Summary      Get a listing draft
// @Tags         drafts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Success      200  {object}  usecase.Outcome
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /drafts/{id} [get]
func (h *DraftHandler) GetDraft(c *gin.Context) {
	out, err := h.draftUseCase.GetDraft(c.Request.Context(), c.Param("id"), profileFromContext(c))
	h.respond(c, http.StatusOK, out, err)
}

// UpdateDraft godoc
// @Summary      Edit draft fields
// @Description  Only the fields present in the body are changed. Price is kept as typed and checked on submit.
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Param        request body usecase.FieldUpdate true "Fields to change"
// @Success      200  {object}  usecase.Outcome
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /drafts/{id} [patch]
func (h *DraftHandler) UpdateDraft(c *gin.Context) {
	var req usecase.FieldUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.draftUseCase.UpdateFields(c.Request.Context(), c.Param("id"), profileFromContext(c), req)
	h.respond(c, http.StatusOK, out, err)
}

// UploadPhotos godoc
// @Summary      Add photos to a draft
// @Description  Uploads the picked files in order. Files beyond the photo limit are dropped; a failed upload is reported and skipped.
// @Tags         drafts
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Param        photos formData file true "Image files, multiple allowed"
// @Success      200  {object}  usecase.Outcome
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /drafts/{id}/photos [post]
func (h *DraftHandler) UploadPhotos(c *gin.Context) {
	multipartForm, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse form"})
		return
	}

	headers := multipartForm.File["photos"]
	files := make([]form.File, 0, len(headers))
	for _, header := range headers {
		file, err := readPhoto(header)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		files = append(files, file)
	}

	out, err := h.draftUseCase.AddPhotos(c.Request.Context(), c.Param("id"), profileFromContext(c), files)
	h.respond(c, http.StatusOK, out, err)
}

// RemovePhoto godoc
// @Summary      Remove a photo from a draft
// @Description  The uploaded object is left in storage.
// @Tags         drafts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Param        index path int true "Photo position, starting at 0"
// @Success      200  {object}  usecase.Outcome
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /drafts/{id}/photos/{index} [delete]
func (h *DraftHandler) RemovePhoto(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid photo index"})
		return
	}

	out, err := h.draftUseCase.RemovePhoto(c.Request.Context(), c.Param("id"), profileFromContext(c), index)
	h.respond(c, http.StatusOK, out, err)
}

// SubmitDraft godoc
// @Summary      Publish a draft as a listing
// @Description  Runs the submission checks and inserts the listing. On success the draft is discarded and a redirect route is returned.
// @Tags         drafts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Success      201  {object}  usecase.Outcome
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /drafts/{id}/submit [post]
func (h *DraftHandler) SubmitDraft(c *gin.Context) {
	out, err := h.draftUseCase.Submit(c.Request.Context(), c.Param("id"), profileFromContext(c))
	h.respond(c, http.StatusCreated, out, err)
}

// DiscardDraft godoc
// @Summary      Abandon a draft
// @Tags         drafts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Draft ID"
// @Success      200  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /drafts/{id} [delete]
func (h *DraftHandler) DiscardDraft(c *gin.Context) {
	if err := h.draftUseCase.DiscardDraft(c.Request.Context(), c.Param("id"), profileFromContext(c)); err != nil {
		h.respond(c, http.StatusOK, nil, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Draft discarded"})
}

// GetPreview godoc
// @Summary      Get a photo preview
// @Description  Serves the local preview of a picked photo while the draft is open.
// @Tags         drafts
// @Produce      image/png
// @Produce      image/jpeg
// @Param        handle path string true "Preview handle"
// @Success      200  {file}  file
// @Failure      404  {object}  map[string]string
// @Router       /previews/{handle} [get]
func (h *DraftHandler) GetPreview(c *gin.Context) {
	preview, err := h.draftUseCase.GetPreview(c.Request.Context(), c.Request.URL.Path)
	if err != nil {
		h.respond(c, http.StatusOK, nil, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, preview.ContentType, preview.Content)
}

// GetListing godoc
// @Summary      Get a listing
// @Tags         listings
// @Produce      json
// @Param        id path string true "Listing ID"
// @Success      200  {object}  entity.Listing
// @Failure      404  {object}  map[string]string
// @Router       /listings/{id} [get]
func (h *DraftHandler) GetListing(c *gin.Context) {
	listing, err := h.draftUseCase.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respond(c, http.StatusOK, nil, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// ListMyListings godoc
// @Summary      List my listings
// @Description  Listings published by the authenticated user, newest first
// @Tags         listings
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Number of listings to return (max 100)"
// @Param        offset query int false "Offset for pagination"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /listings/mine [get]
func (h *DraftHandler) ListMyListings(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsedOffset, err := strconv.Atoi(offsetStr); err == nil && parsedOffset >= 0 {
			offset = parsedOffset
		}
	}

	listings, err := h.draftUseCase.ListMyListings(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list listings for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list listings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listings": listings,
		"count":    len(listings),
		"offset":   offset,
	})
}

// DraftEvents streams the draft's notifications over a websocket as they are
// raised, for clients that keep the form open in several places.
func (h *DraftHandler) DraftEvents(c *gin.Context) {
	draftID := c.Param("id")
	if _, err := h.draftUseCase.GetDraft(c.Request.Context(), draftID, profileFromContext(c)); err != nil {
		h.respond(c, http.StatusOK, nil, err)
		return
	}
	if h.redisClient == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Live notifications are unavailable"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection to WebSocket: %v", err)
		return
	}
	defer conn.Close()

	h.logger.Info("WebSocket connected for draft %s", draftID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pubsub := h.redisClient.Subscribe(ctx, usecase.NotificationChannel(draftID))
	defer pubsub.Close()

	redisChannel := pubsub.Channel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisChannel:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
					h.logger.Error("Failed to write WebSocket message: %v", err)
					return
				}
			}
		}
	}()

	for {
		messageType, _, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("WebSocket read error: %v", err)
			}
			break
		}
		if messageType == websocket.CloseMessage {
			break
		}
	}

	h.logger.Info("WebSocket disconnected for draft %s", draftID)
}

// respond writes out with status on success. On failure the error is mapped
// to a status and the draft state is still returned, so the client can show
// the notifications that explain the failure.
func (h *DraftHandler) respond(c *gin.Context, status int, out *usecase.Outcome, err error) {
	if err == nil {
		c.JSON(status, out)
		return
	}

	status = statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}

	body := gin.H{"error": err.Error()}
	if out != nil {
		body["draft_id"] = out.DraftID
		body["draft"] = out.Draft
		body["notifications"] = out.Notifications
		if out.Batch != nil {
			body["batch"] = out.Batch
		}
	}
	c.JSON(status, body)
}

func statusFor(err error) int {
	var insertErr *form.InsertError
	switch {
	case errors.Is(err, form.ErrMissingIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, usecase.ErrDraftForbidden):
		return http.StatusForbidden
	case errors.Is(err, usecase.ErrDraftNotFound),
		errors.Is(err, usecase.ErrPreviewNotFound),
		errors.Is(err, persistent.ErrListingNotFound):
		return http.StatusNotFound
	case errors.As(err, &insertErr):
		return http.StatusInternalServerError
	case form.IsValidation(err),
		errors.Is(err, form.ErrPhotoLimitReached),
		errors.Is(err, form.ErrPhotoIndex),
		errors.Is(err, form.ErrInvalidType):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func profileFromContext(c *gin.Context) *entity.Profile {
	userID := c.GetString("user_id")
	if userID == "" {
		return nil
	}
	return &entity.Profile{ID: userID, Role: c.GetString("role")}
}

func readPhoto(header *multipart.FileHeader) (form.File, error) {
	if header.Size > maxPhotoSize {
		return form.File{}, fmt.Errorf("%s is larger than %d MB", header.Filename, maxPhotoSize>>20)
	}

	src, err := header.Open()
	if err != nil {
		return form.File{}, fmt.Errorf("failed to open %s: %w", header.Filename, err)
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return form.File{}, fmt.Errorf("failed to read %s: %w", header.Filename, err)
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(content)
	}

	return form.File{Name: header.Filename, ContentType: contentType, Content: content}, nil
}
