// Generation HTTP handlers.
//
// This file exposes the asynchronous generation endpoints:
//   - POST /generations/text2img     (start a text-to-image task)
//   - POST /generations/img2model3d  (start an image-to-3D task)
//   - GET  /tasks/{id}/progress      (poll task progress)
//
// Handlers are transport-thin: they validate input shape, call application
// services and translate sentinel errors into HTTP responses. Both start
// endpoints return 202 with the pending task; clients poll for progress.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
	"github.com/fingermelody/ai-generation-codebuddy/internal/services"
)

//
// Service contracts (context-aware)
//

// GenerationService defines the task lifecycle operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type GenerationService interface {
	// StartTextToImage enqueues a text-to-image task and returns it pending.
	StartTextToImage(ctx context.Context, in services.TextToImageInput) (*domain.Task, error)
	// StartImageToModel3D enqueues an image-to-3D task and returns it pending.
	StartImageToModel3D(ctx context.Context, in services.ImageToModelInput) (*domain.Task, error)
	// Progress returns the polling view of a task.
	Progress(ctx context.Context, taskID string) (*services.TaskView, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for generations, orders, payments and
// the model catalog. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	genSvc   GenerationService
	orderSvc OrderService
	modelSvc ModelService
	statsSvc StatsService
}

// New constructs a Handlers instance bound to the given services.
func New(genSvc GenerationService, orderSvc OrderService, modelSvc ModelService, statsSvc StatsService) *Handlers {
	return &Handlers{genSvc: genSvc, orderSvc: orderSvc, modelSvc: modelSvc, statsSvc: statsSvc}
}

// userID extracts the authenticated user id from the Gin context (set by
// upstream middleware), falling back to the X-User-ID header and finally
// "demo-user".
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := c.GetHeader("X-User-ID"); h != "" {
			return h
		}
	}
	return "demo-user"
}

// svcError translates service sentinel errors into HTTP error envelopes.
// Unknown errors become 500s with the raw message, which is safe here
// because services wrap storage errors with operation context only.
func svcError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrModelUnavailable), errors.Is(err, services.ErrCredentialsMissing):
		fail(c, http.StatusServiceUnavailable, ErrCodeModelUnavailable, err.Error())
	case errors.Is(err, services.ErrUnsupportedMethod):
		fail(c, http.StatusBadRequest, ErrCodeUnsupportedPay, err.Error())
	case errors.Is(err, services.ErrQueueSaturated):
		c.Header("Retry-After", "5")
		fail(c, http.StatusTooManyRequests, ErrCodeQueueSaturated, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// TextToImage starts a text-to-image generation task.
func (h *Handlers) TextToImage(c *gin.Context) {
	var req services.TextToImageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	t, err := h.genSvc.StartTextToImage(c.Request.Context(), req)
	if err != nil {
		svcError(c, err)
		return
	}
	ok(c, http.StatusAccepted, t)
}

// ImageToModel3D starts an image-to-3D generation task.
func (h *Handlers) ImageToModel3D(c *gin.Context) {
	var req services.ImageToModelInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	t, err := h.genSvc.StartImageToModel3D(c.Request.Context(), req)
	if err != nil {
		svcError(c, err)
		return
	}
	ok(c, http.StatusAccepted, t)
}

// TaskProgress returns the current progress view of a task.
func (h *Handlers) TaskProgress(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "task id must be a UUID")
		return
	}
	v, err := h.genSvc.Progress(c.Request.Context(), id)
	if err != nil {
		svcError(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}
