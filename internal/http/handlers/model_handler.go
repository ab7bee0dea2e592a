// Model catalog and admin HTTP handlers.
//
// Public clients see only the active-model projection; the admin group
// manages the full catalog and reads aggregate statistics. Credential
// material never appears in any response from these endpoints.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
	"github.com/fingermelody/ai-generation-codebuddy/internal/services"
)

// ModelService defines the catalog operations consumed by HTTP handlers.
type ModelService interface {
	// List returns the public projection of active models.
	List(ctx context.Context) ([]services.PublicModel, error)
	// ListAdmin returns full profiles, active and inactive.
	ListAdmin(ctx context.Context) ([]domain.ModelProfile, error)
	// Add registers a model with its sealed credentials.
	Add(ctx context.Context, in services.ModelInput) (*domain.ModelProfile, error)
	// Update applies a partial update, optionally rotating credentials.
	Update(ctx context.Context, id string, in services.ModelInput) (*domain.ModelProfile, error)
	// ToggleStatus flips a model between active and inactive.
	ToggleStatus(ctx context.Context, id string) (*domain.ModelProfile, error)
	// Delete soft-deletes a model and destroys its credentials.
	Delete(ctx context.Context, id string) error
}

// StatsService defines the admin overview aggregation.
type StatsService interface {
	Overview(ctx context.Context) (*services.Overview, error)
}

// ListModels returns the active models available for generation requests.
func (h *Handlers) ListModels(c *gin.Context) {
	models, err := h.modelSvc.List(c.Request.Context())
	if err != nil {
		svcError(c, err)
		return
	}
	ok(c, http.StatusOK, models)
}

// AdminListModels returns the full catalog for administrators.
func (h *Handlers) AdminListModels(c *gin.Context) {
	models, err := h.modelSvc.ListAdmin(c.Request.Context())
	if err != nil {
		svcError(c, err)
		return
	}
	ok(c, http.StatusOK, models)
}

// AdminCreateModel registers a new model profile.
func (h *Handlers) AdminCreateModel(c *gin.Context) {
	var req services.ModelInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	m, err := h.modelSvc.Add(c.Request.Context(), req)
	if err != nil {
		svcError(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

// AdminUpdateModel applies a partial update to a model profile.
func (h *Handlers) AdminUpdateModel(c *gin.Context) {
	var req services.ModelInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	m, err := h.modelSvc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		svcError(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// AdminToggleModelStatus flips a model between active and inactive.
func (h *Handlers) AdminToggleModelStatus(c *gin.Context) {
	m, err := h.modelSvc.ToggleStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		svcError(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// AdminDeleteModel soft-deletes a model profile.
func (h *Handlers) AdminDeleteModel(c *gin.Context) {
	if err := h.modelSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		svcError(c, err)
		return
	}
	noContent(c)
}

// AdminStats returns task and order counts plus paid revenue.
func (h *Handlers) AdminStats(c *gin.Context) {
	stats, err := h.statsSvc.Overview(c.Request.Context())
	if err != nil {
		svcError(c, err)
		return
	}
	ok(c, http.StatusOK, stats)
}
