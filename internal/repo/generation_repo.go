// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Generation
// rows, the durable artifacts (images, 3D models) produced by tasks and
// referenced by orders.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
)

// CreateGeneration inserts a new generated-resource row.
func CreateGeneration(ctx context.Context, db *gorm.DB, g *domain.Generation) error {
	return db.WithContext(ctx).Create(g).Error
}

// GetGeneration fetches a resource by ID, or ErrNotFound if missing.
func GetGeneration(ctx context.Context, db *gorm.DB, id string) (*domain.Generation, error) {
	var g domain.Generation
	if err := db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGenerationsByTask returns all resources produced by one task,
// oldest first.
func ListGenerationsByTask(ctx context.Context, db *gorm.DB, taskID string) ([]domain.Generation, error) {
	var out []domain.Generation
	err := db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
