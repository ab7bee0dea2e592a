// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for model
// profiles and their sealed credentials.
//
// Credentials are stored in a separate table and are only reachable through
// GetModelCredential; every listing function in this file selects from the
// profiles table alone, so sealed key material can never leak into a list
// response by accident.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
)

// CreateModelProfile inserts a profile and its credential row in one
// transaction.
func CreateModelProfile(ctx context.Context, db *gorm.DB, m *domain.ModelProfile, cred *domain.ModelCredential) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Create(cred).Error
	})
}

// GetModelProfile fetches a profile by ID, or ErrNotFound. Soft-deleted
// profiles are treated as missing.
func GetModelProfile(ctx context.Context, db *gorm.DB, id string) (*domain.ModelProfile, error) {
	var m domain.ModelProfile
	err := db.WithContext(ctx).
		Where("id = ? AND status <> ?", id, domain.ModelDeleted).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetModelProfileByName fetches a non-deleted profile by exact name, or
// ErrNotFound.
func GetModelProfileByName(ctx context.Context, db *gorm.DB, name string) (*domain.ModelProfile, error) {
	var m domain.ModelProfile
	err := db.WithContext(ctx).
		Where("name = ? AND status <> ?", name, domain.ModelDeleted).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListModelProfiles returns all non-deleted profiles, newest first.
func ListModelProfiles(ctx context.Context, db *gorm.DB) ([]domain.ModelProfile, error) {
	var out []domain.ModelProfile
	err := db.WithContext(ctx).
		Where("status <> ?", domain.ModelDeleted).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// UpdateModelProfile applies a partial update to a non-deleted profile.
// Returns ErrNotFound when the profile is missing or deleted.
func UpdateModelProfile(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.ModelProfile{}).
		Where("id = ? AND status <> ?", id, domain.ModelDeleted).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetModelStatus moves a non-deleted profile to the given status.
// Returns ErrNotFound when the profile is missing or deleted.
func SetModelStatus(ctx context.Context, db *gorm.DB, id, status string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.ModelProfile{}).
		Where("id = ? AND status <> ?", id, domain.ModelDeleted).
		Updates(map[string]any{"status": status, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SoftDeleteModelProfile marks the profile deleted and hard-removes its
// credential row, in one transaction. Deleting twice is not an error.
func SoftDeleteModelProfile(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.ModelProfile{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": domain.ModelDeleted, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("model_id = ?", id).Delete(&domain.ModelCredential{}).Error
	})
}

// GetModelCredential fetches the sealed credential pair for a model, or
// nil with no error when the model has none.
func GetModelCredential(ctx context.Context, db *gorm.DB, modelID string) (*domain.ModelCredential, error) {
	var c domain.ModelCredential
	err := db.WithContext(ctx).
		Where("model_id = ?", modelID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateModelCredential applies a partial update to a model's credential row.
func UpdateModelCredential(ctx context.Context, db *gorm.DB, modelID string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.ModelCredential{}).
		Where("model_id = ?", modelID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
