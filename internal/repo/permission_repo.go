// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// DownloadPermission model.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
)

// CreatePermission inserts a new permission row. One permission exists per
// order (unique index); a second insert for the same order fails.
func CreatePermission(ctx context.Context, db *gorm.DB, p *domain.DownloadPermission) error {
	return db.WithContext(ctx).Create(p).Error
}

// GetPermission fetches the permission for (orderID, resourceID), or nil
// with no error when none exists.
func GetPermission(ctx context.Context, db *gorm.DB, orderID, resourceID string) (*domain.DownloadPermission, error) {
	var p domain.DownloadPermission
	err := db.WithContext(ctx).
		Where("order_id = ? AND resource_id = ?", orderID, resourceID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// IncrementDownloadCount counts one download against the permission. The
// update is guarded by the remaining-quota predicate so concurrent polls
// can never push download_count past max_downloads. It reports whether
// the increment was applied.
func IncrementDownloadCount(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.DownloadPermission{}).
		Where("id = ? AND download_count < max_downloads", id).
		UpdateColumn("download_count", gorm.Expr("download_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
