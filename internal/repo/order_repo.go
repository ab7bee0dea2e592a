// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Order
// model and the paid-transition that mints a download permission.
//
// The two mutation paths here are both guarded compare-and-set updates:
//
//   - ExpireOrder flips pending→expired only while the row is still pending.
//   - MarkOrderPaid flips pending→paid and creates the order's single
//     DownloadPermission inside one transaction. A concurrent or redelivered
//     notification loses the guarded update (RowsAffected == 0) and the
//     whole transaction becomes a no-op, which is what makes the payment
//     callback idempotent at the storage level.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
)

// CreateOrder inserts a new Order row.
func CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	return db.WithContext(ctx).Create(o).Error
}

// GetOrder fetches an order by ID, or ErrNotFound if missing.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	if err := db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders returns a page of orders ordered by creation time descending.
func ListOrders(ctx context.Context, db *gorm.DB, limit, offset int) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountOrders returns the total number of orders.
func CountOrders(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Order{}).Count(&total).Error
	return total, err
}

// ExpireOrder flips a pending order to expired. It reports whether the
// transition was applied; false means the order was missing or no longer
// pending, and the caller should re-read rather than assume.
func ExpireOrder(ctx context.Context, db *gorm.DB, id string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status = ?", id, domain.OrderPending).
		Updates(map[string]any{
			"status":     domain.OrderExpired,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkOrderPaid transitions a pending order to paid and mints its download
// permission in one transaction. It reports whether this call applied the
// transition; false with a nil error means another writer already moved the
// order out of pending (redelivered notification), in which case nothing
// was written.
func MarkOrderPaid(ctx context.Context, db *gorm.DB, id, transactionID string, paidAt time.Time, perm *domain.DownloadPermission) (bool, error) {
	applied := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Order{}).
			Where("id = ? AND status = ?", id, domain.OrderPending).
			Updates(map[string]any{
				"status":         domain.OrderPaid,
				"transaction_id": transactionID,
				"paid_at":        paidAt,
				"updated_at":     paidAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true
		return tx.Create(perm).Error
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
