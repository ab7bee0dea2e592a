// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the OrderKey
// model used to implement safe-retry semantics for order creation.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
)

// ErrDuplicate indicates that an order key already exists for the given
// (user_id, resource_id, key) tuple.
var ErrDuplicate = errors.New("duplicate")

// GetOrderKey returns a non-expired record or ErrNotFound.
func GetOrderKey(ctx context.Context, db *gorm.DB, userID, resourceID, key string, now time.Time) (*domain.OrderKey, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.OrderKey
	err := db.WithContext(ctx).
		Where("user_id = ? AND resource_id = ? AND key = ? AND expires_at > ?", userID, resourceID, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// OrderKeyExists reports whether any non-expired key record exists for
// (user_id, key), regardless of resource. Used by the transport layer to
// flag replays before the body is parsed.
func OrderKeyExists(ctx context.Context, db *gorm.DB, userID, key string, now time.Time) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, nil
	}
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.OrderKey{}).
		Where("user_id = ? AND key = ? AND expires_at > ?", userID, key, now).
		Count(&n).Error
	return n > 0, err
}

// CreateOrderKey inserts a record and returns ErrDuplicate on unique violation.
func CreateOrderKey(ctx context.Context, db *gorm.DB, userID, resourceID, key, orderID string, ttl time.Duration) (*domain.OrderKey, error) {
	now := time.Now().UTC()
	rec := &domain.OrderKey{
		ID:         uuid.NewString(),
		UserID:     userID,
		ResourceID: resourceID,
		Key:        key,
		OrderID:    orderID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}
