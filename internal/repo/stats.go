// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the admin overview endpoint. Each function is context-aware and safe to
// call from services or handlers.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
)

// CountTasksByStatus returns the number of tasks per status string.
// Statuses with no rows are simply absent from the map.
func CountTasksByStatus(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	return countByStatus(ctx, db, &domain.Task{})
}

// CountOrdersByStatus returns the number of orders per status string.
func CountOrdersByStatus(ctx context.Context, db *gorm.DB) (map[string]int64, error) {
	return countByStatus(ctx, db, &domain.Order{})
}

// SumPaidAmount returns the total amount, in cents, across paid orders.
func SumPaidAmount(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("status = ?", domain.OrderPaid).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// countByStatus groups any status-bearing model by its status column.
func countByStatus(ctx context.Context, db *gorm.DB, model any) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := db.WithContext(ctx).
		Model(model).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
