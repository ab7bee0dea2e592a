package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/fingermelody/ai-generation-codebuddy/internal/repo"
)

// Overview is the admin statistics snapshot.
type Overview struct {
	Tasks        map[string]int64 `json:"tasks"`
	Orders       map[string]int64 `json:"orders"`
	RevenueCents int64            `json:"revenue_cents"`
}

// StatsService computes aggregate counters for the admin overview.
type StatsService struct {
	DB *gorm.DB
}

// NewStatsService wires the stats service.
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db}
}

// Overview returns task and order counts by status plus paid revenue.
func (s *StatsService) Overview(ctx context.Context) (*Overview, error) {
	tasks, err := repo.CountTasksByStatus(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	orders, err := repo.CountOrdersByStatus(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	revenue, err := repo.SumPaidAmount(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}
	return &Overview{Tasks: tasks, Orders: orders, RevenueCents: revenue}, nil
}
