// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Task model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a task is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Terminal statuses are enforced at this layer: UpdateTaskFields refuses to
// touch rows that are already completed or failed, so a late write from a
// worker can never mutate a terminal task.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// taskTerminalGuard excludes terminal rows from mutation queries.
const taskTerminalGuard = "status NOT IN ('completed','failed')"

// CreateTask inserts a new Task row. The caller provides the ID and
// timestamps; nothing is defaulted here.
func CreateTask(ctx context.Context, db *gorm.DB, t *domain.Task) error {
	return db.WithContext(ctx).Create(t).Error
}

// GetTask fetches a task by ID, or ErrNotFound if missing.
func GetTask(ctx context.Context, db *gorm.DB, id string) (*domain.Task, error) {
	var t domain.Task
	if err := db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTaskFields applies a partial update to a non-terminal task.
// It returns ErrNotFound when the task does not exist or has already
// reached a terminal status (the row is then immutable).
func UpdateTaskFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("id = ?", id).
		Where(taskTerminalGuard).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListStuckTasks returns all tasks that are neither completed nor failed,
// oldest first. Used at startup to re-enqueue work that a previous process
// abandoned mid-flight.
func ListStuckTasks(ctx context.Context, db *gorm.DB) ([]domain.Task, error) {
	var out []domain.Task
	err := db.WithContext(ctx).
		Where(taskTerminalGuard).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
