package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
	"github.com/fingermelody/ai-generation-codebuddy/internal/secrets"
	"github.com/fingermelody/ai-generation-codebuddy/internal/worker"
)

const testMasterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// newTestDB opens a throwaway SQLite database with all tables migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	err = db.AutoMigrate(
		&domain.Task{},
		&domain.Generation{},
		&domain.Order{},
		&domain.DownloadPermission{},
		&domain.ModelProfile{},
		&domain.ModelCredential{},
		&domain.OrderKey{},
	)
	if err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestBox(t *testing.T) *secrets.Box {
	t.Helper()
	box, err := secrets.New(testMasterKey)
	if err != nil {
		t.Fatalf("secrets.New: %v", err)
	}
	return box
}

// seedModel inserts an active model profile with sealed test credentials.
func seedModel(t *testing.T, reg *ModelRegistry, name, kind string) *domain.ModelProfile {
	t.Helper()
	m, err := reg.Add(context.Background(), ModelInput{
		Name:      name,
		Kind:      kind,
		Provider:  "hunyuan",
		APIURL:    "https://api.example.com/v1",
		AccessKey: "ak-test",
		SecretKey: "sk-test",
	})
	if err != nil {
		t.Fatalf("seed model %s: %v", name, err)
	}
	return m
}

// inlineQueue runs each job synchronously on Enqueue. Run errors are kept for
// assertions; Enqueue itself always succeeds.
type inlineQueue struct {
	runErrs []error
}

func (q *inlineQueue) Enqueue(taskID string, run func(ctx context.Context) error) error {
	if err := run(context.Background()); err != nil {
		q.runErrs = append(q.runErrs, err)
	}
	return nil
}

// saturatedQueue rejects every job.
type saturatedQueue struct{}

func (saturatedQueue) Enqueue(string, func(ctx context.Context) error) error {
	return worker.ErrSaturated
}
