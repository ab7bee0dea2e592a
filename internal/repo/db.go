// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver), schema migrations, and demo seeding.
package repo

import (
	"context"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database, applies PRAGMAs, tunes
// the connection pool, and installs the OpenTelemetry tracing plugin so
// store operations show up as spans under their HTTP parents.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all domain models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Task{},
		&domain.Generation{},
		&domain.Order{},
		&domain.DownloadPermission{},
		&domain.ModelProfile{},
		&domain.ModelCredential{},
		&domain.OrderKey{},
	)
}

// SeedDefaultModels inserts a starter set of model profiles when the models
// table is empty, sealing the placeholder credentials with seal. It is a
// no-op on databases that already contain profiles.
func SeedDefaultModels(ctx context.Context, db *gorm.DB, seal func(string) (string, error)) error {
	var n int64
	if err := db.WithContext(ctx).Model(&domain.ModelProfile{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	now := time.Now().UTC()
	seeds := []struct {
		name, kind, provider, apiURL string
	}{
		{"Hunyuan Image", domain.KindTextToImage, "hunyuan", "https://hunyuan.tencentcloudapi.com"},
		{"Doubao Image", domain.KindTextToImage, "doubao", "https://ark.cn-beijing.volces.com/api/v3"},
		{"Hunyuan 3D", domain.KindImageToModel, "hunyuan", "https://hunyuan.tencentcloudapi.com/3d"},
	}
	for _, s := range seeds {
		ak, err := seal("demo-access-key")
		if err != nil {
			return err
		}
		sk, err := seal("demo-secret-key")
		if err != nil {
			return err
		}
		profile := &domain.ModelProfile{
			ID:        uuid.NewString(),
			Name:      s.name,
			Kind:      s.kind,
			Provider:  s.provider,
			APIURL:    s.apiURL,
			Status:    domain.ModelActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		cred := &domain.ModelCredential{
			ID:        uuid.NewString(),
			ModelID:   profile.ID,
			AccessKey: ak,
			SecretKey: sk,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := CreateModelProfile(ctx, db, profile, cred); err != nil {
			return err
		}
	}
	return nil
}
