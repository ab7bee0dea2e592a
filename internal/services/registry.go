package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
	"github.com/fingermelody/ai-generation-codebuddy/internal/repo"
	"github.com/fingermelody/ai-generation-codebuddy/internal/secrets"
)

// ModelRegistry manages model profiles and their sealed credentials.
// Credentials enter sealed at write time and only leave plaintext through
// ResolveCredentials, which the generation pipeline calls synchronously
// before any task is created.
type ModelRegistry struct {
	DB  *gorm.DB
	Box *secrets.Box
	Now func() time.Time
}

// NewModelRegistry wires the registry service.
func NewModelRegistry(db *gorm.DB, box *secrets.Box) *ModelRegistry {
	return &ModelRegistry{DB: db, Box: box, Now: time.Now}
}

// Credentials is a decrypted access key pair. Never persisted or logged.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// PublicModel is the caller-facing projection of a profile. It carries no
// credential material and no API endpoint.
type PublicModel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Provider string `json:"provider"`
	Status   string `json:"status"`
}

// ModelInput is the admin payload for creating or updating a profile.
// Empty credential fields on update leave the stored pair untouched.
type ModelInput struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Provider  string `json:"provider"`
	APIURL    string `json:"api_url"`
	Status    string `json:"status"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// Resolve returns the active profile for a model name. A missing, inactive
// or deleted profile yields ErrModelUnavailable.
func (s *ModelRegistry) Resolve(ctx context.Context, name string) (*domain.ModelProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: model name is required", ErrInvalidInput)
	}
	m, err := repo.GetModelProfileByName(ctx, s.DB, name)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, name)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve model: %w", err)
	}
	if m.Status != domain.ModelActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrModelUnavailable, name, m.Status)
	}
	return m, nil
}

// ResolveCredentials opens the sealed key pair for a model. A model with no
// credential row yields ErrCredentialsMissing.
func (s *ModelRegistry) ResolveCredentials(ctx context.Context, modelID string) (*Credentials, error) {
	c, err := repo.GetModelCredential(ctx, s.DB, modelID)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if c == nil {
		return nil, ErrCredentialsMissing
	}
	ak, err := s.Box.Open(c.AccessKey)
	if err != nil {
		return nil, fmt.Errorf("open access key: %w", err)
	}
	sk, err := s.Box.Open(c.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("open secret key: %w", err)
	}
	return &Credentials{AccessKey: ak, SecretKey: sk}, nil
}

// List returns the public projection of all active profiles.
func (s *ModelRegistry) List(ctx context.Context) ([]PublicModel, error) {
	rows, err := repo.ListModelProfiles(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	out := make([]PublicModel, 0, len(rows))
	for _, m := range rows {
		if m.Status != domain.ModelActive {
			continue
		}
		out = append(out, PublicModel{ID: m.ID, Name: m.Name, Kind: m.Kind, Provider: m.Provider, Status: m.Status})
	}
	return out, nil
}

// ListAdmin returns full profiles, active and inactive, newest first.
// Credentials stay out of the projection entirely.
func (s *ModelRegistry) ListAdmin(ctx context.Context) ([]domain.ModelProfile, error) {
	rows, err := repo.ListModelProfiles(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return rows, nil
}

// Add validates and inserts a profile with its sealed credential pair.
func (s *ModelRegistry) Add(ctx context.Context, in ModelInput) (*domain.ModelProfile, error) {
	if err := validateModelInput(in, true); err != nil {
		return nil, err
	}
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = domain.ModelActive
	}
	if status != domain.ModelActive && status != domain.ModelInactive {
		return nil, fmt.Errorf("%w: status must be active or inactive", ErrInvalidInput)
	}
	sealedAK, err := s.Box.Seal(in.AccessKey)
	if err != nil {
		return nil, fmt.Errorf("seal access key: %w", err)
	}
	sealedSK, err := s.Box.Seal(in.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("seal secret key: %w", err)
	}
	now := s.Now().UTC()
	m := &domain.ModelProfile{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Kind:      strings.TrimSpace(in.Kind),
		Provider:  strings.ToLower(strings.TrimSpace(in.Provider)),
		APIURL:    strings.TrimSpace(in.APIURL),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	cred := &domain.ModelCredential{
		ID:        uuid.NewString(),
		ModelID:   m.ID,
		AccessKey: sealedAK,
		SecretKey: sealedSK,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateModelProfile(ctx, s.DB, m, cred); err != nil {
		return nil, fmt.Errorf("create model: %w", err)
	}
	return m, nil
}

// Update applies a partial update. Credential fields, when both present,
// rotate the sealed pair in the same call.
func (s *ModelRegistry) Update(ctx context.Context, id string, in ModelInput) (*domain.ModelProfile, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: model id is required", ErrInvalidInput)
	}
	fields := map[string]any{}
	if v := strings.TrimSpace(in.Name); v != "" {
		fields["name"] = v
	}
	if v := strings.TrimSpace(in.Provider); v != "" {
		fields["provider"] = strings.ToLower(v)
	}
	if v := strings.TrimSpace(in.APIURL); v != "" {
		fields["api_url"] = v
	}
	if v := strings.TrimSpace(in.Status); v != "" {
		if v != domain.ModelActive && v != domain.ModelInactive {
			return nil, fmt.Errorf("%w: status must be active or inactive", ErrInvalidInput)
		}
		fields["status"] = v
	}
	now := s.Now().UTC()
	if len(fields) > 0 {
		fields["updated_at"] = now
		err := repo.UpdateModelProfile(ctx, s.DB, id, fields)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("update model: %w", err)
		}
	}
	if in.AccessKey != "" || in.SecretKey != "" {
		if in.AccessKey == "" || in.SecretKey == "" {
			return nil, fmt.Errorf("%w: credential rotation requires both keys", ErrInvalidInput)
		}
		sealedAK, err := s.Box.Seal(in.AccessKey)
		if err != nil {
			return nil, fmt.Errorf("seal access key: %w", err)
		}
		sealedSK, err := s.Box.Seal(in.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("seal secret key: %w", err)
		}
		err = repo.UpdateModelCredential(ctx, s.DB, id, map[string]any{
			"access_key": sealedAK,
			"secret_key": sealedSK,
			"updated_at": now,
		})
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("rotate credentials: %w", err)
		}
	}
	m, err := repo.GetModelProfile(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reload model: %w", err)
	}
	return m, nil
}

// ToggleStatus flips a profile between active and inactive and returns the
// updated row. Deleted profiles cannot be toggled.
func (s *ModelRegistry) ToggleStatus(ctx context.Context, id string) (*domain.ModelProfile, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: model id is required", ErrInvalidInput)
	}
	m, err := repo.GetModelProfile(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	next := domain.ModelActive
	if m.Status == domain.ModelActive {
		next = domain.ModelInactive
	}
	now := s.Now().UTC()
	err = repo.SetModelStatus(ctx, s.DB, id, next, now)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggle model status: %w", err)
	}
	m.Status = next
	m.UpdatedAt = now
	return m, nil
}

// Delete soft-deletes a profile and destroys its credential row.
func (s *ModelRegistry) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: model id is required", ErrInvalidInput)
	}
	err := repo.SoftDeleteModelProfile(ctx, s.DB, id, s.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete model: %w", err)
	}
	return nil
}

func validateModelInput(in ModelInput, create bool) error {
	if !create {
		return nil
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	kind := strings.TrimSpace(in.Kind)
	if kind != domain.KindTextToImage && kind != domain.KindImageToModel {
		return fmt.Errorf("%w: kind must be %s or %s", ErrInvalidInput, domain.KindTextToImage, domain.KindImageToModel)
	}
	if strings.TrimSpace(in.Provider) == "" {
		return fmt.Errorf("%w: provider is required", ErrInvalidInput)
	}
	if in.AccessKey == "" || in.SecretKey == "" {
		return fmt.Errorf("%w: access_key and secret_key are required", ErrInvalidInput)
	}
	return nil
}
