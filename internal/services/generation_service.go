package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
	"github.com/fingermelody/ai-generation-codebuddy/internal/providers/generation"
	"github.com/fingermelody/ai-generation-codebuddy/internal/repo"
	"github.com/fingermelody/ai-generation-codebuddy/internal/worker"
)

// Request limits. Counts above maxImageCount and prompts above
// maxPromptLen are rejected before any task row is written.
const (
	maxImageCount = 4
	maxPromptLen  = 2000
)

// TextToImageInput is the request payload for a text-to-image task.
type TextToImageInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Count          int    `json:"count"`
	Model          string `json:"model"`
}

// ImageToModelInput is the request payload for an image-to-3D task. The
// source image is named either by the ID of a previously generated image or
// by a direct URL.
type ImageToModelInput struct {
	ImageID  string `json:"image_id"`
	ImageURL string `json:"image_url"`
	Format   string `json:"format"`
	Quality  string `json:"quality"`
	Model    string `json:"model"`
}

// TaskView is the polling projection of a task.
type TaskView struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Status    string          `json:"status"`
	Progress  int             `json:"progress"`
	Result    json.RawMessage `json:"result,omitempty"`
	Message   string          `json:"message,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// imageResult is the Result payload of a completed text2img task.
type imageResult struct {
	Images []imageResultItem `json:"images"`
	Count  int               `json:"count"`
}

type imageResultItem struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// modelResult is the Result payload of a completed img2model3d task.
type modelResult struct {
	ID       string `json:"id"`
	ModelURL string `json:"model_url"`
	Format   string `json:"format"`
	Quality  string `json:"quality"`
}

// GenerationService orchestrates asynchronous generation tasks: it
// validates requests, resolves the model profile and credentials up front,
// persists a pending task and hands the provider call to the worker pool.
// Callers observe progress by polling.
type GenerationService struct {
	DB        *gorm.DB
	Registry  *ModelRegistry
	Providers *generation.Registry
	Queue     worker.Enqueuer
	Now       func() time.Time
}

// NewGenerationService wires the orchestrator.
func NewGenerationService(db *gorm.DB, reg *ModelRegistry, providers *generation.Registry, queue worker.Enqueuer) *GenerationService {
	return &GenerationService{DB: db, Registry: reg, Providers: providers, Queue: queue, Now: time.Now}
}

// StartTextToImage validates the request, resolves the model and enqueues a
// text-to-image task. The returned task is in status pending.
func (s *GenerationService) StartTextToImage(ctx context.Context, in TextToImageInput) (*domain.Task, error) {
	in.Prompt = strings.TrimSpace(in.Prompt)
	if in.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	if len(in.Prompt) > maxPromptLen {
		return nil, fmt.Errorf("%w: prompt exceeds %d characters", ErrInvalidInput, maxPromptLen)
	}
	if in.Width == 0 {
		in.Width = 1024
	}
	if in.Height == 0 {
		in.Height = 1024
	}
	if in.Width < 256 || in.Width > 2048 || in.Height < 256 || in.Height > 2048 {
		return nil, fmt.Errorf("%w: resolution out of range", ErrInvalidInput)
	}
	if in.Count == 0 {
		in.Count = 1
	}
	if in.Count < 1 || in.Count > maxImageCount {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidInput, maxImageCount)
	}

	profile, creds, err := s.resolve(ctx, in.Model, domain.KindTextToImage)
	if err != nil {
		return nil, err
	}

	task, err := s.createTask(ctx, domain.KindTextToImage, profile.Name, in)
	if err != nil {
		return nil, err
	}

	if err := s.enqueue(task.ID, func(jctx context.Context) error {
		return s.runTextToImage(jctx, task.ID, in, profile, creds)
	}); err != nil {
		return nil, err
	}
	return task, nil
}

// StartImageToModel3D validates the request, resolves the source image and
// model, and enqueues an image-to-3D task.
func (s *GenerationService) StartImageToModel3D(ctx context.Context, in ImageToModelInput) (*domain.Task, error) {
	in.ImageID = strings.TrimSpace(in.ImageID)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if in.ImageID == "" && in.ImageURL == "" {
		return nil, fmt.Errorf("%w: image_id or image_url is required", ErrInvalidInput)
	}
	in.Format = strings.ToUpper(strings.TrimSpace(in.Format))
	if in.Format == "" {
		in.Format = "GLB"
	}
	switch in.Format {
	case "OBJ", "FBX", "GLB", "GLTF":
	default:
		return nil, fmt.Errorf("%w: format must be OBJ, FBX, GLB or GLTF", ErrInvalidInput)
	}
	in.Quality = strings.ToLower(strings.TrimSpace(in.Quality))
	if in.Quality == "" {
		in.Quality = "medium"
	}
	switch in.Quality {
	case "low", "medium", "high":
	default:
		return nil, fmt.Errorf("%w: quality must be low, medium or high", ErrInvalidInput)
	}

	if in.ImageID != "" {
		src, err := repo.GetGeneration(ctx, s.DB, in.ImageID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: source image %s", ErrNotFound, in.ImageID)
		}
		if err != nil {
			return nil, fmt.Errorf("load source image: %w", err)
		}
		if src.Kind != domain.ResourceImage {
			return nil, fmt.Errorf("%w: source resource is not an image", ErrInvalidInput)
		}
		in.ImageURL = src.URL
	}

	profile, creds, err := s.resolve(ctx, in.Model, domain.KindImageToModel)
	if err != nil {
		return nil, err
	}

	task, err := s.createTask(ctx, domain.KindImageToModel, profile.Name, in)
	if err != nil {
		return nil, err
	}

	if err := s.enqueue(task.ID, func(jctx context.Context) error {
		return s.runImageToModel(jctx, task.ID, in, profile, creds)
	}); err != nil {
		return nil, err
	}
	return task, nil
}

// Progress returns the polling view of a task.
func (s *GenerationService) Progress(ctx context.Context, taskID string) (*TaskView, error) {
	t, err := repo.GetTask(ctx, s.DB, taskID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	return &TaskView{
		ID:        t.ID,
		Kind:      t.Kind,
		Status:    t.Status,
		Progress:  t.Progress,
		Result:    t.Result,
		Message:   t.Message,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}, nil
}

// FailTask marks a non-terminal task failed. Wired as the worker pool's
// failure hook; a task that already reached a terminal status is left alone.
func (s *GenerationService) FailTask(taskID string, cause error) {
	err := repo.UpdateTaskFields(context.Background(), s.DB, taskID, map[string]any{
		"status":     domain.TaskFailed,
		"message":    cause.Error(),
		"updated_at": s.Now().UTC(),
	})
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		log.Error().Err(err).Str("task_id", taskID).Msg("could not mark task failed")
	}
}

// RecoverStuck re-enqueues every non-terminal task found at startup,
// resetting it to pending with zero progress. Tasks whose stored params no
// longer parse are marked failed instead.
func (s *GenerationService) RecoverStuck(ctx context.Context) (int, error) {
	stuck, err := repo.ListStuckTasks(ctx, s.DB)
	if err != nil {
		return 0, fmt.Errorf("scan stuck tasks: %w", err)
	}
	requeued := 0
	for i := range stuck {
		t := stuck[i]
		if err := s.requeueTask(ctx, &t); err != nil {
			log.Warn().Err(err).Str("task_id", t.ID).Msg("could not requeue task")
			s.FailTask(t.ID, err)
			continue
		}
		requeued++
	}
	return requeued, nil
}

func (s *GenerationService) requeueTask(ctx context.Context, t *domain.Task) error {
	err := repo.UpdateTaskFields(ctx, s.DB, t.ID, map[string]any{
		"status":     domain.TaskPending,
		"progress":   0,
		"message":    "requeued after restart",
		"updated_at": s.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("reset task: %w", err)
	}

	switch t.Kind {
	case domain.KindTextToImage:
		var in TextToImageInput
		if err := json.Unmarshal(t.Params, &in); err != nil {
			return fmt.Errorf("decode stored params: %w", err)
		}
		profile, creds, err := s.resolve(ctx, in.Model, domain.KindTextToImage)
		if err != nil {
			return err
		}
		return s.enqueue(t.ID, func(jctx context.Context) error {
			return s.runTextToImage(jctx, t.ID, in, profile, creds)
		})
	case domain.KindImageToModel:
		var in ImageToModelInput
		if err := json.Unmarshal(t.Params, &in); err != nil {
			return fmt.Errorf("decode stored params: %w", err)
		}
		profile, creds, err := s.resolve(ctx, in.Model, domain.KindImageToModel)
		if err != nil {
			return err
		}
		return s.enqueue(t.ID, func(jctx context.Context) error {
			return s.runImageToModel(jctx, t.ID, in, profile, creds)
		})
	default:
		return fmt.Errorf("%w: unknown task kind %q", ErrInvalidInput, t.Kind)
	}
}

// resolve fetches the active model profile of the expected kind and opens
// its credentials, all before any task row exists.
func (s *GenerationService) resolve(ctx context.Context, model, kind string) (*domain.ModelProfile, *Credentials, error) {
	profile, err := s.Registry.Resolve(ctx, model)
	if err != nil {
		return nil, nil, err
	}
	if profile.Kind != kind {
		return nil, nil, fmt.Errorf("%w: %s does not support %s", ErrModelUnavailable, profile.Name, kind)
	}
	creds, err := s.Registry.ResolveCredentials(ctx, profile.ID)
	if err != nil {
		return nil, nil, err
	}
	return profile, creds, nil
}

func (s *GenerationService) createTask(ctx context.Context, kind, modelName string, params any) (*domain.Task, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	now := s.Now().UTC()
	t := &domain.Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    domain.TaskPending,
		Progress:  0,
		Params:    raw,
		ModelName: modelName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateTask(ctx, s.DB, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

func (s *GenerationService) enqueue(taskID string, run func(ctx context.Context) error) error {
	if err := s.Queue.Enqueue(taskID, run); err != nil {
		s.FailTask(taskID, ErrQueueSaturated)
		return ErrQueueSaturated
	}
	return nil
}

// advance moves a task's progress checkpoint. A terminal task absorbs the
// write silently; the guarded update makes late worker writes harmless.
func (s *GenerationService) advance(ctx context.Context, taskID string, fields map[string]any) error {
	fields["updated_at"] = s.Now().UTC()
	err := repo.UpdateTaskFields(ctx, s.DB, taskID, fields)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	return err
}

func (s *GenerationService) runTextToImage(ctx context.Context, taskID string, in TextToImageInput, profile *domain.ModelProfile, creds *Credentials) error {
	if err := s.advance(ctx, taskID, map[string]any{
		"status":   domain.TaskProcessing,
		"progress": 10,
	}); err != nil {
		return err
	}

	provider := s.Providers.Lookup(profile.Provider)
	if err := s.advance(ctx, taskID, map[string]any{"progress": 30}); err != nil {
		return err
	}

	images, err := provider.GenerateImages(ctx, generation.ImageRequest{
		Prompt:         in.Prompt,
		NegativePrompt: in.NegativePrompt,
		Width:          in.Width,
		Height:         in.Height,
		Count:          in.Count,
		APIURL:         profile.APIURL,
		AccessKey:      creds.AccessKey,
		SecretKey:      creds.SecretKey,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	now := s.Now().UTC()
	resolution := fmt.Sprintf("%dx%d", in.Width, in.Height)
	result := imageResult{Images: make([]imageResultItem, 0, len(images)), Count: len(images)}
	for i, img := range images {
		g := &domain.Generation{
			ID:             uuid.NewString(),
			Kind:           domain.ResourceImage,
			URL:            img.URL,
			Prompt:         in.Prompt,
			NegativePrompt: in.NegativePrompt,
			Resolution:     resolution,
			ModelID:        profile.ID,
			ModelName:      profile.Name,
			TaskID:         taskID,
			PriceCents:     PriceImage(resolution),
			Status:         domain.TaskCompleted,
			CreatedAt:      now,
		}
		if err := repo.CreateGeneration(ctx, s.DB, g); err != nil {
			return fmt.Errorf("persist image: %w", err)
		}
		result.Images = append(result.Images, imageResultItem{ID: g.ID, URL: g.URL})

		// Interpolate 30..100 across the batch; the final checkpoint lands
		// with the completed transition below.
		if i < len(images)-1 {
			p := 30 + (i+1)*70/len(images)
			if err := s.advance(ctx, taskID, map[string]any{"progress": p}); err != nil {
				return err
			}
		}
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return s.advance(ctx, taskID, map[string]any{
		"status":   domain.TaskCompleted,
		"progress": 100,
		"result":   json.RawMessage(raw),
		"message":  "completed",
	})
}

func (s *GenerationService) runImageToModel(ctx context.Context, taskID string, in ImageToModelInput, profile *domain.ModelProfile, creds *Credentials) error {
	if err := s.advance(ctx, taskID, map[string]any{
		"status":   domain.TaskProcessing,
		"progress": 10,
	}); err != nil {
		return err
	}

	provider := s.Providers.Lookup(profile.Provider)
	if err := s.advance(ctx, taskID, map[string]any{"progress": 30}); err != nil {
		return err
	}

	model, err := provider.GenerateModel(ctx, generation.ModelRequest{
		ImageURL:  in.ImageURL,
		Format:    in.Format,
		Quality:   in.Quality,
		APIURL:    profile.APIURL,
		AccessKey: creds.AccessKey,
		SecretKey: creds.SecretKey,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	for _, p := range []int{50, 70, 90} {
		if err := s.advance(ctx, taskID, map[string]any{"progress": p}); err != nil {
			return err
		}
	}

	now := s.Now().UTC()
	g := &domain.Generation{
		ID:             uuid.NewString(),
		Kind:           domain.ResourceModel3D,
		ModelURL:       model.URL,
		SourceImageID:  in.ImageID,
		SourceImageURL: in.ImageURL,
		Format:         in.Format,
		Quality:        in.Quality,
		ModelID:        profile.ID,
		ModelName:      profile.Name,
		TaskID:         taskID,
		PriceCents:     PriceModel3D(in.Quality, in.Format),
		Status:         domain.TaskCompleted,
		CreatedAt:      now,
	}
	if err := repo.CreateGeneration(ctx, s.DB, g); err != nil {
		return fmt.Errorf("persist model: %w", err)
	}

	raw, err := json.Marshal(modelResult{ID: g.ID, ModelURL: g.ModelURL, Format: g.Format, Quality: g.Quality})
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return s.advance(ctx, taskID, map[string]any{
		"status":   domain.TaskCompleted,
		"progress": 100,
		"result":   json.RawMessage(raw),
		"message":  "completed",
	})
}
