package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
	"github.com/fingermelody/ai-generation-codebuddy/internal/providers/generation"
	"github.com/fingermelody/ai-generation-codebuddy/internal/repo"
	"gorm.io/gorm"
)

// newGenService wires a generation service against a throwaway database with
// one active model per kind and a synchronous queue.
func newGenService(t *testing.T, queue *inlineQueue) (*GenerationService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	reg := NewModelRegistry(db, newTestBox(t))
	seedModel(t, reg, "img-model", domain.KindTextToImage)
	seedModel(t, reg, "3d-model", domain.KindImageToModel)
	svc := NewGenerationService(db, reg, generation.NewRegistry(0), queue)
	return svc, db
}

func countTasks(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.Task{}).Count(&n).Error; err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	return n
}

func TestStartTextToImage_RejectsBadInput(t *testing.T) {
	svc, db := newGenService(t, &inlineQueue{})
	ctx := context.Background()

	cases := []TextToImageInput{
		{Prompt: "   ", Model: "img-model"},
		{Prompt: strings.Repeat("a", maxPromptLen+1), Model: "img-model"},
		{Prompt: "ok", Width: 128, Model: "img-model"},
		{Prompt: "ok", Height: 4096, Model: "img-model"},
		{Prompt: "ok", Count: 5, Model: "img-model"},
	}
	for i, in := range cases {
		if _, err := svc.StartTextToImage(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
	if n := countTasks(t, db); n != 0 {
		t.Fatalf("rejected requests must not leave task rows, found %d", n)
	}
}

func TestStartTextToImage_CompletesWithResult(t *testing.T) {
	q := &inlineQueue{}
	svc, db := newGenService(t, q)
	ctx := context.Background()

	task, err := svc.StartTextToImage(ctx, TextToImageInput{Prompt: "a red fox", Count: 2, Model: "img-model"})
	if err != nil {
		t.Fatalf("StartTextToImage: %v", err)
	}
	if len(q.runErrs) != 0 {
		t.Fatalf("job errors: %v", q.runErrs)
	}

	view, err := svc.Progress(ctx, task.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if view.Status != domain.TaskCompleted || view.Progress != 100 {
		t.Fatalf("task should be completed at 100, got %s/%d", view.Status, view.Progress)
	}
	if view.Result == nil {
		t.Fatalf("completed task must carry a result")
	}
	var res imageResult
	if err := json.Unmarshal(view.Result, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Count != 2 || len(res.Images) != 2 {
		t.Fatalf("expected 2 images, got %+v", res)
	}

	var gens []domain.Generation
	if err := db.Where("task_id = ?", task.ID).Find(&gens).Error; err != nil {
		t.Fatalf("load generations: %v", err)
	}
	if len(gens) != 2 {
		t.Fatalf("expected 2 generation rows, got %d", len(gens))
	}
	for _, g := range gens {
		if g.Kind != domain.ResourceImage || g.Resolution != "1024x1024" || g.PriceCents != 500 {
			t.Fatalf("bad generation row: %+v", g)
		}
	}
}

func TestStartTextToImage_ModelGating(t *testing.T) {
	svc, db := newGenService(t, &inlineQueue{})
	ctx := context.Background()

	if _, err := svc.StartTextToImage(ctx, TextToImageInput{Prompt: "x", Model: "missing"}); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("missing model: %v", err)
	}
	// A 3D model cannot serve a text-to-image request.
	if _, err := svc.StartTextToImage(ctx, TextToImageInput{Prompt: "x", Model: "3d-model"}); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("wrong-kind model: %v", err)
	}
	if _, err := svc.Registry.Update(ctx, mustProfileID(t, db, "img-model"), ModelInput{Status: domain.ModelInactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.StartTextToImage(ctx, TextToImageInput{Prompt: "x", Model: "img-model"}); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("inactive model: %v", err)
	}
	if n := countTasks(t, db); n != 0 {
		t.Fatalf("gated requests must not leave task rows, found %d", n)
	}
}

func mustProfileID(t *testing.T, db *gorm.DB, name string) string {
	t.Helper()
	m, err := repo.GetModelProfileByName(context.Background(), db, name)
	if err != nil {
		t.Fatalf("profile %s: %v", name, err)
	}
	return m.ID
}

func TestStartImageToModel3D_FromImageID(t *testing.T) {
	q := &inlineQueue{}
	svc, db := newGenService(t, q)
	ctx := context.Background()

	src, err := svc.StartTextToImage(ctx, TextToImageInput{Prompt: "source", Model: "img-model"})
	if err != nil {
		t.Fatalf("seed image: %v", err)
	}
	var img domain.Generation
	if err := db.Where("task_id = ?", src.ID).First(&img).Error; err != nil {
		t.Fatalf("load source image: %v", err)
	}

	task, err := svc.StartImageToModel3D(ctx, ImageToModelInput{ImageID: img.ID, Format: "fbx", Quality: "high", Model: "3d-model"})
	if err != nil {
		t.Fatalf("StartImageToModel3D: %v", err)
	}
	if len(q.runErrs) != 0 {
		t.Fatalf("job errors: %v", q.runErrs)
	}

	view, err := svc.Progress(ctx, task.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if view.Status != domain.TaskCompleted || view.Progress != 100 {
		t.Fatalf("task should be completed at 100, got %s/%d", view.Status, view.Progress)
	}
	var res modelResult
	if err := json.Unmarshal(view.Result, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Format != "FBX" || res.Quality != "high" || res.ModelURL == "" {
		t.Fatalf("unexpected result: %+v", res)
	}

	var g domain.Generation
	if err := db.Where("id = ?", res.ID).First(&g).Error; err != nil {
		t.Fatalf("load model row: %v", err)
	}
	if g.Kind != domain.ResourceModel3D || g.SourceImageID != img.ID || g.PriceCents != 2000 {
		t.Fatalf("bad model row: %+v", g)
	}
}

func TestStartImageToModel3D_SourceValidation(t *testing.T) {
	q := &inlineQueue{}
	svc, db := newGenService(t, q)
	ctx := context.Background()

	if _, err := svc.StartImageToModel3D(ctx, ImageToModelInput{Model: "3d-model"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing source: %v", err)
	}
	if _, err := svc.StartImageToModel3D(ctx, ImageToModelInput{ImageID: "nope", Model: "3d-model"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown image id: %v", err)
	}
	if _, err := svc.StartImageToModel3D(ctx, ImageToModelInput{ImageURL: "https://img/1", Format: "STL", Model: "3d-model"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad format: %v", err)
	}
	if _, err := svc.StartImageToModel3D(ctx, ImageToModelInput{ImageURL: "https://img/1", Quality: "ultra", Model: "3d-model"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad quality: %v", err)
	}

	// A 3D artifact cannot be the source of another conversion.
	src, err := svc.StartImageToModel3D(ctx, ImageToModelInput{ImageURL: "https://img/1", Model: "3d-model"})
	if err != nil {
		t.Fatalf("seed model task: %v", err)
	}
	var m domain.Generation
	if err := db.Where("task_id = ?", src.ID).First(&m).Error; err != nil {
		t.Fatalf("load model row: %v", err)
	}
	if _, err := svc.StartImageToModel3D(ctx, ImageToModelInput{ImageID: m.ID, Model: "3d-model"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("model3d source: %v", err)
	}
}

func TestStartTextToImage_SaturatedQueue(t *testing.T) {
	db := newTestDB(t)
	reg := NewModelRegistry(db, newTestBox(t))
	seedModel(t, reg, "img-model", domain.KindTextToImage)
	svc := NewGenerationService(db, reg, generation.NewRegistry(0), saturatedQueue{})

	_, err := svc.StartTextToImage(context.Background(), TextToImageInput{Prompt: "x", Model: "img-model"})
	if !errors.Is(err, ErrQueueSaturated) {
		t.Fatalf("expected ErrQueueSaturated, got %v", err)
	}

	// The task row exists and is marked failed, so a poll explains the outcome.
	var tk domain.Task
	if err := db.First(&tk).Error; err != nil {
		t.Fatalf("load task: %v", err)
	}
	if tk.Status != domain.TaskFailed {
		t.Fatalf("rejected task should be failed, got %s", tk.Status)
	}
}

func TestFailTask_RespectsTerminalStatus(t *testing.T) {
	q := &inlineQueue{}
	svc, _ := newGenService(t, q)
	ctx := context.Background()

	task, err := svc.StartTextToImage(ctx, TextToImageInput{Prompt: "done", Model: "img-model"})
	if err != nil {
		t.Fatalf("StartTextToImage: %v", err)
	}

	// A late failure report must not overwrite the completed status.
	svc.FailTask(task.ID, errors.New("late worker error"))

	view, err := svc.Progress(ctx, task.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if view.Status != domain.TaskCompleted {
		t.Fatalf("terminal task was overwritten: %s", view.Status)
	}
}

func TestRecoverStuck_RequeuesAndCompletes(t *testing.T) {
	q := &inlineQueue{}
	svc, db := newGenService(t, q)
	ctx := context.Background()

	params, _ := json.Marshal(TextToImageInput{Prompt: "interrupted", Width: 512, Height: 512, Count: 1, Model: "img-model"})
	stuck := domain.Task{
		ID:       "11111111-1111-1111-1111-111111111111",
		Kind:     domain.KindTextToImage,
		Status:   domain.TaskProcessing,
		Progress: 30,
		Params:   params,
	}
	if err := db.Create(&stuck).Error; err != nil {
		t.Fatalf("seed stuck task: %v", err)
	}
	broken := domain.Task{
		ID:     "22222222-2222-2222-2222-222222222222",
		Kind:   domain.KindTextToImage,
		Status: domain.TaskPending,
		Params: json.RawMessage(`{broken`),
	}
	if err := db.Create(&broken).Error; err != nil {
		t.Fatalf("seed broken task: %v", err)
	}

	n, err := svc.RecoverStuck(ctx)
	if err != nil {
		t.Fatalf("RecoverStuck: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 requeued task, got %d", n)
	}

	view, err := svc.Progress(ctx, stuck.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if view.Status != domain.TaskCompleted || view.Progress != 100 {
		t.Fatalf("recovered task should complete, got %s/%d", view.Status, view.Progress)
	}

	view, err = svc.Progress(ctx, broken.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if view.Status != domain.TaskFailed {
		t.Fatalf("unparsable task should be failed, got %s", view.Status)
	}
}

func TestProgress_UnknownTask(t *testing.T) {
	svc, _ := newGenService(t, &inlineQueue{})
	if _, err := svc.Progress(context.Background(), "no-such-task"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
