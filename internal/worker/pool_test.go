package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPool_RunsJobs(t *testing.T) {
	p := NewPool(2, 4)
	p.Start(context.Background())
	defer p.Shutdown()

	done := make(chan string, 1)
	err := p.Enqueue("t1", func(ctx context.Context) error {
		done <- "t1"
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case id := <-done:
		if id != "t1" {
			t.Fatalf("wrong job ran: %s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("job did not run")
	}
}

func TestPool_RejectsWhenSaturated(t *testing.T) {
	p := NewPool(1, 1)
	p.Start(context.Background())
	defer p.Shutdown()

	release := make(chan struct{})
	started := make(chan struct{})
	// Occupy the single worker.
	_ = p.Enqueue("busy", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started
	// Fill the single queue slot.
	_ = p.Enqueue("queued", func(ctx context.Context) error { return nil })

	if err := p.Enqueue("overflow", func(ctx context.Context) error { return nil }); !errors.Is(err, ErrSaturated) {
		t.Fatalf("expected ErrSaturated, got %v", err)
	}
	close(release)
}

func TestPool_FailFnOnErrorAndPanic(t *testing.T) {
	p := NewPool(1, 4)

	var mu sync.Mutex
	failed := map[string]string{}
	p.FailFn = func(taskID string, err error) {
		mu.Lock()
		failed[taskID] = err.Error()
		mu.Unlock()
	}

	p.Start(context.Background())

	_ = p.Enqueue("boom", func(ctx context.Context) error {
		return errors.New("provider exploded")
	})
	_ = p.Enqueue("panic", func(ctx context.Context) error {
		panic("unexpected")
	})
	_ = p.Enqueue("fine", func(ctx context.Context) error { return nil })

	p.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	if failed["boom"] != "provider exploded" {
		t.Fatalf("error job not reported: %v", failed)
	}
	if _, ok := failed["panic"]; !ok {
		t.Fatalf("panicking job not reported: %v", failed)
	}
	if _, ok := failed["fine"]; ok {
		t.Fatalf("successful job must not be reported: %v", failed)
	}
}

func TestPool_ShutdownDrainsAndRejects(t *testing.T) {
	p := NewPool(2, 8)
	p.Start(context.Background())

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 5; i++ {
		_ = p.Enqueue("n", func(ctx context.Context) error {
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		})
	}

	p.Shutdown()

	mu.Lock()
	got := ran
	mu.Unlock()
	if got != 5 {
		t.Fatalf("expected all queued jobs to drain, ran %d", got)
	}

	if err := p.Enqueue("late", func(ctx context.Context) error { return nil }); !errors.Is(err, ErrSaturated) {
		t.Fatalf("enqueue after shutdown: %v", err)
	}
	// Shutdown twice is harmless.
	p.Shutdown()
}
