package caption

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLazyModel_LoadsOnce(t *testing.T) {
	var loads atomic.Int32
	lazy := NewLazyModel(func(ctx context.Context) (*Model, error) {
		loads.Add(1)
		return &Model{Vocab: NewVocabulary([]string{"<end>"})}, nil
	}, testLogger())

	if lazy.Peek() != nil {
		t.Fatal("Peek() before first Get should be nil")
	}

	var wg sync.WaitGroup
	models := make([]*Model, 8)
	for i := range models {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := lazy.Get(context.Background())
			if err != nil {
				t.Errorf("Get() error = %v", err)
			}
			models[i] = m
		}(i)
	}
	wg.Wait()

	if got := loads.Load(); got != 1 {
		t.Errorf("load calls = %d, want 1", got)
	}
	for i := 1; i < len(models); i++ {
		if models[i] != models[0] {
			t.Fatal("all callers should share one model instance")
		}
	}
	if lazy.Peek() == nil || lazy.Peek().LoadedAt.IsZero() {
		t.Error("Peek() after load should return the model with LoadedAt set")
	}
}

func TestLazyModel_FailureNotCached(t *testing.T) {
	var loads atomic.Int32
	lazy := NewLazyModel(func(ctx context.Context) (*Model, error) {
		if loads.Add(1) == 1 {
			return nil, errors.New("weights missing")
		}
		return &Model{Vocab: NewVocabulary([]string{"<end>"})}, nil
	}, testLogger())

	if _, err := lazy.Get(context.Background()); err == nil {
		t.Fatal("first Get() should fail")
	}
	if _, err := lazy.Get(context.Background()); err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if got := loads.Load(); got != 2 {
		t.Errorf("load calls = %d, want 2", got)
	}

	lazy.Invalidate()
	if lazy.Peek() != nil {
		t.Error("Peek() after Invalidate should be nil")
	}
}

func TestLazyModel_PeekDoesNotWaitForLoad(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	lazy := NewLazyModel(func(ctx context.Context) (*Model, error) {
		close(started)
		<-release
		return &Model{Vocab: NewVocabulary([]string{"<end>"})}, nil
	}, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := lazy.Get(context.Background())
		done <- err
	}()
	<-started

	peeked := make(chan *Model, 1)
	go func() { peeked <- lazy.Peek() }()
	select {
	case m := <-peeked:
		if m != nil {
			t.Error("Peek() during load should be nil")
		}
	case <-time.After(time.Second):
		t.Fatal("Peek() blocked while the model was loading")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if lazy.Peek() == nil {
		t.Error("Peek() after load should return the model")
	}
}
