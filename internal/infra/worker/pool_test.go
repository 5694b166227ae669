//go:build !integration

package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsTasks(t *testing.T) {
	p := NewPool(2, nil)
	p.Start(context.Background())

	var n int32
	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		if err := p.Submit(func(ctx context.Context) error {
			atomic.AddInt32(&n, 1)
			done <- struct{}{}
			return nil
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("task did not run")
		}
	}
	p.Stop()
	if atomic.LoadInt32(&n) != 3 {
		t.Fatalf("expected 3 runs, got %d", n)
	}
}

func TestPoolStopDrainsQueue(t *testing.T) {
	p := NewPool(1, nil)
	var n int32
	for i := 0; i < 3; i++ {
		_ = p.Submit(func(ctx context.Context) error {
			atomic.AddInt32(&n, 1)
			return nil
		})
	}
	p.Start(context.Background())
	p.Stop()
	if atomic.LoadInt32(&n) != 3 {
		t.Fatalf("queued tasks should run before stop returns, got %d", n)
	}
	if err := p.Submit(func(context.Context) error { return nil }); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestPoolRejectsWhenFull(t *testing.T) {
	p := NewPool(1, nil) // queue of 4, not started
	for i := 0; i < 4; i++ {
		if err := p.Submit(func(context.Context) error { return nil }); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if err := p.Submit(func(context.Context) error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if err := p.Submit(nil); !errors.Is(err, ErrNilTask) {
		t.Fatalf("expected ErrNilTask, got %v", err)
	}
}

func TestPoolSurvivesPanic(t *testing.T) {
	p := NewPool(1, nil)
	p.Start(context.Background())
	_ = p.Submit(func(context.Context) error { panic("boom") })
	ran := make(chan struct{})
	_ = p.Submit(func(context.Context) error { close(ran); return nil })
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after panic")
	}
	p.Stop()
}
