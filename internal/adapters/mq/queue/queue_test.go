package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/beatfeat/internal/domain/model"
)

func job(i int) Job {
	return Job{Index: i, Item: model.RatedItem{Reference: fmt.Sprintf("ref-%d", i), DifficultyLabel: "Hard", Rating: float64(i)}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if err := q.Enqueue(ctx, job(1)); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.Index != 1 || got.Item.Reference != "ref-1" {
		t.Errorf("unexpected job %+v", got)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := q.Enqueue(ctx, job(i)); err != nil {
			t.Fatalf("expected enqueue %d to succeed, got %v", i, err)
		}
	}

	if err := q.Enqueue(ctx, job(3)); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
}

func TestLoad_PreservesOrderAndCloses(t *testing.T) {
	items := make([]model.RatedItem, 50)
	for i := range items {
		items[i] = job(i).Item
	}

	q, err := Load(context.Background(), items)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !q.IsClosed() {
		t.Fatal("expected queue to be closed after load")
	}

	next := 0
	for j := range q.Dequeue(context.Background()) {
		if j.Index != next {
			t.Fatalf("expected index %d, got %d", next, j.Index)
		}
		next++
	}
	if next != len(items) {
		t.Errorf("expected %d jobs, got %d", len(items), next)
	}
}

func TestInMemoryQueue_SharedConsumers(t *testing.T) {
	items := make([]model.RatedItem, 500)
	q, err := Load(context.Background(), items)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	var mu sync.Mutex
	seen := make(map[int]int)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range q.Dequeue(context.Background()) {
				mu.Lock()
				seen[j.Index]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != len(items) {
		t.Fatalf("expected %d distinct jobs, got %d", len(items), len(seen))
	}
	for idx, n := range seen {
		if n != 1 {
			t.Errorf("job %d delivered %d times", idx, n)
		}
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	_ = q.Enqueue(ctx, job(1))
	_ = q.Enqueue(ctx, job(2))

	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if err := q.Enqueue(ctx, job(3)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after closing, got %v", err)
	}

	// Queued jobs drain, then the channel reports closed.
	ch := q.Dequeue(ctx)
	timeout := time.After(100 * time.Millisecond)
	drained := 0
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if drained != 2 {
					t.Errorf("expected 2 drained jobs, got %d", drained)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			drained++
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}
