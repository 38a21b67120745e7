package queue

import (
	"context"
	"testing"

	"github.com/clawarden/clawarden-go/internal/models"
)

func TestMemoryEnqueueDequeue(t *testing.T) {
	q := NewMemory(4)
	defer q.Close()

	job := NewJob("delivery-1", models.EventPush, []byte(`{"ref":"refs/heads/main"}`))
	if job.ID == "" {
		t.Fatal("NewJob must assign a unit ID")
	}

	if err := q.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got := <-q.Jobs()
	if got.ID != job.ID || got.DeliveryID != "delivery-1" || got.Kind != models.EventPush {
		t.Errorf("dequeued %+v, want %+v", got, job)
	}
}

func TestMemoryUnitIDsAreUnique(t *testing.T) {
	a := NewJob("d", models.EventPush, nil)
	b := NewJob("d", models.EventPush, nil)
	if a.ID == b.ID {
		t.Errorf("two jobs for the same delivery share unit ID %s", a.ID)
	}
}

func TestMemoryFull(t *testing.T) {
	q := NewMemory(1)
	defer q.Close()

	ctx := context.Background()
	if err := q.Enqueue(ctx, NewJob("d1", models.EventPush, nil)); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, NewJob("d2", models.EventPush, nil)); err != ErrFull {
		t.Errorf("enqueue on full buffer: got %v, want ErrFull", err)
	}

	// Draining frees capacity again.
	<-q.Jobs()
	if err := q.Enqueue(ctx, NewJob("d3", models.EventPush, nil)); err != nil {
		t.Errorf("enqueue after drain: %v", err)
	}
}

func TestMemoryClose(t *testing.T) {
	q := NewMemory(2)
	ctx := context.Background()

	if err := q.Enqueue(ctx, NewJob("d1", models.EventPush, nil)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Close()
	q.Close() // second close is a no-op

	if err := q.Enqueue(ctx, NewJob("d2", models.EventPush, nil)); err != ErrClosed {
		t.Errorf("enqueue after close: got %v, want ErrClosed", err)
	}

	// Queued work drains after close, then the channel ends.
	if _, ok := <-q.Jobs(); !ok {
		t.Fatal("queued job should drain after close")
	}
	if _, ok := <-q.Jobs(); ok {
		t.Error("channel should be closed after draining")
	}
}

func TestMemoryCancelledContext(t *testing.T) {
	q := NewMemory(1)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Enqueue(ctx, NewJob("d", models.EventPush, nil)); err != context.Canceled {
		t.Errorf("enqueue with cancelled context: got %v, want context.Canceled", err)
	}
}
