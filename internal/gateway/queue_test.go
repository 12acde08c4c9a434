package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/postclaw/internal/types"
)

func TestQueueConcurrency(t *testing.T) {
	queue := NewQueue(2)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var running int32
	var maxSeen int32

	queue.processor = func(run *Run) error {
		current := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&maxSeen)
			if current <= old || atomic.CompareAndSwapInt32(&maxSeen, old, current) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	}

	for i := 0; i < 5; i++ {
		run := &Run{
			ID:     types.NewRequestID(),
			Actor:  types.ActorID(fmt.Sprintf("actor-%d", i)),
			Status: RunStatusQueued,
		}
		if err := queue.Enqueue(run); err != nil {
			t.Fatal(err)
		}
	}

	time.Sleep(500 * time.Millisecond)

	if m := atomic.LoadInt32(&maxSeen); m > 2 {
		t.Errorf("expected max 2 concurrent, saw %d", m)
	}
}

func TestQueueProcessorCalled(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var processed int32

	queue.SetProcessor(func(run *Run) error {
		atomic.AddInt32(&processed, 1)
		return nil
	})

	run := &Run{
		ID:     types.NewRequestID(),
		Actor:  types.ActorID("42"),
		Status: RunStatusQueued,
	}
	if err := queue.Enqueue(run); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)

	if atomic.LoadInt32(&processed) != 1 {
		t.Errorf("expected 1 processed run, got %d", processed)
	}
}

func TestQueueSameActorOrdering(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	queue.SetProcessor(func(run *Run) error {
		mu.Lock()
		order = append(order, run.Attempts) // reuse Attempts as sequence marker
		n := len(order)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return nil
	})

	actor := types.ActorID("same-actor")
	for i := 0; i < 3; i++ {
		run := &Run{
			ID:       types.NewRequestID(),
			Actor:    actor,
			Status:   RunStatusQueued,
			Attempts: i,
		}
		if err := queue.Enqueue(run); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for runs to process")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Errorf("expected order[%d] = %d, got %d", i, i, v)
		}
	}
}

func TestQueueFailureReplies(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	queue.SetProcessor(func(run *Run) error {
		return fmt.Errorf("boom")
	})

	replies := make(chan string, 1)
	run := &Run{
		ID:      types.NewRequestID(),
		Actor:   types.ActorID("fail"),
		Status:  RunStatusQueued,
		OnReply: func(msg string) { replies <- msg },
	}
	if err := queue.Enqueue(run); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-replies:
		if msg == "" {
			t.Error("expected a non-empty failure reply")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failure reply")
	}

	if run.Status != RunStatusFailed {
		t.Errorf("expected failed status, got %s", run.Status)
	}
}

func TestQueueFailureAfterProcessorReplySendsNoFallback(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	// A processor that already told the actor what went wrong and then
	// returned the error for logging. The actor must see that one message,
	// not a second generic apology on top.
	queue.SetProcessor(func(run *Run) error {
		run.Reply("I couldn't save that just now. Please try again in a moment.")
		return fmt.Errorf("disk full")
	})

	replies := make(chan string, 2)
	run := &Run{
		ID:      types.NewRequestID(),
		Actor:   types.ActorID("fail"),
		Status:  RunStatusQueued,
		OnReply: func(msg string) { replies <- msg },
	}
	if err := queue.Enqueue(run); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-replies:
		if msg != "I couldn't save that just now. Please try again in a moment." {
			t.Errorf("unexpected reply: %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
	}

	if !queue.WaitIdle(2 * time.Second) {
		t.Fatal("queue did not go idle")
	}
	select {
	case msg := <-replies:
		t.Errorf("expected a single reply, also got %q", msg)
	default:
	}
	if run.Status != RunStatusFailed {
		t.Errorf("expected failed status, got %s", run.Status)
	}
}

func TestQueueNoProcessor(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	// Enqueue without setting a processor -- should not panic
	run := &Run{
		ID:     types.NewRequestID(),
		Actor:  types.ActorID("no-proc"),
		Status: RunStatusQueued,
	}
	if err := queue.Enqueue(run); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
}

func TestGatewayHandleInbound(t *testing.T) {
	gw := New(1)
	ctx := context.Background()
	gw.Start(ctx)
	defer gw.Stop()

	got := make(chan *Run, 1)
	gw.Queue.SetProcessor(func(run *Run) error {
		got <- run
		return nil
	})

	event := &types.InboundEvent{
		Source:  "telegram",
		ActorID: "42",
		Kind:    types.KindText,
		Text:    "hello",
	}
	replies := make(chan string, 1)
	if err := gw.HandleInbound(ctx, event, WithOnReply(func(msg string) { replies <- msg })); err != nil {
		t.Fatal(err)
	}

	select {
	case run := <-got:
		if run.Actor != "42" {
			t.Errorf("expected actor 42, got %s", run.Actor)
		}
		if run.ID == "" {
			t.Error("expected a request ID minted for the run")
		}
		if run.Event.Text != "hello" {
			t.Errorf("expected event text preserved, got %q", run.Event.Text)
		}
		if run.OnReply == nil {
			t.Error("expected reply callback attached")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run")
	}
}
