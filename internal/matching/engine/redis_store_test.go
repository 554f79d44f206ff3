package engine

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisTaskStore, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTaskStore(client, "test-queue"), client
}

func TestRedisTaskStore_AddPollAck(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	task := &Task{ID: "task-1", WorkflowID: "wf-1", RunID: "run-1", ScheduledTime: time.Now()}
	if err := store.AddTask(ctx, task); err != nil {
		t.Fatalf("AddTask error = %v", err)
	}

	length, err := store.Len(ctx)
	if err != nil {
		t.Fatalf("Len error = %v", err)
	}
	if length != 1 {
		t.Fatalf("Len = %d, want 1", length)
	}

	polled, err := store.PollTask(ctx, time.Second)
	if err != nil {
		t.Fatalf("PollTask error = %v", err)
	}
	if polled == nil || polled.ID != "task-1" {
		t.Fatalf("PollTask returned %+v, want task-1", polled)
	}

	// Task moved out of the pending list onto the processing list.
	length, _ = store.Len(ctx)
	if length != 0 {
		t.Fatalf("Len after poll = %d, want 0", length)
	}

	removed, err := store.AckTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("AckTask error = %v", err)
	}
	if !removed {
		t.Fatal("AckTask returned false, want true")
	}

	// Acking an already-removed task is a no-op, not an error.
	removed, err = store.AckTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("AckTask (second) error = %v", err)
	}
	if removed {
		t.Fatal("AckTask on already-acked task returned true, want false")
	}
}

func TestRedisTaskStore_PollTimeoutOnEmptyQueue(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	start := time.Now()
	task, err := store.PollTask(ctx, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("PollTask error = %v", err)
	}
	if task != nil {
		t.Fatalf("PollTask = %+v, want nil", task)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatal("PollTask returned before the requested timeout elapsed")
	}
}

// At-least-once: a crash between Poll and Ack must leave the task
// recoverable on the processing list for the lease reaper to requeue.
func TestRedisTaskStore_UnackedTaskSurvivesOnProcessingList(t *testing.T) {
	ctx := context.Background()
	store, client := newTestRedisStore(t)

	task := &Task{ID: "task-2", WorkflowID: "wf-1", RunID: "run-1", ScheduledTime: time.Now()}
	if err := store.AddTask(ctx, task); err != nil {
		t.Fatalf("AddTask error = %v", err)
	}
	if _, err := store.PollTask(ctx, time.Second); err != nil {
		t.Fatalf("PollTask error = %v", err)
	}

	processingLen, err := client.LLen(ctx, store.processingKey).Result()
	if err != nil {
		t.Fatalf("LLen error = %v", err)
	}
	if processingLen != 1 {
		t.Fatalf("processing list length = %d, want 1 (task must survive an unacked poll)", processingLen)
	}
}
