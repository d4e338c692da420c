package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"teamleave/internal/platform/config"
)

func TestRunNowWithoutDB(t *testing.T) {
	svc := New(nil, nil, config.Config{})
	got, err := svc.RunNow(context.Background(), "test", func(context.Context) (any, error) {
		return map[string]int{"n": 1}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got.(map[string]int)["n"] != 1 {
		t.Fatalf("unexpected details %v", got)
	}

	boom := errors.New("boom")
	if _, err := svc.RunNow(context.Background(), "test", func(context.Context) (any, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected job error, got %v", err)
	}
}

func TestWorkerDrainsQueue(t *testing.T) {
	svc := New(nil, nil, config.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	done := make(chan struct{})
	if !svc.Enqueue("test", func(context.Context) (any, error) {
		close(done)
		return nil, nil
	}) {
		t.Fatal("expected enqueue to succeed")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
}
