package requestctx

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
	ctx := WithRequestID(context.Background(), "req-42")
	if got := GetRequestID(ctx); got != "req-42" {
		t.Fatalf("expected req-42, got %q", got)
	}
}

func TestLoggerTagsRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	Logger(WithRequestID(context.Background(), "req-7")).Info("decided")
	if !strings.Contains(buf.String(), "requestId=req-7") {
		t.Fatalf("expected request id in log line, got %q", buf.String())
	}
}
