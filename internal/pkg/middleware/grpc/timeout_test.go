package grpc

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
)

func TestUnaryTimeoutInterceptor(t *testing.T) {
	var got time.Duration
	handler := func(ctx context.Context, _ any) (any, error) {
		dl, ok := ctx.Deadline()
		if !ok {
			t.Fatal("handler context has no deadline")
		}
		got = time.Until(dl)
		return nil, nil
	}

	icpt := UnaryTimeoutInterceptor(time.Second)
	if _, err := icpt(context.Background(), nil, &grpc.UnaryServerInfo{}, handler); err != nil {
		t.Fatalf("interceptor returned %v", err)
	}
	if got <= 0 || got > time.Second {
		t.Errorf("deadline in %s, want within 1s", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := icpt(ctx, nil, &grpc.UnaryServerInfo{}, handler); err != nil {
		t.Fatalf("interceptor returned %v", err)
	}
	if got > 100*time.Millisecond {
		t.Errorf("caller deadline was extended to %s", got)
	}
}
