package healthclient

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeHealth struct {
	healthpb.UnimplementedHealthServer
	serving bool
}

func (f *fakeHealth) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	_ = grpc.SetHeader(ctx, metadata.Pairs("x-authd-version", "9.9.9"))
	if req.GetService() == "missing" {
		return nil, status.Error(codes.NotFound, "unknown")
	}
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if f.serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	return &healthpb.HealthCheckResponse{Status: st}, nil
}

func newBufClient(t *testing.T, srv healthpb.HealthServer) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, srv)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	c, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCheckServing(t *testing.T) {
	c := newBufClient(t, &fakeHealth{serving: true})
	ctx, cancel := WithTimeout(context.Background(), 0)
	defer cancel()

	res, err := c.Check(ctx, "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Version != "9.9.9" {
		t.Fatalf("unexpected version %q", res.Version)
	}
}

func TestCheckNotServing(t *testing.T) {
	c := newBufClient(t, &fakeHealth{})
	ctx, cancel := WithTimeout(context.Background(), 0)
	defer cancel()

	res, err := c.Check(ctx, "authd")
	if !errors.Is(err, ErrNotServing) {
		t.Fatalf("expected ErrNotServing, got %v", err)
	}
	if res.Version != "9.9.9" {
		t.Fatalf("version should still be reported, got %q", res.Version)
	}
}

func TestCheckUnknownService(t *testing.T) {
	c := newBufClient(t, &fakeHealth{serving: true})
	ctx, cancel := WithTimeout(context.Background(), 0)
	defer cancel()

	if _, err := c.Check(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown service")
	}
}

func TestCloseNil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
