// Package healthclient queries the authd gRPC health endpoint.
package healthclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ErrNotServing is returned when the server answers but is not ready.
var ErrNotServing = errors.New("healthclient: service not serving")

// Client wraps a grpc.health.v1.Health connection.
type Client struct {
	conn *grpc.ClientConn
	svc  healthpb.HealthClient
}

// Dial creates a new client with insecure transport unless opts say otherwise.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, svc: healthpb.NewHealthClient(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Result is a successful health answer.
type Result struct {
	Version string
}

// Check asks about service ("" for the whole server). The server build
// version is read from the x-authd-version response header.
func (c *Client) Check(ctx context.Context, service string) (Result, error) {
	var header metadata.MD
	resp, err := c.svc.Check(ctx, &healthpb.HealthCheckRequest{Service: service}, grpc.Header(&header))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Result{}, fmt.Errorf("healthclient: unknown service %q", service)
		}
		return Result{}, err
	}
	res := Result{}
	if v := header.Get("x-authd-version"); len(v) > 0 {
		res.Version = v[0]
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return res, ErrNotServing
	}
	return res, nil
}

// WithTimeout returns a context with a default timeout useful for CLI tools.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(parent, d)
}
