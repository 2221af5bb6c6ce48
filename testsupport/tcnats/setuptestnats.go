package tcnats

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/nats-io/nats.go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupTestNats starts (or reuses) the nats test container and returns a
// connection to it. Callers should skip when docker is not available.
func SetupTestNats(ctx context.Context) (*nats.Conn, error) {
	port, err := nat.NewPort("tcp", "4222")
	if err != nil {
		return nil, err
	}
	container, err := SetupNats(ctx,
		WithPort(port.Port()),
		WithWaitStrategy(
			wait.ForLog("Server is ready").
				WithStartupTimeout(10*time.Second)),
		WithName("docflow-session-test-nats"),
	)
	if err != nil {
		return nil, err
	}
	containerPort, err := container.MappedPort(ctx, port)
	if err != nil {
		return nil, err
	}
	host, err := container.Host(ctx)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("nats://%s:%s", host, containerPort.Port())
	return nats.Connect(url, nats.Timeout(5*time.Second))
}
