package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/config"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/logger"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubConsumer struct {
	started chan struct{}
	err     error
}

func (s *stubConsumer) Run(ctx context.Context) error {
	close(s.started)
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func testService(t *testing.T, db pinger, c consumer) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:   &config.Config{},
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:       db,
		Redis:    stubPinger{},
		PubSub:   stubPinger{},
		Consumer: c,
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresConsumer(t *testing.T) {
	_, err := NewService(ServiceParams{
		Config: &config.Config{},
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:     stubPinger{},
		Redis:  stubPinger{},
		PubSub: stubPinger{},
	})
	require.Error(t, err)
}

func TestRunFailsWhenDependencyDown(t *testing.T) {
	c := &stubConsumer{started: make(chan struct{})}
	svc := testService(t, stubPinger{err: errors.New("connection refused")}, c)

	err := svc.Run(context.Background())
	require.ErrorContains(t, err, "database ping failed")
	select {
	case <-c.started:
		t.Fatal("consumer should not start before dependencies are ready")
	default:
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	c := &stubConsumer{started: make(chan struct{})}
	svc := testService(t, stubPinger{}, c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	<-c.started
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRunSurfacesConsumerFailure(t *testing.T) {
	c := &stubConsumer{started: make(chan struct{}), err: errors.New("subscription deleted")}
	svc := testService(t, stubPinger{}, c)

	err := svc.Run(context.Background())
	require.ErrorContains(t, err, "subscription deleted")
}
