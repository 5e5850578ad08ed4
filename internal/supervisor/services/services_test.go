// Feeflow - Fee Command Fan-Out and Charging Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/feeflow

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHTTPServer struct {
	listenErr   error
	shutdownErr error
	shutdowns   atomic.Int64
	serving     chan struct{}
	release     chan struct{}
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{
		serving: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (m *mockHTTPServer) ListenAndServe() error {
	close(m.serving)
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.release
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(_ context.Context) error {
	m.shutdowns.Add(1)
	close(m.release)
	return m.shutdownErr
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	server := newMockHTTPServer()
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-server.serving
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	assert.Equal(t, int64(1), server.shutdowns.Load())
}

func TestHTTPServerServiceListenFailure(t *testing.T) {
	server := newMockHTTPServer()
	server.listenErr = errors.New("address in use")
	svc := NewHTTPServerService(server, time.Second)

	err := svc.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
	assert.Zero(t, server.shutdowns.Load())
}

func TestHTTPServerServiceString(t *testing.T) {
	assert.Equal(t, "http-server", NewHTTPServerService(newMockHTTPServer(), 0).String())
}

type mockScheduler struct {
	startErr error
	stopErr  error
	started  atomic.Int64
	stopped  atomic.Int64
}

func (m *mockScheduler) Start(_ context.Context) error {
	m.started.Add(1)
	return m.startErr
}

func (m *mockScheduler) Stop() error {
	m.stopped.Add(1)
	return m.stopErr
}

func TestScanSchedulerServiceLifecycle(t *testing.T) {
	manager := &mockScheduler{}
	svc := NewScanSchedulerService(manager)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// Let Start run, then request shutdown.
	require.Eventually(t, func() bool { return manager.started.Load() == 1 },
		time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	assert.Equal(t, int64(1), manager.stopped.Load())
}

func TestScanSchedulerServiceStartFailure(t *testing.T) {
	manager := &mockScheduler{startErr: errors.New("no scanner")}
	svc := NewScanSchedulerService(manager)

	err := svc.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scanner")
	assert.Zero(t, manager.stopped.Load())
}

func TestScanSchedulerServiceStopFailure(t *testing.T) {
	manager := &mockScheduler{stopErr: errors.New("wedged")}
	svc := NewScanSchedulerService(manager)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Serve(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wedged")
}

func TestScanSchedulerServiceString(t *testing.T) {
	assert.Equal(t, "scan-scheduler", NewScanSchedulerService(&mockScheduler{}).String())
}
