package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang-wa-broadcast/internal/domain"
	"golang-wa-broadcast/internal/observability/metrics"
	"golang-wa-broadcast/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedChecker struct {
	mu      sync.Mutex
	replies []checkReply
	calls   atomic.Int32
}

type checkReply struct {
	st  ports.GatewayStatus
	err error
}

func (c *scriptedChecker) Status(context.Context) (ports.GatewayStatus, error) {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replies) == 0 {
		return ports.GatewayStatus{Success: true, Connected: true}, nil
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r.st, r.err
}

func TestPollTransitions(t *testing.T) {
	checker := &scriptedChecker{replies: []checkReply{
		{st: ports.GatewayStatus{Success: true, Connected: true}},
		{st: ports.GatewayStatus{Success: false}},
		{st: ports.GatewayStatus{Success: true, Connected: false}},
		{err: errors.New("connection refused")},
		{st: ports.GatewayStatus{Success: true, Connected: true}},
	}}
	p := NewStatusPoller(checker, time.Hour, discardLogger(), metrics.NewDispatchMetrics(prometheus.NewRegistry()))
	ctx := context.Background()

	assert.Equal(t, domain.ConnectivityUnknown, p.State())
	assert.Equal(t, domain.ConnectivityConnected, p.Poll(ctx))
	assert.Equal(t, domain.ConnectivityConnected, p.Poll(ctx), "an unsuccessful reply keeps the last state")
	assert.Equal(t, domain.ConnectivityDisconnected, p.Poll(ctx))
	assert.Equal(t, domain.ConnectivityDisconnected, p.Poll(ctx))
	assert.Equal(t, domain.ConnectivityConnected, p.Poll(ctx))
}

func TestPollIgnoresOwnCancellation(t *testing.T) {
	checker := &scriptedChecker{replies: []checkReply{
		{st: ports.GatewayStatus{Success: true, Connected: true}},
		{err: context.Canceled},
	}}
	p := NewStatusPoller(checker, time.Hour, discardLogger(), nil)
	p.Poll(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, domain.ConnectivityConnected, p.Poll(ctx))
}

func TestRunPollsImmediatelyAndOnTicker(t *testing.T) {
	checker := &scriptedChecker{}
	p := NewStatusPoller(checker, 10*time.Millisecond, discardLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return checker.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.ConnectivityConnected, p.State())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPollerGatesDispatch(t *testing.T) {
	checker := &scriptedChecker{replies: []checkReply{{st: ports.GatewayStatus{Success: true, Connected: false}}}}
	p := NewStatusPoller(checker, time.Hour, discardLogger(), nil)
	svc := newService(&fakeSender{}, WithGate(p))
	req := OperationRequest{Mode: domain.ModeVerify, Numbers: numbers(1)}

	p.Poll(context.Background())
	_, err := svc.Start(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrGatewayDisconnected)

	// An explicit re-check is always allowed and reopens the gate.
	p.Poll(context.Background())
	_, err = svc.Run(context.Background(), req)
	assert.NoError(t, err)
}
