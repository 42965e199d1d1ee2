package mockgw

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"golang-wa-broadcast/internal/adapters/gateway/httpgw"
	"golang-wa-broadcast/internal/app"
	"golang-wa-broadcast/internal/countries"
	"golang-wa-broadcast/internal/domain"
	"golang-wa-broadcast/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, cfg Config) *httpgw.Client {
	t.Helper()
	cfg.Logger = quietLogger()
	fapp := New(cfg).App()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = fapp.Listener(ln) }()
	t.Cleanup(func() { _ = fapp.Shutdown() })

	return httpgw.New(httpgw.Config{
		BaseURL: "http://" + ln.Addr().String(),
		Backoff: 10 * time.Millisecond,
		Logger:  quietLogger(),
	})
}

func TestReachable(t *testing.T) {
	assert.True(t, Reachable("+919876543210"))
	assert.True(t, Reachable("+919876543218"))
	assert.False(t, Reachable("+919876543211"))
	assert.False(t, Reachable(""))
	assert.False(t, Reachable("+91abc"))
}

func TestClientAgainstConnectedGateway(t *testing.T) {
	client := serve(t, Config{StartConnected: true})
	ctx := context.Background()

	st, err := client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Connected)

	batch := domain.Batch{"+919876543210", "+919876543211"}

	res := client.Send(ctx, ports.BatchRequest{Mode: domain.ModeVerify, Batch: batch})
	require.NoError(t, res.Err)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, domain.OutcomeAvailable, res.Outcomes[0].Status)
	assert.Equal(t, domain.OutcomeUnavailable, res.Outcomes[1].Status)

	res = client.Send(ctx, ports.BatchRequest{Mode: domain.ModeSend, Batch: batch, Extra: map[string]string{"message": "hi"}})
	require.NoError(t, res.Err)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, domain.OutcomeSent, res.Outcomes[0].Status)
	assert.Equal(t, domain.OutcomeFailed, res.Outcomes[1].Status)
	assert.Equal(t, "number not on WhatsApp", res.Outcomes[1].Reason)

	res = client.Send(ctx, ports.BatchRequest{Mode: domain.ModeSend, Batch: batch})
	var re *domain.RemoteError
	require.True(t, errors.As(res.Err, &re))
	assert.Equal(t, http.StatusBadRequest, re.StatusCode)
}

func TestClientAgainstDisconnectedGateway(t *testing.T) {
	client := serve(t, Config{StartConnected: false, PairDelay: 0})
	ctx := context.Background()

	st, err := client.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Connected)

	res := client.Send(ctx, ports.BatchRequest{Mode: domain.ModeVerify, Batch: domain.Batch{"+919876543210"}})
	var re *domain.RemoteError
	require.True(t, errors.As(res.Err, &re))
	assert.Equal(t, http.StatusServiceUnavailable, re.StatusCode)
	assert.Equal(t, 1, res.Attempts)

	qr, err := client.QR(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, qr.Code)

	st, err = client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Connected, "pairing completes once the delay has passed")

	require.NoError(t, client.Disconnect(ctx))
	st, err = client.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Connected)
}

func TestDispatchPipelineEndToEnd(t *testing.T) {
	client := serve(t, Config{StartConnected: true})
	table, err := countries.Load()
	require.NoError(t, err)

	poller := app.NewStatusPoller(client, time.Hour, quietLogger(), nil)
	require.Equal(t, domain.ConnectivityConnected, poller.Poll(context.Background()))

	svc := app.NewDispatchService(app.DefaultConfig(), client, table, quietLogger(), app.WithGate(poller))

	numbers := make([]string, 45)
	for i := range numbers {
		numbers[i] = fmt.Sprintf("98765%05d", i)
	}
	snap, err := svc.Run(context.Background(), app.OperationRequest{
		Mode:    domain.ModeVerify,
		Country: "IN",
		Numbers: numbers,
	})
	require.NoError(t, err)

	r := snap.Report
	assert.False(t, r.Active)
	assert.Equal(t, 45, r.TotalPlanned)
	assert.Equal(t, 45, r.ProcessedCount)
	assert.Equal(t, 23, r.SentCount)
	assert.Equal(t, 22, r.FailedCount)
	assert.Equal(t, "+919876500000", r.Outcomes[0].Recipient)
	assert.Equal(t, "Completed: 23 available, 22 unavailable", snap.Status)
}
