package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang-wa-broadcast/internal/app"
	"golang-wa-broadcast/internal/countries"
	"golang-wa-broadcast/internal/domain"
	"golang-wa-broadcast/internal/ports"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu           sync.Mutex
	connected    bool
	disconnected int
}

func (g *fakeGateway) Send(_ context.Context, req ports.BatchRequest) domain.BatchResult {
	res := domain.BatchResult{Attempts: 1}
	for _, r := range req.Batch {
		status := domain.OutcomeSent
		if req.Mode.IsVerify() {
			status = domain.OutcomeAvailable
		}
		res.Outcomes = append(res.Outcomes, domain.DispatchOutcome{Recipient: r, Status: status})
	}
	return res
}

func (g *fakeGateway) Status(context.Context) (ports.GatewayStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ports.GatewayStatus{Success: true, Connected: g.connected}, nil
}

func (g *fakeGateway) QR(context.Context) (ports.PairingCode, error) {
	return ports.PairingCode{Code: "2@pair", ExpiresIn: 30 * time.Second}, nil
}

func (g *fakeGateway) Disconnect(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = false
	g.disconnected++
	return nil
}

func (g *fakeGateway) setConnected(v bool) {
	g.mu.Lock()
	g.connected = v
	g.mu.Unlock()
}

func newTestApp(t *testing.T) (*fiber.App, *fakeGateway) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := &fakeGateway{connected: true}

	table, err := countries.Load()
	require.NoError(t, err)

	poller := app.NewStatusPoller(gw, time.Hour, log, nil)
	svc := app.NewDispatchService(app.DefaultConfig(), gw, table, log, app.WithGate(poller))

	fapp := fiber.New()
	NewHandler(svc, poller, gw, table, log).Register(fapp.Group("/api"))
	return fapp, gw
}

func doJSON(t *testing.T, fapp *fiber.App, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := fapp.Test(req)
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp, out
}

func TestStartVerifyAndPollSnapshot(t *testing.T) {
	fapp, _ := newTestApp(t)

	resp, body := doJSON(t, fapp, http.MethodPost, "/api/operations/verify",
		`{"country":"IN","numbers":["9876543210, 9876543210, 12345","8123456789"]}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "verify", body["mode"])
	assert.Equal(t, float64(2), body["total_planned"])
	assert.Equal(t, []any{"+919876543210", "+918123456789"}, body["recipients"])

	id := body["operation_id"].(string)
	var snap map[string]any
	require.Eventually(t, func() bool {
		_, snap = doJSON(t, fapp, http.MethodGet, "/api/operations/"+id, "")
		report := snap["report"].(map[string]any)
		return report["active"] == false
	}, time.Second, 10*time.Millisecond)

	report := snap["report"].(map[string]any)
	assert.Equal(t, float64(2), report["processed_count"])
	assert.Equal(t, float64(2), report["sent_count"])
	assert.Equal(t, "Completed: 2 available, 0 unavailable", snap["status"])

	_, current := doJSON(t, fapp, http.MethodGet, "/api/operations/current", "")
	assert.Equal(t, id, current["operation_id"])
}

func TestStartSendValidation(t *testing.T) {
	fapp, _ := newTestApp(t)

	resp, body := doJSON(t, fapp, http.MethodPost, "/api/operations/send", `{"numbers":["9876543210"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, domain.ErrEmptyMessage.Error(), body["error"])

	resp, _ = doJSON(t, fapp, http.MethodPost, "/api/operations/send", `{"numbers":["123"],"message":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, fapp, http.MethodPost, "/api/operations/verify", `{"country":"XX","numbers":["9876543210"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, fapp, http.MethodPost, "/api/operations/send", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartRefusedWhenDisconnected(t *testing.T) {
	fapp, gw := newTestApp(t)
	gw.setConnected(false)

	_, body := doJSON(t, fapp, http.MethodPost, "/api/connectivity/check", "")
	assert.Equal(t, "disconnected", body["state"])

	resp, _ := doJSON(t, fapp, http.MethodPost, "/api/operations/verify", `{"numbers":["9876543210"]}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	gw.setConnected(true)
	_, body = doJSON(t, fapp, http.MethodPost, "/api/connectivity/check", "")
	assert.Equal(t, "connected", body["state"])

	_, body = doJSON(t, fapp, http.MethodGet, "/api/connectivity", "")
	assert.Equal(t, "connected", body["state"])

	resp, _ = doJSON(t, fapp, http.MethodPost, "/api/operations/verify", `{"numbers":["9876543210"]}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestOperationLookupErrors(t *testing.T) {
	fapp, _ := newTestApp(t)

	resp, _ := doJSON(t, fapp, http.MethodGet, "/api/operations/current", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, fapp, http.MethodGet, "/api/operations/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, fapp, http.MethodGet, "/api/operations/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGatewaySessionRoutes(t *testing.T) {
	fapp, gw := newTestApp(t)

	_, body := doJSON(t, fapp, http.MethodGet, "/api/gateway/qr", "")
	assert.Equal(t, true, body["pending"])
	assert.Equal(t, "2@pair", body["qr"])
	assert.Equal(t, float64(30000), body["expires_in_ms"])

	resp, body := doJSON(t, fapp, http.MethodPost, "/api/gateway/disconnect", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "disconnected", body["state"])
	assert.Equal(t, 1, gw.disconnected)
}

func TestCountries(t *testing.T) {
	fapp, _ := newTestApp(t)

	resp, err := fapp.Test(httptest.NewRequest(http.MethodGet, "/api/countries", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []countries.Country
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Greater(t, len(list), 200)
	assert.Equal(t, countries.WildcardCode, list[0].Code)
}
