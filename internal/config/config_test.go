package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "GATEWAY_URL", "AMQP_URL", "VERIFY_BATCH_SIZE", "SEND_TIMEOUT", "BATCH_INTERVAL"} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "http://localhost:3001", cfg.GatewayURL)
	assert.Empty(t, cfg.AMQPURL)
	assert.Equal(t, 100, cfg.Send.MaxRecipients)
	assert.Equal(t, 0, cfg.Send.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Send.Timeout)
	assert.Equal(t, 20, cfg.Verify.BatchSize)
	assert.Equal(t, 300*time.Second, cfg.Verify.Timeout)
	assert.Equal(t, 10, cfg.LegacyVerify.MaxRecipients)
	assert.Equal(t, 5*time.Second, cfg.RetryBackoff)
	assert.Equal(t, 10*time.Second, cfg.StatusPollInterval)
	assert.Zero(t, cfg.BatchInterval)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("GATEWAY_URL", "http://gw:9000")
	t.Setenv("VERIFY_BATCH_SIZE", "25")
	t.Setenv("VERIFY_TIMEOUT", "2m")
	t.Setenv("BATCH_INTERVAL", "1s")
	t.Setenv("DEFAULT_DIAL_CODE", "44")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://gw:9000", cfg.GatewayURL)
	assert.Equal(t, 25, cfg.Verify.BatchSize)
	assert.Equal(t, 2*time.Minute, cfg.Verify.Timeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Origins())

	d := cfg.Dispatch()
	assert.Equal(t, "44", d.DefaultDialCode)
	assert.Equal(t, time.Second, d.BatchInterval)
	assert.Equal(t, 25, d.Verify.BatchSize)
}

func TestLegacyVerifyTimeoutIsIndependent(t *testing.T) {
	t.Setenv("SEND_TIMEOUT", "45s")
	t.Setenv("LEGACY_VERIFY_TIMEOUT", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Send.Timeout)
	assert.Equal(t, 30*time.Second, cfg.LegacyVerify.Timeout)

	t.Setenv("LEGACY_VERIFY_TIMEOUT", "1m")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.LegacyVerify.Timeout)
	assert.Equal(t, 45*time.Second, cfg.Send.Timeout)
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("SEND_MAX_RECIPIENTS", "lots")
	t.Setenv("RETRY_BACKOFF", "5 seconds")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SEND_MAX_RECIPIENTS")
	assert.Contains(t, err.Error(), "RETRY_BACKOFF")
}
