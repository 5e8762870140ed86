package config

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envSecrets map[string]string

func (e envSecrets) GetSecretString(_ context.Context, _, fallbackEnvVar string) (string, error) {
	if v := e[fallbackEnvVar]; v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s not set", fallbackEnvVar)
}

func baseEnv() map[string]string {
	return map[string]string{
		"PUBLIC_BASE_URL":       "https://pay.example/",
		"CLIENT_WALLET_ADDRESS": "https://wallet.example/grantpay",
		"QR_SIGNING_SECRET":     "secret",
	}
}

func load(env map[string]string) (*Config, error) {
	return FromEnv(context.Background(), func(k string) string { return env[k] }, envSecrets(env))
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := load(baseEnv())
	require.NoError(t, err)

	assert.Equal(t, StageLocal, cfg.Stage)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://pay.example", cfg.PublicBaseURL)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, time.UTC, cfg.LedgerTimeZone)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, "secret", cfg.QRSigningSecret)
	assert.Empty(t, cfg.CORSAllowedOrigins)
}

func TestFromEnv_Overrides(t *testing.T) {
	env := baseEnv()
	env["STAGE"] = StageDev
	env["STORE_DRIVER"] = StorePostgres
	env["DATABASE_URL"] = "postgres://localhost/grantpay"
	env["SESSION_TTL"] = "5m"
	env["LEDGER_TIMEZONE"] = "Africa/Johannesburg"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example, https://b.example"
	env["CLIENT_PRIVATE_KEY"] = "key"
	env["CLIENT_KEY_ID"] = "kid"

	cfg, err := load(env)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/grantpay", cfg.DatabaseURL)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "Africa/Johannesburg", cfg.LedgerTimeZone.String())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{"invalid stage", func(e map[string]string) { e["STAGE"] = "qa" }},
		{"missing base url", func(e map[string]string) { delete(e, "PUBLIC_BASE_URL") }},
		{"missing client wallet", func(e map[string]string) { delete(e, "CLIENT_WALLET_ADDRESS") }},
		{"missing qr secret", func(e map[string]string) { delete(e, "QR_SIGNING_SECRET") }},
		{"bad duration", func(e map[string]string) { e["SESSION_TTL"] = "soon" }},
		{"bad timezone", func(e map[string]string) { e["LEDGER_TIMEZONE"] = "Mars/Olympus" }},
		{"bad store", func(e map[string]string) { e["STORE_DRIVER"] = "redis" }},
		{"postgres without url", func(e map[string]string) { e["STORE_DRIVER"] = StorePostgres }},
		{"prod without key", func(e map[string]string) { e["STAGE"] = StageProd }},
		{"key without key id", func(e map[string]string) { e["CLIENT_PRIVATE_KEY"] = "key" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			tt.mutate(env)
			_, err := load(env)
			assert.Error(t, err)
		})
	}
}

func TestIsValidStage(t *testing.T) {
	assert.True(t, IsValidStage(StageProd))
	assert.True(t, IsValidStage(StageDev))
	assert.True(t, IsValidStage(StageLocal))
	assert.False(t, IsValidStage("test"))
}
