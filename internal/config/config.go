// Package config loads service configuration from the environment and AWS Secrets Manager.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Stage constants define the possible deployment/runtime environments.
const (
	StageProd  = "prod"
	StageDev   = "dev"
	StageLocal = "local"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// IsValidStage checks if the provided stage string is one of the defined valid stages.
func IsValidStage(stage string) bool {
	switch stage {
	case StageProd, StageDev, StageLocal:
		return true
	default:
		return false
	}
}

// SecretSource resolves a secret from an ARN env var, falling back to a plain env var.
type SecretSource interface {
	GetSecretString(ctx context.Context, secretArnEnvVar, fallbackEnvVar string) (string, error)
}

type Config struct {
	Stage         string
	Port          string
	PublicBaseURL string

	ClientWalletAddress string
	ClientKeyID         string
	ClientPrivateKey    string

	StoreDriver string
	DatabaseURL string

	SessionTTL          time.Duration
	IncomingPaymentTTL  time.Duration
	DownstreamTimeout   time.Duration
	WalletCacheTTL      time.Duration
	WalletLookupRetries int
	LedgerTimeZone      *time.Location
	SweepInterval       time.Duration

	CORSAllowedOrigins []string
	APIKey             string
	RateLimitRPS       float64
	RateLimitBurst     int

	QRSigningSecret string

	SQSQueueURL      string
	ResendAPIKey     string
	EmailFromAddress string
	EmailFromName    string
}

// Load reads .env (when present) and the process environment, then resolves secrets through
// secrets.
func Load(ctx context.Context, secrets SecretSource) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv(ctx, os.Getenv, secrets)
}

// FromEnv builds a Config from getenv and secrets.
func FromEnv(ctx context.Context, getenv func(string) string, secrets SecretSource) (*Config, error) {
	env := envReader{getenv: getenv}

	cfg := &Config{
		Stage:               env.str("STAGE", StageLocal),
		Port:                env.str("PORT", "8080"),
		PublicBaseURL:       strings.TrimSuffix(env.str("PUBLIC_BASE_URL", ""), "/"),
		ClientWalletAddress: env.str("CLIENT_WALLET_ADDRESS", ""),
		ClientKeyID:         env.str("CLIENT_KEY_ID", ""),
		StoreDriver:         env.str("STORE_DRIVER", StoreMemory),
		SessionTTL:          env.duration("SESSION_TTL", 15*time.Minute),
		IncomingPaymentTTL:  env.duration("INCOMING_PAYMENT_TTL", 10*time.Minute),
		DownstreamTimeout:   env.duration("DOWNSTREAM_TIMEOUT", 15*time.Second),
		WalletCacheTTL:      env.duration("WALLET_CACHE_TTL", 5*time.Minute),
		WalletLookupRetries: env.integer("WALLET_LOOKUP_RETRIES", 2),
		SweepInterval:       env.duration("SWEEP_INTERVAL", time.Hour),
		CORSAllowedOrigins:  env.list("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:        env.float("RATE_LIMIT_RPS", 10),
		RateLimitBurst:      env.integer("RATE_LIMIT_BURST", 20),
		SQSQueueURL:         env.str("SQS_QUEUE_URL", ""),
		EmailFromAddress:    env.str("EMAIL_FROM_ADDRESS", "noreply@grantpay.example"),
		EmailFromName:       env.str("EMAIL_FROM_NAME", "GrantPay"),
	}
	if env.err != nil {
		return nil, env.err
	}

	if !IsValidStage(cfg.Stage) {
		return nil, fmt.Errorf("invalid STAGE %q: must be one of %s, %s, %s", cfg.Stage, StageProd, StageDev, StageLocal)
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("PUBLIC_BASE_URL is required")
	}
	if cfg.ClientWalletAddress == "" {
		return nil, fmt.Errorf("CLIENT_WALLET_ADDRESS is required")
	}

	loc, err := time.LoadLocation(env.str("LEDGER_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_TIMEZONE: %w", err)
	}
	cfg.LedgerTimeZone = loc

	switch cfg.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		cfg.DatabaseURL, err = secrets.GetSecretString(ctx, "DATABASE_URL_ARN", "DATABASE_URL")
		if err != nil {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres store: %w", err)
		}
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: must be %s or %s", cfg.StoreDriver, StoreMemory, StorePostgres)
	}

	cfg.QRSigningSecret, err = secrets.GetSecretString(ctx, "QR_SIGNING_SECRET_ARN", "QR_SIGNING_SECRET")
	if err != nil {
		return nil, fmt.Errorf("QR signing secret is required: %w", err)
	}

	// Optional secrets; an unsigned client only works against permissive test servers.
	cfg.ClientPrivateKey, _ = secrets.GetSecretString(ctx, "CLIENT_PRIVATE_KEY_ARN", "CLIENT_PRIVATE_KEY")
	cfg.ResendAPIKey, _ = secrets.GetSecretString(ctx, "RESEND_API_KEY_ARN", "RESEND_API_KEY")
	cfg.APIKey, _ = secrets.GetSecretString(ctx, "API_KEY_ARN", "API_KEY")

	if cfg.Stage == StageProd && cfg.ClientPrivateKey == "" {
		return nil, fmt.Errorf("CLIENT_PRIVATE_KEY is required in %s", StageProd)
	}
	if cfg.ClientPrivateKey != "" && cfg.ClientKeyID == "" {
		return nil, fmt.Errorf("CLIENT_KEY_ID is required when CLIENT_PRIVATE_KEY is set")
	}
	return cfg, nil
}

type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return d
}

func (e *envReader) integer(key string, def int) int {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return n
}

func (e *envReader) float(key string, def float64) float64 {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil && e.err == nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return f
}

func (e *envReader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(e.getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
