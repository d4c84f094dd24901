package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the activation service.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string
	MaxDBConns  int32

	// AtRestMasterKey is the optional Base64 database-encryption key; with no
	// key configured, secrets are stored tagged NO_ENCRYPTION.
	AtRestMasterKey string

	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	AllowEphemeralJWT bool

	BcryptCost int

	ActivationValidity        time.Duration
	DefaultMaxFailedAttempts  int64
	RecoveryMaxFailedAttempts int64
	MaxPukCount               int
	TokenFreshnessWindow      time.Duration
	TokenGenerateRetries      int

	CallbackPollInterval time.Duration
	CallbackBatchSize    int
	CallbackClaimTTL     time.Duration
	CallbackMaxRetries   int
	CallbackHTTPTimeout  time.Duration
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Security struct {
		AtRestMasterKey string `yaml:"at_rest_master_key"`
		JWTKeyID        string `yaml:"jwt_key_id"`
	} `yaml:"security"`
	Protocol struct {
		ActivationValidityMinutes int   `yaml:"activation_validity_minutes"`
		MaxFailedAttempts         int64 `yaml:"max_failed_attempts"`
		RecoveryMaxFailedAttempts int64 `yaml:"recovery_max_failed_attempts"`
		MaxPukCount               int   `yaml:"max_puk_count"`
		TokenFreshnessSeconds     int   `yaml:"token_freshness_seconds"`
	} `yaml:"protocol"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                 "activation-service",
		HTTPPort:                  8080,
		GRPCPort:                  9090,
		MaxDBConns:                20,
		JWTKeyID:                  "activation-admin-key-1",
		AllowEphemeralJWT:         true,
		BcryptCost:                12,
		ActivationValidity:        5 * time.Minute,
		DefaultMaxFailedAttempts:  5,
		RecoveryMaxFailedAttempts: 5,
		MaxPukCount:               10,
		TokenFreshnessWindow:      5 * time.Minute,
		TokenGenerateRetries:      3,
		CallbackPollInterval:      2 * time.Second,
		CallbackBatchSize:         100,
		CallbackClaimTTL:          30 * time.Second,
		CallbackMaxRetries:        5,
		CallbackHTTPTimeout:       10 * time.Second,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Security.AtRestMasterKey != "" {
			cfg.AtRestMasterKey = f.Security.AtRestMasterKey
		}
		if f.Security.JWTKeyID != "" {
			cfg.JWTKeyID = f.Security.JWTKeyID
		}
		if f.Protocol.ActivationValidityMinutes > 0 {
			cfg.ActivationValidity = time.Duration(f.Protocol.ActivationValidityMinutes) * time.Minute
		}
		if f.Protocol.MaxFailedAttempts > 0 {
			cfg.DefaultMaxFailedAttempts = f.Protocol.MaxFailedAttempts
		}
		if f.Protocol.RecoveryMaxFailedAttempts > 0 {
			cfg.RecoveryMaxFailedAttempts = f.Protocol.RecoveryMaxFailedAttempts
		}
		if f.Protocol.MaxPukCount > 0 {
			cfg.MaxPukCount = f.Protocol.MaxPukCount
		}
		if f.Protocol.TokenFreshnessSeconds > 0 {
			cfg.TokenFreshnessWindow = time.Duration(f.Protocol.TokenFreshnessSeconds) * time.Second
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.AtRestMasterKey = envOrDefault("AT_REST_MASTER_KEY", cfg.AtRestMasterKey)
	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTKeyID = envOrDefault("JWT_KEY_ID", cfg.JWTKeyID)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.ActivationValidity = time.Duration(envInt("ACTIVATION_VALIDITY_MINUTES", int(cfg.ActivationValidity.Minutes()))) * time.Minute
	cfg.DefaultMaxFailedAttempts = int64(envInt("MAX_FAILED_ATTEMPTS", int(cfg.DefaultMaxFailedAttempts)))
	cfg.RecoveryMaxFailedAttempts = int64(envInt("RECOVERY_MAX_FAILED_ATTEMPTS", int(cfg.RecoveryMaxFailedAttempts)))
	cfg.MaxPukCount = envInt("MAX_PUK_COUNT", cfg.MaxPukCount)
	cfg.TokenFreshnessWindow = time.Duration(envInt("TOKEN_FRESHNESS_SECONDS", int(cfg.TokenFreshnessWindow.Seconds()))) * time.Second
	cfg.TokenGenerateRetries = envInt("TOKEN_GENERATE_RETRIES", cfg.TokenGenerateRetries)

	cfg.CallbackPollInterval = time.Duration(envInt("CALLBACK_POLL_SECONDS", int(cfg.CallbackPollInterval.Seconds()))) * time.Second
	cfg.CallbackBatchSize = envInt("CALLBACK_BATCH_SIZE", cfg.CallbackBatchSize)
	cfg.CallbackClaimTTL = time.Duration(envInt("CALLBACK_CLAIM_TTL_SECONDS", int(cfg.CallbackClaimTTL.Seconds()))) * time.Second
	cfg.CallbackMaxRetries = envInt("CALLBACK_MAX_RETRIES", cfg.CallbackMaxRetries)
	cfg.CallbackHTTPTimeout = time.Duration(envInt("CALLBACK_HTTP_TIMEOUT_SECONDS", int(cfg.CallbackHTTPTimeout.Seconds()))) * time.Second

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if (cfg.JWTPrivateKeyPEM == "" || cfg.JWTPublicKeyPEM == "") && !cfg.AllowEphemeralJWT {
		return Config{}, fmt.Errorf("missing JWT_PRIVATE_KEY_PEM or JWT_PUBLIC_KEY_PEM")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}
