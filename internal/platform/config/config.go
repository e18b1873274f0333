// Package config loads and validates process configuration from the
// environment. Every external endpoint the service talks to is declared here
// with named, typed fields; defaults exist only for genuinely optional knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

// Config is the root configuration validated at startup.
type Config struct {
	Server   Server
	Ledger   Ledger
	Gateway  Gateway
	Redis    Redis
	Postgres Postgres
	Kafka    Kafka
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Ledger points at the RPC endpoint and registry contract the ownership
// controller and resolver talk to. An empty RPCURL selects the in-memory
// ledger for local development; RegistryAddress is then ignored.
type Ledger struct {
	RPCURL          string
	Network         string
	ChainID         int64
	RegistryAddress string
	// Confirmations is how many blocks must follow a transaction before the
	// controller reports it final.
	Confirmations uint64
	PollInterval  time.Duration
	CallTimeout   time.Duration
}

// Gateway configures the content network gateway. The credential is supplied
// via environment only and never embedded in stored content.
type Gateway struct {
	BaseURL        string
	JWT            string
	RequestTimeout time.Duration
	MaxRetries     uint64
}

// Redis configures the shared pointer store for the discovery registry.
// An empty URL selects the in-memory pointer store.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// PointerKey is the well-known slot holding the latest registry address.
	PointerKey string
}

// Postgres configures the checkpoint store. Empty URL selects memory.
type Postgres struct {
	URL string
}

// Kafka configures the audit event publisher. Empty brokers disable it.
type Kafka struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envOr("DIDHUB_ADDR", ":8080"),
			ShutdownTimeout: envDuration("DIDHUB_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Ledger: Ledger{
			RPCURL:          os.Getenv("DIDHUB_LEDGER_RPC_URL"),
			Network:         envOr("DIDHUB_LEDGER_NETWORK", "sepolia"),
			ChainID:         envInt64("DIDHUB_LEDGER_CHAIN_ID", 11155111),
			RegistryAddress: os.Getenv("DIDHUB_REGISTRY_ADDRESS"),
			Confirmations:   uint64(envInt64("DIDHUB_LEDGER_CONFIRMATIONS", 1)),
			PollInterval:    envDuration("DIDHUB_LEDGER_POLL_INTERVAL", 2*time.Second),
			CallTimeout:     envDuration("DIDHUB_LEDGER_CALL_TIMEOUT", 10*time.Second),
		},
		Gateway: Gateway{
			BaseURL:        os.Getenv("DIDHUB_GATEWAY_URL"),
			JWT:            os.Getenv("DIDHUB_GATEWAY_JWT"),
			RequestTimeout: envDuration("DIDHUB_GATEWAY_TIMEOUT", 15*time.Second),
			MaxRetries:     uint64(envInt64("DIDHUB_GATEWAY_MAX_RETRIES", 4)),
		},
		Redis: Redis{
			URL:          os.Getenv("DIDHUB_REDIS_URL"),
			PoolSize:     int(envInt64("DIDHUB_REDIS_POOL_SIZE", 10)),
			MinIdleConns: int(envInt64("DIDHUB_REDIS_MIN_IDLE", 2)),
			DialTimeout:  envDuration("DIDHUB_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("DIDHUB_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("DIDHUB_REDIS_WRITE_TIMEOUT", 3*time.Second),
			PointerKey:   envOr("DIDHUB_REGISTRY_POINTER_KEY", "didhub:registry:latest"),
		},
		Postgres: Postgres{
			URL: os.Getenv("DIDHUB_POSTGRES_URL"),
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("DIDHUB_KAFKA_BROKERS")),
			Topic:   envOr("DIDHUB_KAFKA_AUDIT_TOPIC", "didhub.audit"),
		},
	}
}

// Validate rejects configurations that cannot possibly work before any
// network dial happens. It is the only place startup invariants live.
func (c Config) Validate() error {
	if c.Ledger.RPCURL != "" {
		if c.Ledger.RegistryAddress == "" {
			return fmt.Errorf("DIDHUB_REGISTRY_ADDRESS is required when a ledger RPC URL is set")
		}
		if !common.IsHexAddress(c.Ledger.RegistryAddress) {
			return fmt.Errorf("DIDHUB_REGISTRY_ADDRESS %q is not a hex contract address", c.Ledger.RegistryAddress)
		}
		if c.Ledger.ChainID <= 0 {
			return fmt.Errorf("DIDHUB_LEDGER_CHAIN_ID must be positive, got %d", c.Ledger.ChainID)
		}
	}
	if c.Ledger.Network == "" {
		return fmt.Errorf("DIDHUB_LEDGER_NETWORK cannot be empty")
	}
	if c.Gateway.BaseURL != "" && c.Gateway.JWT != "" {
		if err := checkGatewayJWT(c.Gateway.JWT); err != nil {
			return fmt.Errorf("DIDHUB_GATEWAY_JWT: %w", err)
		}
	}
	return nil
}

// checkGatewayJWT parses the gateway credential without verifying its
// signature (we do not hold the gateway's key) purely to reject credentials
// that are malformed or already expired, which would otherwise surface as
// confusing 401s at first upload.
func checkGatewayJWT(raw string) error {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return fmt.Errorf("malformed credential: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("reading exp claim: %w", err)
	}
	if exp != nil && exp.Before(time.Now()) {
		return fmt.Errorf("credential expired at %s", exp.Time.Format(time.RFC3339))
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
