package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const defaultConnectionString = "Host=localhost;Port=5432;Database=clearing_engine_db;Username=postgres;Password=postgres;Timeout=30;CommandTimeout=30"
const defaultChannelID = "ClearingAPI"
const defaultListenAddr = ":8080"
const defaultMirrorTopic = "mirror_journal_entries"
const defaultEventsTopic = "anchor_events"
const defaultAdapterTimeout = 60 * time.Second
const defaultMirrorInterval = 5 * time.Second
const defaultReconcileInterval = 30 * time.Second

// AnchorPolicy is the recognized per-anchor configuration block:
// {"GROCERY":{"dailyCap":"2500","expirySeconds":86400,"active":true}}.
type AnchorPolicy struct {
	DailyCap      decimal.Decimal `json:"dailyCap"`
	ExpirySeconds int64           `json:"expirySeconds"`
	Active        bool            `json:"active"`
}

func (p AnchorPolicy) ExpiryWindow() time.Duration {
	return time.Duration(p.ExpirySeconds) * time.Second
}

type Config struct {
	DatabaseDSN       string
	MigrationsDir     string
	ListenAddr        string
	ChannelID         string
	ChannelKey        string
	KafkaBrokers      []string
	MirrorTopic       string
	EventsTopic       string
	AdapterURL        string
	AdapterAPIKey     string
	AdapterTimeout    time.Duration
	SigningKey        string
	AnchorPolicies    map[string]AnchorPolicy
	MirrorInterval    time.Duration
	ReconcileInterval time.Duration
}

func Load() (Config, error) {
	// A missing .env file is fine; the environment may be set by the runtime.
	_ = godotenv.Load()

	conn := strings.TrimSpace(os.Getenv("DATABASE_DSN"))
	if conn == "" {
		conn = defaultConnectionString
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}

	channelID := strings.TrimSpace(os.Getenv("CHANNEL_ID"))
	if channelID == "" {
		channelID = defaultChannelID
	}

	channelKey := strings.TrimSpace(os.Getenv("CHANNEL_KEY"))
	if channelKey == "" {
		return Config{}, fmt.Errorf("CHANNEL_KEY is required")
	}

	signingKey := strings.TrimSpace(os.Getenv("ATTESTATION_SIGNING_KEY"))
	if signingKey == "" {
		return Config{}, fmt.Errorf("ATTESTATION_SIGNING_KEY is required")
	}

	brokers := splitList(os.Getenv("KAFKA_BROKERS"))
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	mirrorTopic := strings.TrimSpace(os.Getenv("MIRROR_TOPIC"))
	if mirrorTopic == "" {
		mirrorTopic = defaultMirrorTopic
	}

	eventsTopic := strings.TrimSpace(os.Getenv("EVENTS_TOPIC"))
	if eventsTopic == "" {
		eventsTopic = defaultEventsTopic
	}

	adapterURL := strings.TrimSpace(os.Getenv("ADAPTER_URL"))
	adapterAPIKey := strings.TrimSpace(os.Getenv("ADAPTER_API_KEY"))

	adapterTimeout, err := secondsOrDefault("ADAPTER_TIMEOUT_SECONDS", defaultAdapterTimeout)
	if err != nil {
		return Config{}, err
	}

	mirrorInterval, err := secondsOrDefault("MIRROR_INTERVAL_SECONDS", defaultMirrorInterval)
	if err != nil {
		return Config{}, err
	}

	reconcileInterval, err := secondsOrDefault("RECONCILE_INTERVAL_SECONDS", defaultReconcileInterval)
	if err != nil {
		return Config{}, err
	}

	policies, err := loadAnchorPolicies(os.Getenv("ANCHOR_POLICIES"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		DatabaseDSN:       normalizeConnectionString(conn),
		MigrationsDir:     filepath.Join("src", "migrations"),
		ListenAddr:        listenAddr,
		ChannelID:         channelID,
		ChannelKey:        channelKey,
		KafkaBrokers:      brokers,
		MirrorTopic:       mirrorTopic,
		EventsTopic:       eventsTopic,
		AdapterURL:        adapterURL,
		AdapterAPIKey:     adapterAPIKey,
		AdapterTimeout:    adapterTimeout,
		SigningKey:        signingKey,
		AnchorPolicies:    policies,
		MirrorInterval:    mirrorInterval,
		ReconcileInterval: reconcileInterval,
	}, nil
}

func loadAnchorPolicies(raw string) (map[string]AnchorPolicy, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]AnchorPolicy{}, nil
	}

	policies := map[string]AnchorPolicy{}
	if err := json.Unmarshal([]byte(raw), &policies); err != nil {
		return nil, fmt.Errorf("parse ANCHOR_POLICIES: %w", err)
	}

	normalized := make(map[string]AnchorPolicy, len(policies))
	for anchorType, policy := range policies {
		key := strings.ToUpper(strings.TrimSpace(anchorType))
		if key == "" {
			return nil, fmt.Errorf("parse ANCHOR_POLICIES: empty anchor type")
		}
		if policy.DailyCap.IsNegative() {
			return nil, fmt.Errorf("parse ANCHOR_POLICIES: %s dailyCap must not be negative", key)
		}
		if policy.ExpirySeconds <= 0 {
			return nil, fmt.Errorf("parse ANCHOR_POLICIES: %s expirySeconds must be greater than zero", key)
		}
		normalized[key] = policy
	}

	return normalized, nil
}

func secondsOrDefault(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer number of seconds", name)
	}

	return time.Duration(seconds) * time.Second, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeConnectionString(raw string) string {
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	hasSSLMode := false

	for _, part := range parts {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}

		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])

		switch key {
		case "host":
			out = append(out, "host="+val)
		case "port":
			out = append(out, "port="+val)
		case "database":
			out = append(out, "dbname="+val)
		case "username":
			out = append(out, "user="+val)
		case "password":
			out = append(out, "password="+val)
		case "timeout", "connect timeout":
			out = append(out, "connect_timeout="+val)
		case "commandtimeout", "command timeout":
			out = append(out, "statement_timeout="+val+"s")
		case "sslmode":
			hasSSLMode = true
			out = append(out, "sslmode="+val)
		default:
			out = append(out, key+"="+val)
		}
	}

	if len(out) == 0 {
		return raw
	}

	if !hasSSLMode {
		out = append(out, "sslmode=disable")
	}

	return strings.Join(out, " ")
}
