package logger

import (
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"
)

type Fields map[string]any

// Keys masked before any field map or payload reaches the log stream. Raw
// account identifiers, intent payloads and attestation material belong in the
// access-controlled audit trail, not in unstructured logs.
var sensitiveKeys = map[string]struct{}{
	"useraddress":    {},
	"user_address":   {},
	"accountnumber":  {},
	"account_number": {},
	"accountid":      {},
	"account_id":     {},
	"attestation":    {},
	"proof":          {},
	"proofhash":      {},
	"proof_hash":     {},
	"payload":        {},
	"intentpayload":  {},
	"intent_payload": {},
	"signingkey":     {},
	"signing_key":    {},
	"channelkey":     {},
	"channel_key":    {},
	"apikey":         {},
	"api_key":        {},
}

var (
	mu      sync.RWMutex
	backend = newBackend()
)

func newBackend() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true

	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}

	return log
}

// Replace swaps the backing zap logger; tests use zap.NewNop().
func Replace(log *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()

	if log == nil {
		log = zap.NewNop()
	}
	backend = log
}

func Info(message string, fields Fields) {
	mu.RLock()
	defer mu.RUnlock()

	backend.Info(message, zap.Any("fields", sanitizedFields(fields)))
}

func Error(message string, err error, fields Fields) {
	mu.RLock()
	defer mu.RUnlock()

	base := Fields{}
	for k, v := range fields {
		base[k] = v
	}
	if err != nil {
		base["error"] = err.Error()
	}

	backend.Error(message, zap.Any("fields", sanitizedFields(base)))
}

func Sync() {
	mu.RLock()
	defer mu.RUnlock()

	_ = backend.Sync()
}

// SanitizePayload renders any value through JSON and masks sensitive keys at
// every nesting level.
func SanitizePayload(payload any) any {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "<unavailable>"
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return "<unavailable>"
	}

	return sanitizeValue(data)
}

func sanitizedFields(fields Fields) any {
	if fields == nil {
		fields = Fields{}
	}

	return SanitizePayload(fields)
}

func sanitizeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, inner := range typed {
			if isSensitiveKey(key) {
				out[key] = "******"
				continue
			}
			out[key] = sanitizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, sanitizeValue(item))
		}
		return out
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "-", ""))
	_, ok := sensitiveKeys[normalized]
	return ok
}
