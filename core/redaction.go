package core

import "strings"

const RedactedValue = "[REDACTED]"

// secretKeyTokens flags any key whose name suggests token or credential
// material. Matching is substring-based so provider-specific variants
// (e.g. "truelayer_access_token") are caught without enumeration.
var secretKeyTokens = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"api_key",
	"apikey",
	"access_key",
	"refresh",
	"credential",
	"signature",
	"code",
}

// traceabilityKeys would otherwise trip the substring match but carry
// no secret material; audit rows need them for correlation.
var traceabilityKeys = map[string]struct{}{
	"provider_key":          {},
	"provider_link_id":      {},
	"connection_id":         {},
	"user_id":               {},
	"refresh_count":         {},
	"has_refresh_token":     {},
	"refresh_token_rotated": {},
	"trace_id":              {},
	"request_id":            {},
}

// RedactSensitiveMap returns a copy of metadata with secret-looking
// keys replaced by a placeholder. Audit details pass through here
// before they are persisted.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	redacted := redactValue(metadata)
	if out, ok := redacted.(map[string]any); ok && out != nil {
		return out
	}
	return map[string]any{}
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, nested := range typed {
			if shouldRedactKey(key) {
				out[key] = RedactedValue
				continue
			}
			out[key] = redactValue(nested)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactValue(typed[i])
		}
		return out
	default:
		return value
	}
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	if _, allowed := traceabilityKeys[key]; allowed {
		return false
	}
	for _, token := range secretKeyTokens {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}
