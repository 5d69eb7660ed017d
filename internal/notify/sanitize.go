package notify

import (
	"reflect"
	"strings"
	"time"
)

func lowerEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func resolveTargets(userID, email string) []string {
	targets := make([]string, 0, 2)
	if userID != "" {
		targets = append(targets, userID)
	}
	if lowered := lowerEmail(email); lowered != "" && lowered != userID {
		targets = append(targets, lowered)
	}
	return targets
}

// sanitizePayload deep-copies a payload, dropping entries that have no JSON
// representation (functions, channels and the like). Nils are kept; an absent
// key and an explicit null stay distinguishable downstream.
func sanitizePayload(payload map[string]any) map[string]any {
	if payload == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		clean, ok := sanitizeValue(value)
		if !ok {
			continue
		}
		out[key] = clean
	}
	return out
}

func sanitizeValue(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, true
	case map[string]any:
		return sanitizePayload(v), true
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			clean, ok := sanitizeValue(item)
			if !ok {
				continue
			}
			out = append(out, clean)
		}
		return out, true
	case time.Time:
		return v, true
	}

	switch reflect.ValueOf(value).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, false
	}
	return value, true
}
