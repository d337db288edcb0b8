package llm

// options.go centralizes parsing of the per-call options map so providers
// share one set of defaults and validation rules.

// Defaults applied when a call supplies no explicit value.
const (
	// DefaultMaxTokens bounds response length when the caller does not.
	DefaultMaxTokens = 1024
)

// Recognized option keys.
const (
	// OptionSystem carries the candidate system prompt for generation calls.
	OptionSystem = "system"
	// OptionCallKind labels the call for the audit trail: "completion" for
	// response generation, "judging" for scoring calls.
	OptionCallKind = "call_kind"
	// OptionTemperature overrides the provider's sampling temperature.
	OptionTemperature = "temperature"
	// OptionMaxTokens overrides the response length bound.
	OptionMaxTokens = "max_tokens"
	// OptionAttempt carries the scheduler's attempt number into audit lines.
	OptionAttempt = "attempt"
)

// Audit call kinds.
const (
	CallKindCompletion = "completion"
	CallKindJudging    = "judging"
)

// RequestOptions is the normalized form of a call's options map.
type RequestOptions struct {
	// MaxTokens bounds the generated response length.
	MaxTokens int
	// Temperature controls sampling randomness; nil uses the provider default.
	Temperature *float64
	// System is the system prompt, empty when the call carries none. The
	// empty combination legitimately produces an empty system prompt.
	System string
}

// ParseRequestOptions extracts the standardized options, substituting
// defaults for missing or invalid entries. Unknown keys are ignored by
// providers; middleware reads them directly from the raw map.
func ParseRequestOptions(opts map[string]any) RequestOptions {
	options := RequestOptions{
		MaxTokens: extractInt(opts, OptionMaxTokens, DefaultMaxTokens),
		System:    extractString(opts, OptionSystem, ""),
	}
	if temp, ok := extractFloat(opts, OptionTemperature); ok && temp >= 0.0 && temp <= 2.0 {
		options.Temperature = &temp
	}
	return options
}

func extractInt(opts map[string]any, key string, defaultVal int) int {
	if opts == nil {
		return defaultVal
	}
	if val, ok := opts[key].(int); ok && val > 0 {
		return val
	}
	return defaultVal
}

func extractString(opts map[string]any, key, defaultVal string) string {
	if opts == nil {
		return defaultVal
	}
	if val, ok := opts[key].(string); ok {
		return val
	}
	return defaultVal
}

func extractFloat(opts map[string]any, key string) (float64, bool) {
	if opts == nil {
		return 0, false
	}
	switch val := opts[key].(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	default:
		return 0, false
	}
}
