package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var (
	// Matches ```json\n{...}\n```, ```{...}``` and similar
	codeFenceRegex = regexp.MustCompile("(?s)`{3}(?:json|javascript|js)?\\s*\\n?(.*?)\\n?`{3}")

	trailingCommaRegex     = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRegex       = regexp.MustCompile(`([{,]\s*)([a-zA-Z_$][a-zA-Z0-9_$]*)\s*:`)
	singleLineCommentRegex = regexp.MustCompile(`(?m)^\s*//.*$`)
	multiLineCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// ParseResult is the outcome of a lenient JSON parse
type ParseResult[T any] struct {
	Success      bool
	Data         T
	Error        string
	OriginalText string
}

// ParseOptions configures Parse
type ParseOptions struct {
	Context      string // prefixed to error messages
	LogErrors    bool
	MaxInputSize int // bytes, 0 = 64KB
}

const defaultMaxInputSize = 64 * 1024

// Parse decodes model output as JSON, tolerating the usual LLM quirks.
//
// Strategies, in order:
//  1. direct decode
//  2. strip code fences
//  3. drop trailing commas and comments, quote bare keys
//  4. extract the first balanced object from surrounding prose
func Parse[T any](text string, opts ...ParseOptions) ParseResult[T] {
	var options ParseOptions
	if len(opts) > 0 {
		options = opts[0]
	}
	if options.MaxInputSize == 0 {
		options.MaxInputSize = defaultMaxInputSize
	}

	if len(text) > options.MaxInputSize {
		return createError[T](
			fmt.Sprintf("input exceeds size limit (%d > %d bytes)", len(text), options.MaxInputSize),
			truncate(text, 1000),
			options.Context,
		)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return createError[T]("empty input", text, options.Context)
	}

	candidates := []string{trimmed}
	if unfenced := removeCodeFences(trimmed); unfenced != trimmed {
		candidates = append(candidates, unfenced)
	}
	cleaned := cleanupJSON(candidates[len(candidates)-1])
	candidates = append(candidates, cleaned)
	if obj, ok := extractJSONObject(cleaned); ok {
		candidates = append(candidates, obj)
	}

	var lastErr error
	for _, c := range candidates {
		var result T
		if err := json.Unmarshal([]byte(c), &result); err != nil {
			lastErr = err
			continue
		}
		return ParseResult[T]{Success: true, Data: result, OriginalText: text}
	}

	if options.LogErrors {
		slog.Debug("JSON parse failed",
			"error", lastErr,
			"textPreview", truncate(text, 100),
			"context", options.Context)
	}
	return createError[T]("all JSON parsing strategies failed", text, options.Context)
}

func removeCodeFences(text string) string {
	if m := codeFenceRegex.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(text, "`") && strings.HasSuffix(text, "`") {
		return strings.TrimSpace(strings.Trim(text, "`"))
	}
	return text
}

// cleanupJSON does not touch single quotes; apostrophes inside valid strings
// would break.
func cleanupJSON(text string) string {
	cleaned := trailingCommaRegex.ReplaceAllString(text, "$1")
	cleaned = unquotedKeyRegex.ReplaceAllString(cleaned, `$1"$2":`)
	cleaned = singleLineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = multiLineCommentRegex.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// extractJSONObject returns the first balanced {...} in raw, respecting
// string literals and escapes.
func extractJSONObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escape := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

func createError[T any](message, text, context string) ParseResult[T] {
	if context != "" {
		message = context + ": " + message
	}
	return ParseResult[T]{Error: message, OriginalText: text}
}
