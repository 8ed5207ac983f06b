package textutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/harborseal/harborseal/internal/schema"
)

var (
	reThink = regexp.MustCompile(`(?s)<think>.*?</think>`)
	reSpace = regexp.MustCompile(`\s+`)
)

// Truncate shortens a string to at most n characters, adding "..." if it
// was truncated. Counts runes, not bytes, so multibyte text is never split.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// Preview renders a passage as a single-line excerpt of at most n
// characters, with internal whitespace collapsed.
func Preview(s string, n int) string {
	flat := strings.TrimSpace(reSpace.ReplaceAllString(s, " "))
	return Truncate(flat, n)
}

// StripThink removes <think>…</think> blocks that some models embed.
func StripThink(s string) string {
	return reThink.ReplaceAllString(s, "")
}

// StringOrDefault returns s if it's not empty, or def if s is empty.
func StringOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ToolHint generates a short hint string for a list of requested tool
// calls, e.g. `answer("weather in London")`. Used for narration and log
// lines only, so a payload that fails to parse just yields the bare name.
func ToolHint(tcs []schema.ToolCall) string {
	parts := make([]string, 0, len(tcs))
	for _, tc := range tcs {
		var argsMap map[string]any
		_ = json.Unmarshal(tc.Arguments, &argsMap)
		var firstVal string
		for _, v := range argsMap {
			if s, ok := v.(string); ok {
				firstVal = s
			}
			break
		}
		if firstVal == "" {
			parts = append(parts, tc.Name)
			continue
		}
		if len(firstVal) > 40 {
			firstVal = firstVal[:40] + "…"
		}
		parts = append(parts, fmt.Sprintf("%s(%q)", tc.Name, firstVal))
	}
	return strings.Join(parts, ", ")
}
