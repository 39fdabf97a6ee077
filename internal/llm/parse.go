package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// rawPrefixLimit is how much of an unparseable response ParseError retains.
const rawPrefixLimit = 500

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// Decode extracts a JSON payload from free-text model output and decodes it into T.
//
// Expectations:
//   - Decodes the interior of the first ```json fenced block when it is valid JSON
//   - Falls back to decoding the whole (trimmed) response
//   - Ignores <think>...</think> reasoning blocks around the payload
//   - Returns *ParseError (errors.Is ErrParse) with the first 500 characters otherwise
func Decode[T any](raw string) (T, error) {
	text := StripThinkBlocks(raw)
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		var out T
		if err := json.Unmarshal([]byte(m[1]), &out); err == nil {
			return out, nil
		}
	}
	var out T
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}
	var zero T
	return zero, &ParseError{
		Reason:    "no valid structured payload",
		RawPrefix: prefix(raw, rawPrefixLimit),
	}
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// StripThinkBlocks removes all <think>...</think> blocks from s.
// Reasoning models emit these before or between JSON objects; they are not
// part of the structured output.
//
// Expectations:
//   - Removes a single <think>...</think> block
//   - Removes multiple <think>...</think> blocks
//   - Strips an unclosed <think> block from its start to end of string
//   - Returns s trimmed when no <think> tag is present
func StripThinkBlocks(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "</think>")
		if end == -1 {
			s = s[:start]
			break
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}
