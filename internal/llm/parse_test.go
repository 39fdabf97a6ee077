package llm

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type sample struct {
	Title string   `json:"title"`
	Score float64  `json:"score"`
	Tags  []string `json:"tags"`
}

func TestDecode_FencedBlock(t *testing.T) {
	// Decodes the interior of the first ```json fenced block when it is valid JSON
	got, err := Decode[map[string]int]("```json\n{\"a\":1}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["a"] != 1 {
		t.Errorf("got %v, want a=1", got)
	}
}

func TestDecode_BareJSON(t *testing.T) {
	// Falls back to decoding the whole (trimmed) response
	got, err := Decode[map[string]int]("{\"a\":1}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["a"] != 1 {
		t.Errorf("got %v, want a=1", got)
	}
}

func TestDecode_RejectsProse(t *testing.T) {
	// Returns *ParseError (errors.Is ErrParse) for text without a payload
	_, err := Decode[map[string]int]("not json at all")
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Reason != "no valid structured payload" || pe.RawPrefix != "not json at all" {
		t.Errorf("got %+v", pe)
	}
}

func TestDecode_RawPrefixCappedAt500(t *testing.T) {
	// Returns *ParseError with the first 500 characters of the response
	raw := strings.Repeat("ж", 800)
	_, err := Decode[sample](raw)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if n := len([]rune(pe.RawPrefix)); n != 500 {
		t.Errorf("prefix length: got %d, want 500", n)
	}
}

func TestDecode_FencedBlockAmidProse(t *testing.T) {
	// Decodes the fenced payload even with prose before and after it
	raw := "Here is the analysis:\n\n```json\n{\"title\":\"X\",\"score\":3}\n```\n\nLet me know."
	got, err := Decode[sample](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "X" || got.Score != 3 {
		t.Errorf("got %+v", got)
	}
}

func TestDecode_IgnoresThinkBlocks(t *testing.T) {
	// Ignores <think>...</think> reasoning blocks around the payload
	got, err := Decode[sample]("<think>draft {\"title\":\"wrong\"}</think>\n{\"title\":\"right\"}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "right" {
		t.Errorf("got %q, want right", got.Title)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	// A known value encoded as fenced or bare JSON decodes back to an equal value
	want := sample{Title: "Horizon", Score: 71.5, Tags: []string{"ai", "hpc"}}
	b, err := json.MarshalIndent(want, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	for name, raw := range map[string]string{
		"fenced": "```json\n" + string(b) + "\n```",
		"bare":   string(b),
	} {
		got, err := Decode[sample](raw)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%s: got %+v, want %+v", name, got, want)
		}
	}
}

// --- StripThinkBlocks ---

func TestStripThinkBlocks_RemovesSingleBlock(t *testing.T) {
	// Removes a single <think>...</think> block
	got := StripThinkBlocks("<think>let me reason</think>\n{\"grantTitle\": \"X\"}")
	want := "{\"grantTitle\": \"X\"}"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStripThinkBlocks_RemovesMultipleBlocks(t *testing.T) {
	// Removes multiple <think>...</think> blocks
	got := StripThinkBlocks("<think>first</think>{\"a\":1}<think>second</think>{\"b\":2}")
	if strings.Contains(got, "<think>") || strings.Contains(got, "</think>") {
		t.Errorf("expected all think blocks removed, got %q", got)
	}
}

func TestStripThinkBlocks_UnclosedBlockStrippedToEnd(t *testing.T) {
	// Strips an unclosed <think> block from its start to end of string
	got := StripThinkBlocks("{\"a\": 1}<think>orphaned reasoning")
	want := "{\"a\": 1}"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
