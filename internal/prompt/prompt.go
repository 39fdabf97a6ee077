// Package prompt holds the rendering helpers shared by the stage prompts.
// Everything here is deterministic: identical inputs give identical text.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haricheung/grantflow/internal/types"
)

var directives = map[types.Language]string{
	types.LangEnglish:   "Write in English",
	types.LangRussian:   "Пиши на русском языке",
	types.LangUkrainian: "Пиши українською мовою",
}

var styles = map[types.Language]string{
	types.LangEnglish:   "Use professional scientific English with clear structure and logical flow.",
	types.LangRussian:   "Используй профессиональный научный русский язык с четкой структурой и логичным изложением.",
	types.LangUkrainian: "Використовуй професійну наукову українську мову з чіткою структурою та логічним викладом.",
}

// LanguageDirective returns the localization instruction for code. Codes
// outside {en, ru, uk}, including "", get the English instruction.
func LanguageDirective(code types.Language) string {
	return directives[types.ParseLanguage(string(code))]
}

// StyleDirective returns the closing style instruction for code, with the
// same fallback as LanguageDirective.
func StyleDirective(code types.Language) string {
	return styles[types.ParseLanguage(string(code))]
}

// JSON renders v as two-space indented JSON. Struct field order is fixed, so
// the output is stable for equal values.
func JSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}

// Section renders a titled block: "TITLE:\nbody\n".
func Section(title, body string) string {
	return title + ":\n" + strings.TrimRight(body, "\n") + "\n"
}

// Memory renders the prior-run section, or "" when digest is empty.
func Memory(digest string) string {
	if strings.TrimSpace(digest) == "" {
		return ""
	}
	return "=== PREVIOUS RUN HISTORY ===\n" + digest +
		"\nUse this information to avoid repeating mistakes from previous iterations. " +
		"Pay special attention to reviewer feedback.\n===\n"
}

// Numbered renders items as "1. a\n2. b\n".
func Numbered(items []string) string {
	var b strings.Builder
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, it)
	}
	return b.String()
}
