package history

import (
	"fmt"
	"math"
	"strings"

	"github.com/haricheung/grantflow/internal/types"
)

const digestFeedbackItems = 5

// FormatDigest renders records (newest first, as Recent returns them) as a
// numbered oldest-first list framed by MEMORY markers.
//
// Expectations:
//   - Returns "" for no records
//   - Numbers runs from 1 in chronological order
//   - Shows SUCCESS/FAILED, stop reason, seconds, total tokens
//   - Shows "score a/b (pct%)" only when both scores are present
//   - Adds Error, Key feedback (first 5, "; "-joined) and Summary lines when non-empty
func FormatDigest(recs []types.StageRunRecord) string {
	if len(recs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("=== MEMORY: Previous runs ===\n")
	for i := range recs {
		r := recs[len(recs)-1-i]
		status := "SUCCESS"
		if !r.Success {
			status = "FAILED"
		}
		if r.StopReason != "" {
			status += " (" + r.StopReason + ")"
		}
		fmt.Fprintf(&b, "Run %d (%s): %s - %s, %ds, %d tokens",
			i+1, r.CreatedAt.UTC().Format("2006-01-02"), r.Agent, status,
			int64(math.Round(float64(r.DurationMs)/1000)), r.InputTokens+r.OutputTokens)
		if r.Score != nil && r.MaxScore != nil {
			pct := 0
			if *r.MaxScore > 0 {
				pct = int(math.Round(100 * *r.Score / *r.MaxScore))
			}
			fmt.Fprintf(&b, ", score %g/%g (%d%%)", *r.Score, *r.MaxScore, pct)
		}
		if r.ErrorMessage != "" {
			b.WriteString("\n  Error: " + r.ErrorMessage)
		}
		if len(r.Feedback) > 0 {
			fb := r.Feedback
			if len(fb) > digestFeedbackItems {
				fb = fb[:digestFeedbackItems]
			}
			b.WriteString("\n  Key feedback: " + strings.Join(fb, "; "))
		}
		if r.Summary != "" {
			b.WriteString("\n  Summary: " + r.Summary)
		}
		b.WriteString("\n")
	}
	b.WriteString("===")
	return b.String()
}
