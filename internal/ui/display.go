// Package ui renders live pipeline progress from the bus tap.
package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/haricheung/grantflow/internal/types"
	"github.com/mattn/go-runewidth"
)

var (
	dimStyle   = lipgloss.NewStyle().Faint(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	stageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	scoreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

var stageEmoji = map[types.Stage]string{
	types.StageAnalysis:    "🔎",
	types.StageFeasibility: "⚖️ ",
	types.StageWriting:     "✍️ ",
	types.StageReview:      "🧐",
	types.StagePackage:     "📦",
}

var stageStatus = map[types.Stage]string{
	types.StageAnalysis:    "analyzing grant call...",
	types.StageFeasibility: "assessing feasibility...",
	types.StageWriting:     "writing proposal...",
	types.StageReview:      "reviewing proposal...",
	types.StagePackage:     "assembling package...",
}

var spinRunes = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// lineWidth caps the display width of error details.
const lineWidth = 72

// Display draws one box per run: a line per finished stage, a line per
// reviewer verdict, and a spinner while a stage is in flight. All terminal
// writes happen on the Run goroutine.
type Display struct {
	tap     <-chan types.Message
	out     io.Writer
	mu      sync.Mutex
	status  string
	started time.Time
	inRun   bool
	spinIdx int
	done    chan struct{}
}

// New creates a Display reading from tap and writing to out.
func New(tap <-chan types.Message, out io.Writer) *Display {
	return &Display{tap: tap, out: out, done: make(chan struct{})}
}

// Done is closed when Run returns.
func (d *Display) Done() <-chan struct{} { return d.done }

// Run renders until ctx is cancelled or the tap closes. On cancellation it
// drains already-published messages first, so the box of a finished run is
// always closed.
func (d *Display) Run(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case msg, ok := <-d.tap:
					if !ok {
						return
					}
					d.handle(msg)
				default:
					fmt.Fprint(d.out, "\r\033[K")
					return
				}
			}

		case msg, ok := <-d.tap:
			if !ok {
				return
			}
			d.handle(msg)

		case <-ticker.C:
			if !d.inRun {
				continue
			}
			frame := spinRunes[d.spinIdx%len(spinRunes)]
			d.spinIdx++
			d.mu.Lock()
			status := d.status
			d.mu.Unlock()
			if status != "" {
				fmt.Fprintf(d.out, "\r%s %s", stageStyle.Render(string(frame)), status)
			}
		}
	}
}

func (d *Display) handle(msg types.Message) {
	fmt.Fprint(d.out, "\r\033[K")
	switch msg.Type {
	case types.MsgRunBegin:
		d.startRun(msg)
	case types.MsgStageBegin:
		if !d.inRun {
			d.startRun(msg)
		}
		if e, ok := payload[types.StageEvent](msg); ok {
			d.setStatus(beginStatus(e))
		}
	case types.MsgStageEnd:
		if e, ok := payload[types.StageEvent](msg); ok {
			fmt.Fprintln(d.out, stageLine(e))
		}
		d.setStatus("")
	case types.MsgIteration:
		if v, ok := payload[types.IterationVerdict](msg); ok {
			fmt.Fprintln(d.out, verdictLine(v))
		}
	case types.MsgRunEnd:
		e, _ := payload[types.RunEnd](msg)
		d.endRun(e)
	}
}

func (d *Display) startRun(msg types.Message) {
	d.started = time.Now()
	d.inRun = true
	title := "grantflow"
	if b, ok := payload[types.RunBegin](msg); ok && b.Namespace != "" {
		title += " · " + b.Namespace
	}
	fmt.Fprintln(d.out, dimStyle.Render("┌─── ⚡ "+title+" "+strings.Repeat("─", 40)))
}

func (d *Display) endRun(e types.RunEnd) {
	if !d.inRun {
		return
	}
	d.inRun = false
	d.setStatus("")
	elapsed := time.Since(d.started).Round(time.Millisecond)
	icon := "✅"
	if e.State == types.StateFailed {
		icon = "❌"
	}
	fmt.Fprintln(d.out, dimStyle.Render(fmt.Sprintf("└─── %s  %v %s", icon, elapsed, strings.Repeat("─", 35))))
}

func (d *Display) setStatus(s string) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
}

func beginStatus(e types.StageEvent) string {
	s := stageEmoji[e.Stage] + " " + stageStatus[e.Stage]
	if e.Iteration > 0 {
		s += fmt.Sprintf(" (iteration %d)", e.Iteration)
	}
	return s
}

// stageLine renders a finished stage:
// "  ✓ 🔎 ANALYSIS  claude-sonnet-4-5  1.2s  1500 tok".
func stageLine(e types.StageEvent) string {
	name := stageStyle.Render(e.Stage.Label())
	if e.Iteration > 0 {
		name += dimStyle.Render(fmt.Sprintf(" #%d", e.Iteration))
	}
	if !e.Success {
		detail := e.Code
		if e.Error != "" {
			detail += ": " + clip(e.Error, lineWidth)
		}
		return fmt.Sprintf("  %s %s %s  %s", failStyle.Render("✗"), stageEmoji[e.Stage], name, failStyle.Render(detail))
	}
	dur := (time.Duration(e.DurationMs) * time.Millisecond).Round(100 * time.Millisecond)
	return fmt.Sprintf("  %s %s %s  %s", okStyle.Render("✓"), stageEmoji[e.Stage], name,
		dimStyle.Render(fmt.Sprintf("%s  %v  %d tok", e.Model, dur, e.InputTokens+e.OutputTokens)))
}

// verdictLine renders a reviewer verdict: "    ◆ 71% (71/100) ready: no  gate: no".
func verdictLine(v types.IterationVerdict) string {
	gate := failStyle.Render("no")
	if v.GatePassed {
		gate = okStyle.Render("passed")
	}
	return fmt.Sprintf("    ◆ %s ready: %s  gate: %s",
		scoreStyle.Render(fmt.Sprintf("%d%% (%g/%g)", v.ScorePct, v.OverallScore, v.MaxScore)),
		yesNo(v.ReadyToSubmit), gate)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// clip truncates s to at most n display columns, appending "…" if trimmed.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if runewidth.StringWidth(s) <= n {
		return s
	}
	return runewidth.Truncate(s, n, "…")
}

// payload extracts a typed payload, accepting either the value itself or any
// JSON-compatible form of it.
func payload[T any](msg types.Message) (T, bool) {
	if v, ok := msg.Payload.(T); ok {
		return v, true
	}
	var v T
	b, err := json.Marshal(msg.Payload)
	if err != nil || json.Unmarshal(b, &v) != nil {
		return v, false
	}
	return v, true
}
