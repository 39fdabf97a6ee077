package profile

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/haricheung/grantflow/internal/types"
)

// LineReader is the part of *readline.Instance the wizard needs.
type LineReader interface {
	SetPrompt(prompt string)
	Readline() (string, error)
}

// NewTerminal opens a readline prompt on in/out. Pass nil for the process
// stdin and stdout.
func NewTerminal(in io.ReadCloser, out io.Writer) (*readline.Instance, error) {
	cfg := &readline.Config{Prompt: "> ", InterruptPrompt: "^C", EOFPrompt: "exit"}
	if in != nil {
		cfg.Stdin = in
	}
	if out != nil {
		cfg.Stdout = out
	}
	return readline.NewEx(cfg)
}

// Wizard asks for the essentials of an organization profile one line at a
// time. Everything else stays empty for the user to fill in by hand.
type Wizard struct {
	rl  LineReader
	out io.Writer
}

// NewWizard creates a Wizard reading from rl and printing hints to out.
func NewWizard(rl LineReader, out io.Writer) *Wizard {
	return &Wizard{rl: rl, out: out}
}

// Run asks the questions and returns the resulting profile.
//
// Expectations:
//   - Empty answers take the shown default
//   - The name is asked again until it is not empty
//   - Unknown organization types and non-numeric team sizes are asked again
//   - Comma-separated answers become trimmed lists without empty items
//   - Ctrl+C or EOF aborts with the reader's error
func (w *Wizard) Run() (types.OrganizationProfile, error) {
	var p types.OrganizationProfile
	var err error

	fmt.Fprintln(w.out, "Organization profile (press Enter to accept [defaults])")

	if p.Name, err = w.ask("Organization name", "", func(s string) error {
		if s == "" {
			return errors.New("a name is required")
		}
		return nil
	}); err != nil {
		return p, err
	}

	t, err := w.ask("Type (university, research_institute, company, ngo, other)", string(types.OrgCompany), func(s string) error {
		if !types.OrgType(s).Valid() {
			return fmt.Errorf("unknown type %q", s)
		}
		return nil
	})
	if err != nil {
		return p, err
	}
	p.Type = types.OrgType(t)

	if p.Country, err = w.ask("Country", "", nil); err != nil {
		return p, err
	}
	if p.Description, err = w.ask("One-paragraph description", "", nil); err != nil {
		return p, err
	}

	size, err := w.ask("Team size", "1", func(s string) error {
		if n, err := strconv.Atoi(s); err != nil || n < 0 {
			return fmt.Errorf("%q is not a team size", s)
		}
		return nil
	})
	if err != nil {
		return p, err
	}
	p.TeamInfo.TotalSize, _ = strconv.Atoi(size)

	lists := []struct {
		q   string
		dst *[]string
	}{
		{"Key competencies (comma-separated)", &p.TeamInfo.KeyCompetencies},
		{"Computing resources (comma-separated)", &p.Resources.Technical.ComputingResources},
		{"Funding sources (comma-separated)", &p.Resources.Financial.FundingSources},
		{"Selected publications (comma-separated)", &p.TrackRecord.Publications},
	}
	for _, l := range lists {
		ans, err := w.ask(l.q, "", nil)
		if err != nil {
			return p, err
		}
		*l.dst = SplitList(ans)
	}

	p.Normalize()
	return p, nil
}

// ask prompts until check accepts the answer.
func (w *Wizard) ask(question, def string, check func(string) error) (string, error) {
	prompt := question
	if def != "" {
		prompt += " [" + def + "]"
	}
	w.rl.SetPrompt(prompt + ": ")
	for {
		line, err := w.rl.Readline()
		if err != nil {
			return "", fmt.Errorf("profile: %s: %w", question, err)
		}
		ans := strings.TrimSpace(line)
		if ans == "" {
			ans = def
		}
		if check == nil {
			return ans, nil
		}
		if err := check(ans); err != nil {
			fmt.Fprintf(w.out, "  %v\n", err)
			continue
		}
		return ans, nil
	}
}

// SplitList splits a comma-separated answer, dropping empty items.
func SplitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
