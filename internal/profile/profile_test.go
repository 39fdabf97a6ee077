package profile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/chzyer/readline"

	"github.com/haricheung/grantflow/internal/types"
)

const jsonProfile = `{
  "name": "Acme Research",
  "type": "company",
  "country": "UA",
  "description": "Applied ML for energy grids",
  "teamInfo": {"totalSize": 12, "keyCompetencies": ["ml", "hpc"],
    "coreTeam": [{"name": "Olena", "role": "PI", "expertise": ["forecasting"]}]},
  "trackRecord": {"publications": ["Grid forecasting, 2024"]}
}`

const yamlProfile = `
name: Acme Research
type: company
country: UA
description: Applied ML for energy grids
teamInfo:
  totalSize: 12
  keyCompetencies: [ml, hpc]
  coreTeam:
    - name: Olena
      role: PI
      expertise: [forecasting]
trackRecord:
  publications: ["Grid forecasting, 2024"]
`

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_YAMLEqualsJSON(t *testing.T) {
	// The same profile in YAML and JSON decodes to equal values
	fromJSON, err := Load(write(t, "org.json", jsonProfile))
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	fromYAML, err := Load(write(t, "org.yaml", yamlProfile))
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if !reflect.DeepEqual(fromJSON, fromYAML) {
		t.Errorf("profiles differ:\njson %+v\nyaml %+v", fromJSON, fromYAML)
	}
	if fromJSON.TeamInfo.TotalSize != 12 || fromJSON.TeamInfo.CoreTeam[0].Role != "PI" {
		t.Errorf("got %+v", fromJSON.TeamInfo)
	}
}

func TestLoad_NormalizesLists(t *testing.T) {
	// Absent lists come back empty, not nil
	p, err := Load(write(t, "org.json", `{"name": "X"}`))
	if err != nil {
		t.Fatal(err)
	}
	if p.Partnerships == nil || p.TrackRecord.Awards == nil || p.TeamInfo.Advisors == nil {
		t.Errorf("nil lists in %+v", p)
	}
}

func TestLoad_RequiresName(t *testing.T) {
	// A profile without a name fails with ErrNoName
	if _, err := Load(write(t, "org.yml", "country: UA\n")); !errors.Is(err, ErrNoName) {
		t.Errorf("expected ErrNoName, got %v", err)
	}
}

func TestSave_RoundTripsBothFormats(t *testing.T) {
	// Save then Load returns the same profile for .json and .yaml
	orig, err := Load(write(t, "org.json", jsonProfile))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	for _, name := range []string{"out/org.json", "out/org.yaml"} {
		path := filepath.Join(dir, name)
		if err := Save(path, orig); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
		got, err := Load(path)
		if err != nil {
			t.Fatalf("Load %s: %v", name, err)
		}
		if !reflect.DeepEqual(orig, got) {
			t.Errorf("%s: round trip changed the profile", name)
		}
	}
}

// scripted replays fixed answers.
type scripted struct {
	answers []string
	prompts []string
}

func (s *scripted) SetPrompt(p string) { s.prompts = append(s.prompts, p) }

func (s *scripted) Readline() (string, error) {
	if len(s.answers) == 0 {
		return "", io.EOF
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func TestWizard_DefaultsAndRetries(t *testing.T) {
	// Empty name and bad type are asked again; blanks take defaults; lists are split
	rl := &scripted{answers: []string{
		"", "Acme Research", // name
		"startup", "", // type: rejected, then default
		"UA", "Energy ML",
		"many", "7", // team size
		"ml, , hpc", "", "Horizon Europe", "",
	}}
	var out strings.Builder
	p, err := NewWizard(rl, &out).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.Name != "Acme Research" || p.Type != types.OrgCompany || p.TeamInfo.TotalSize != 7 {
		t.Errorf("got %+v", p)
	}
	if !reflect.DeepEqual(p.TeamInfo.KeyCompetencies, []string{"ml", "hpc"}) {
		t.Errorf("competencies = %q", p.TeamInfo.KeyCompetencies)
	}
	if len(p.Resources.Technical.ComputingResources) != 0 || p.Resources.Technical.ComputingResources == nil {
		t.Errorf("computing = %#v", p.Resources.Technical.ComputingResources)
	}
	for _, want := range []string{"a name is required", `unknown type "startup"`, `"many" is not a team size`} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("missing hint %q in %q", want, out.String())
		}
	}
	if !strings.HasSuffix(rl.prompts[1], "[company]: ") {
		t.Errorf("type prompt = %q", rl.prompts[1])
	}
}

func TestWizard_EOFAborts(t *testing.T) {
	// Running out of input aborts with the reader's error
	_, err := NewWizard(&scripted{answers: []string{"Acme"}}, io.Discard).Run()
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestNewTerminal_ReadsPipedLines(t *testing.T) {
	// A readline instance over a pipe drives the wizard like a terminal would
	pr, pw := io.Pipe()
	go func() {
		io.WriteString(pw, "Acme\nngo\nPL\nd\n3\na,b\n\n\n\n")
		pw.Close()
	}()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:             "> ",
		Stdin:              pr,
		Stdout:             io.Discard,
		Stderr:             io.Discard,
		FuncIsTerminal:     func() bool { return false },
		FuncGetWidth:       func() int { return 80 },
		FuncMakeRaw:        func() error { return nil },
		FuncExitRaw:        func() error { return nil },
		FuncOnWidthChanged: func(func()) {},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer rl.Close()

	p, err := NewWizard(rl, io.Discard).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.Name != "Acme" || p.Type != types.OrgNGO || p.TeamInfo.TotalSize != 3 || len(p.TeamInfo.KeyCompetencies) != 2 {
		t.Errorf("got %+v", p)
	}
}
