package artifact

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontMatter means the document does not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("artifact: missing frontmatter")
	// ErrMalformedFrontMatter means the YAML block is unterminated or incomplete.
	ErrMalformedFrontMatter = errors.New("artifact: malformed frontmatter")
)

type envelope struct {
	Grantflow Metadata `yaml:"grantflow"`
}

// ParseFrontMatter splits a document into its metadata and body.
func ParseFrontMatter(content []byte) (Metadata, []byte, error) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return Metadata{}, nil, ErrMissingFrontMatter
	}
	parts := bytes.SplitN(content[4:], []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return Metadata{}, nil, ErrMalformedFrontMatter
	}
	var env envelope
	if err := yaml.Unmarshal(parts[0], &env); err != nil {
		return Metadata{}, nil, fmt.Errorf("artifact: parse frontmatter: %w", err)
	}
	if env.Grantflow.ArtifactID == "" {
		return Metadata{}, nil, ErrMalformedFrontMatter
	}
	return env.Grantflow, bytes.TrimPrefix(parts[1], []byte("\n")), nil
}

// WriteFrontMatter renders meta as a YAML fence followed by body.
func WriteFrontMatter(meta Metadata, body []byte) ([]byte, error) {
	if meta.ArtifactID == "" {
		return nil, fmt.Errorf("artifact: metadata missing artifact id")
	}
	data, err := yaml.Marshal(envelope{Grantflow: meta})
	if err != nil {
		return nil, fmt.Errorf("artifact: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(data, "\n"))
	buf.WriteString("\n---\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}
