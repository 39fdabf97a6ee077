package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned by reads of an artifact that was never written.
var ErrNotFound = errors.New("artifact: not found")

const metaKey = "_grantflow"

// Store reads and writes artifacts under one namespace directory.
type Store struct {
	dir string
	now func() time.Time
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithClock overrides the clock used for metadata timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// SafeName turns an arbitrary string into a single path segment: directory
// parts are dropped, unsafe runs collapse to "-", and an empty result becomes
// "untitled".
func SafeName(s string) string {
	s = path.Base(strings.ReplaceAll(strings.TrimSpace(s), "\\", "/"))
	s = unsafeName.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-.")
	if s == "" {
		return "untitled"
	}
	return s
}

// NewStore opens (creating if needed) the namespace directory under root.
func NewStore(root, namespace string, opts ...StoreOption) (*Store, error) {
	dir := filepath.Join(root, SafeName(namespace))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create namespace %s: %w", dir, err)
	}
	s := &Store{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir is the namespace directory.
func (s *Store) Dir() string { return s.dir }

// Path resolves ref inside the namespace.
func (s *Store) Path(ref Ref) string { return filepath.Join(s.dir, ref.File) }

// WriteJSON encodes v as indented JSON with meta embedded under "_grantflow".
// v must encode to a JSON object.
func (s *Store) WriteJSON(ref Ref, v any, meta Metadata) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("artifact: encode %s: %w", ref.ID, err)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("artifact: %s is not a JSON object: %w", ref.ID, err)
	}
	payload[metaKey] = meta.withDefaults(ref, s.now())
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: encode %s: %w", ref.ID, err)
	}
	return s.write(s.Path(ref), append(encoded, '\n'))
}

// ReadJSON decodes the artifact into v; the metadata block is ignored.
func (s *Store) ReadJSON(ref Ref, v any) error {
	data, err := s.read(ref)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("artifact: decode %s: %w", ref.ID, err)
	}
	return nil
}

// WriteDocument writes body as markdown with meta as YAML frontmatter.
func (s *Store) WriteDocument(ref Ref, body string, meta Metadata) error {
	content, err := WriteFrontMatter(meta.withDefaults(ref, s.now()), []byte(body))
	if err != nil {
		return err
	}
	return s.write(s.Path(ref), content)
}

// ReadDocument returns the frontmatter and body of a document artifact.
func (s *Store) ReadDocument(ref Ref) (Metadata, string, error) {
	data, err := s.read(ref)
	if err != nil {
		return Metadata{}, "", err
	}
	meta, body, err := ParseFrontMatter(data)
	if err != nil {
		return Metadata{}, "", err
	}
	return meta, string(body), nil
}

// WriteText writes body verbatim.
func (s *Store) WriteText(ref Ref, body string) error {
	return s.write(s.Path(ref), []byte(body))
}

// ReadText returns the artifact contents verbatim.
func (s *Store) ReadText(ref Ref) (string, error) {
	data, err := s.read(ref)
	return string(data), err
}

// WritePackageFile writes one generated submission document into PackageDir
// and returns its path. name is reduced to a safe single segment.
func (s *Store) WritePackageFile(name, body string) (string, error) {
	dst := filepath.Join(s.dir, PackageDir, SafeName(name))
	return dst, s.write(dst, []byte(body))
}

// Check inspects ref on disk.
//
// Expectations:
//   - Missing file → StateMissing with a nil error
//   - JSON or document whose metadata names a different artifact → StateInvalid
//   - Text artifacts are ready whenever the file exists
func (s *Store) Check(ref Ref) (CheckResult, error) {
	res := CheckResult{Ref: ref, Path: s.Path(ref)}
	data, err := os.ReadFile(res.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			res.State = StateMissing
			return res, nil
		}
		res.State, res.Err = StateError, err
		return res, err
	}
	var meta Metadata
	switch ref.Kind {
	case KindText:
		res.State = StateReady
		return res, nil
	case KindJSON:
		var payload struct {
			Meta *Metadata `json:"_grantflow"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return invalid(res, fmt.Errorf("artifact: parse %s: %w", ref.ID, err))
		}
		if payload.Meta == nil {
			return invalid(res, fmt.Errorf("artifact: %s has no %s block", ref.ID, metaKey))
		}
		meta = *payload.Meta
	default:
		m, _, err := ParseFrontMatter(data)
		if err != nil {
			return invalid(res, err)
		}
		meta = m
	}
	if meta.ArtifactID != ref.ID {
		return invalid(res, fmt.Errorf("artifact: metadata id %s does not match %s", meta.ArtifactID, ref.ID))
	}
	res.State, res.Metadata = StateReady, &meta
	return res, nil
}

func invalid(res CheckResult, err error) (CheckResult, error) {
	res.State, res.Err = StateInvalid, err
	return res, err
}

func (s *Store) read(ref Ref) ([]byte, error) {
	data, err := os.ReadFile(s.Path(ref))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref.ID)
	}
	return data, err
}

// write replaces dst atomically via a sibling temp file.
func (s *Store) write(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
