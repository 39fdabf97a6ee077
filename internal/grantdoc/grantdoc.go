// Package grantdoc loads a grant call from a local file or an http(s) URL
// and reduces it to the plain text the analysis stage reads.
package grantdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrEmpty is returned when a source yields no text.
var ErrEmpty = errors.New("grantdoc: document has no text")

// maxBody bounds how much of a remote document is read.
const maxBody = 8 << 20

// blocks end a line when HTML is flattened to text.
const blocks = "p, div, section, article, li, tr, h1, h2, h3, h4, h5, h6, br, pre, blockquote, dt, dd, table, ul, ol"

var spaces = regexp.MustCompile(`[ \t\x{00a0}]+`)

// Document is a loaded grant call.
type Document struct {
	Source string
	Title  string
	Text   string
}

// Loader reads grant calls.
type Loader struct {
	client *http.Client
	logger *slog.Logger
}

// NewLoader wires an HTTP client; a nil client gets a 30s timeout.
func NewLoader(client *http.Client, logger *slog.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{client: client, logger: logger}
}

// IsURL reports whether src is fetched over http(s).
func IsURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// Load reads src. HTML (by extension, content type or sniffing) is
// flattened to text; .txt and .md are taken verbatim.
//
// Expectations:
//   - Script, style and navigation content never reaches the text
//   - Block elements end lines; runs of blank lines collapse to one
//   - Non-200 responses and empty documents are errors
func (l *Loader) Load(ctx context.Context, src string) (Document, error) {
	var (
		data   []byte
		isHTML bool
		err    error
	)
	if IsURL(src) {
		data, isHTML, err = l.fetch(ctx, src)
	} else {
		data, err = os.ReadFile(src)
		ext := strings.ToLower(filepath.Ext(src))
		isHTML = ext == ".html" || ext == ".htm"
	}
	if err != nil {
		return Document{}, fmt.Errorf("grantdoc: load %s: %w", src, err)
	}
	if !isHTML && !IsURL(src) && looksHTML(data) && filepath.Ext(src) == "" {
		isHTML = true
	}

	doc := Document{Source: src}
	if isHTML {
		doc.Title, doc.Text, err = FromHTML(bytes.NewReader(data))
		if err != nil {
			return Document{}, fmt.Errorf("grantdoc: parse %s: %w", src, err)
		}
	} else {
		doc.Text = tidy(string(data))
	}
	if doc.Text == "" {
		return Document{}, fmt.Errorf("%w: %s", ErrEmpty, src)
	}
	l.logger.Info("[GRANTDOC] loaded grant call", "source", src, "html", isHTML, "chars", len(doc.Text), "title", doc.Title)
	return doc, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "grantflow/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("server returned %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, false, fmt.Errorf("read body: %w", err)
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	return data, strings.Contains(ct, "html") || (ct == "" && looksHTML(data)), nil
}

func looksHTML(data []byte) bool {
	head := strings.ToLower(string(data[:min(len(data), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

// FromHTML returns the page title and the readable text of an HTML document.
func FromHTML(r io.Reader) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", err
	}
	doc.Find("script, style, noscript, nav, footer, header, svg, form").Remove()

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	doc.Find("head").Remove()

	doc.Find(blocks).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	doc.Find("td, th").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	// Inter-element whitespace would otherwise leave blank lines everywhere.
	return title, strings.ReplaceAll(tidy(doc.Text()), "\n\n", "\n"), nil
}

// tidy trims every line, collapses horizontal whitespace and keeps at most
// one blank line between paragraphs.
func tidy(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var b strings.Builder
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(spaces.ReplaceAllString(line, " "))
		if line == "" {
			blank = b.Len() > 0
			continue
		}
		if blank {
			b.WriteString("\n")
			blank = false
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(line)
	}
	return b.String()
}
