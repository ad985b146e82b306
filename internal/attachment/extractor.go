package attachment

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-message/mail"
)

// Payload is one attachment lifted out of a raw message: the decoded
// filename and the decoded content bytes.
type Payload struct {
	Filename string
	Data     []byte
}

// Extractor materializes attachment payloads under a category-namespaced
// directory tree: {base}/{category}/{sanitized filename}.
type Extractor struct {
	basePath string
	logger   *slog.Logger
}

func NewExtractor(basePath string, logger *slog.Logger) *Extractor {
	return &Extractor{basePath: basePath, logger: logger}
}

// Extract re-walks the raw message bytes and returns every attachment part
// that carries a filename. It deliberately re-derives the attachment list
// instead of reusing the normalized record, which discards payload bytes.
func Extract(raw []byte) ([]Payload, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	var payloads []Payload
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return payloads, fmt.Errorf("failed to read part: %w", err)
		}

		h, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		filename, _ := h.Filename()
		if filename == "" {
			continue
		}

		data, err := io.ReadAll(part.Body)
		if err != nil {
			return payloads, fmt.Errorf("failed to read attachment %s: %w", filename, err)
		}
		payloads = append(payloads, Payload{Filename: filename, Data: data})
	}

	return payloads, nil
}

// Save writes the payloads under {base}/{category}/ and returns the paths of
// the files actually written. A failure saving one payload is logged and
// skipped; it never aborts the remaining payloads.
func (e *Extractor) Save(payloads []Payload, category string) []string {
	if len(payloads) == 0 {
		return nil
	}

	dir := filepath.Join(e.basePath, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		e.logger.Error("failed to create attachment directory", "dir", dir, "err", err)
		return nil
	}

	var saved []string
	for _, p := range payloads {
		path, err := e.saveOne(dir, p)
		if err != nil {
			e.logger.Error("failed to save attachment", "filename", p.Filename, "err", err)
			continue
		}
		saved = append(saved, path)
		e.logger.Info("saved attachment", "filename", filepath.Base(path), "category", category)
	}
	return saved
}

func (e *Extractor) saveOne(dir string, p Payload) (string, error) {
	path := collisionFreePath(dir, SanitizeFilename(p.Filename))
	if err := os.WriteFile(path, p.Data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// collisionFreePath appends _1, _2, ... before the extension until the name
// is free. First fit wins; existing files are never overwritten.
func collisionFreePath(dir, filename string) string {
	path := filepath.Join(dir, filename)
	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filename, ext)

	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", name, counter, ext))
	}
}

// SanitizeFilename replaces characters that are illegal in filesystem paths
// and truncates over-long names while keeping the extension.
func SanitizeFilename(filename string) string {
	sanitized := filename
	for _, c := range `<>:"/\|?*` {
		sanitized = strings.ReplaceAll(sanitized, string(c), "_")
	}

	if len(sanitized) > 200 {
		ext := filepath.Ext(sanitized)
		name := []rune(strings.TrimSuffix(sanitized, ext))
		if len(name) > 200 {
			name = name[:200]
		}
		sanitized = string(name) + ext
	}
	return sanitized
}
