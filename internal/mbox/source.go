// Package mbox adapts a local mbox archive to the pipeline's mailbox
// interface, so batches can run offline against exported mail. Messages are
// addressed by their position in the archive; mark-read is a no-op.
package mbox

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	mboxlib "github.com/emersion/go-mbox"
)

type Source struct {
	path     string
	logger   *slog.Logger
	messages [][]byte
}

func NewSource(path string, logger *slog.Logger) *Source {
	return &Source{path: path, logger: logger}
}

// Connect reads the whole archive into memory. Archives this tool handles
// are bounded batches, not server-scale spools.
func (s *Source) Connect() error {
	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open mbox %s: %w", s.path, err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	for idx := 0; ; idx++ {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("failed to read mbox message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return fmt.Errorf("failed to read mbox message %d: %w", idx, err)
		}
		s.messages = append(s.messages, raw)
	}

	s.logger.Info("mbox archive opened", "path", s.path, "messages", len(s.messages))
	return nil
}

// SelectMailbox is accepted for interface parity; an mbox file is a single
// folder.
func (s *Source) SelectMailbox(name string) error {
	return nil
}

// Search returns every message position regardless of criteria: an mbox
// archive carries no server-side flags to filter on.
func (s *Source) Search(criteria string) ([]uint32, error) {
	ids := make([]uint32, len(s.messages))
	for i := range s.messages {
		ids[i] = uint32(i + 1)
	}
	return ids, nil
}

func (s *Source) Fetch(id uint32) ([]byte, error) {
	if id < 1 || int(id) > len(s.messages) {
		return nil, fmt.Errorf("no message %d in %s", id, s.path)
	}
	return s.messages[id-1], nil
}

// MarkRead is a no-op: the archive is read-only input.
func (s *Source) MarkRead(id uint32) error {
	return nil
}

func (s *Source) Disconnect() error {
	s.messages = nil
	return nil
}
