package report

import (
	"log/slog"
	"time"

	"github.com/ebiseau/mail-sorter/internal/classify"
	"github.com/ebiseau/mail-sorter/internal/parser"
)

// Outcome is one per-item snapshot recorded during a batch.
type Outcome struct {
	Timestamp       string
	Sender          string
	Subject         string
	Date            string
	Category        classify.Category
	HasAttachments  bool
	AttachmentCount int
	Err             string
}

// Aggregator accumulates per-item outcomes for the lifetime of one run.
// It has a single writer (the pipeline) and is reset only explicitly.
type Aggregator struct {
	outcomes        []Outcome
	categoryCounts  map[classify.Category]int
	errorCount      int
	attachmentCount int
	logger          *slog.Logger
	now             func() time.Time
}

func NewAggregator(logger *slog.Logger) *Aggregator {
	return &Aggregator{
		categoryCounts: make(map[classify.Category]int),
		logger:         logger,
		now:            time.Now,
	}
}

// Record appends one outcome and updates the running counters. An outcome
// with a non-empty error increments only the error counter but still joins
// the outcome list so the detail and repartition views include it.
func (a *Aggregator) Record(msg *parser.Message, category classify.Category, hasAttachments bool, errText string) {
	a.outcomes = append(a.outcomes, Outcome{
		Timestamp:       a.now().Format(time.RFC3339),
		Sender:          msg.Sender,
		Subject:         msg.Subject,
		Date:            msg.Date,
		Category:        category,
		HasAttachments:  hasAttachments,
		AttachmentCount: len(msg.AttachmentNames),
		Err:             errText,
	})

	if errText != "" {
		a.errorCount++
		return
	}
	a.categoryCounts[category]++
	if hasAttachments {
		a.attachmentCount++
	}
}

// Reset clears all accumulated state for a new reporting period.
func (a *Aggregator) Reset() {
	a.outcomes = nil
	a.categoryCounts = make(map[classify.Category]int)
	a.errorCount = 0
	a.attachmentCount = 0
}

// Total returns the number of recorded outcomes, errors included.
func (a *Aggregator) Total() int { return len(a.outcomes) }

// ErrorCount returns the number of outcomes recorded on the failure path.
func (a *Aggregator) ErrorCount() int { return a.errorCount }

// AttachmentCount returns the number of successful outcomes that carried
// attachments.
func (a *Aggregator) AttachmentCount() int { return a.attachmentCount }

// CategoryCounts returns a copy of the per-category counters.
func (a *Aggregator) CategoryCounts() map[classify.Category]int {
	counts := make(map[classify.Category]int, len(a.categoryCounts))
	for c, n := range a.categoryCounts {
		counts[c] = n
	}
	return counts
}
