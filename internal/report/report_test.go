package report

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebiseau/mail-sorter/internal/classify"
	"github.com/ebiseau/mail-sorter/internal/parser"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestAggregator() *Aggregator {
	a := NewAggregator(testLogger)
	// Pin the clock so filenames and timestamps are reproducible.
	a.now = func() time.Time {
		return time.Date(2026, time.July, 6, 10, 0, 0, 0, time.UTC)
	}
	return a
}

func record(a *Aggregator, subject string, category classify.Category) {
	a.Record(&parser.Message{
		Sender:  "sender@example.com",
		Subject: subject,
		Date:    "Mon, 06 Jul 2026 10:30:00 +0200",
	}, category, false, "")
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

// TestAggregator_Counters tests that every outcome lands in exactly one
// bucket: its category or the error counter
func TestAggregator_Counters(t *testing.T) {
	a := newTestAggregator()

	record(a, "invoice", "Finance")
	record(a, "invoice 2", "Finance")
	record(a, "flight", "Travel")
	a.Record(&parser.Message{}, classify.CategoryError, false, "fetch failed")

	assert.Equal(t, 4, a.Total())
	assert.Equal(t, 1, a.ErrorCount())

	sum := 0
	for _, n := range a.CategoryCounts() {
		sum += n
	}
	assert.Equal(t, a.Total(), sum+a.ErrorCount(),
		"Category counts plus errors must account for every outcome")
}

// TestAggregator_AttachmentCount tests the attachment counter on the
// success path only
func TestAggregator_AttachmentCount(t *testing.T) {
	a := newTestAggregator()

	a.Record(&parser.Message{Subject: "a", AttachmentNames: []string{"x.pdf"}}, "Finance", true, "")
	a.Record(&parser.Message{Subject: "b", AttachmentNames: []string{"y.pdf"}}, classify.CategoryError, true, "boom")

	assert.Equal(t, 1, a.AttachmentCount(),
		"Failed outcomes must not count toward attachments")
}

// TestAggregator_Reset tests that Reset clears all accumulated state
func TestAggregator_Reset(t *testing.T) {
	a := newTestAggregator()
	record(a, "x", "Finance")
	a.Record(&parser.Message{}, classify.CategoryError, false, "boom")

	a.Reset()

	assert.Equal(t, 0, a.Total())
	assert.Equal(t, 0, a.ErrorCount())
	assert.Empty(t, a.CategoryCounts())
}

// TestWriteReports_EmptyRun tests that zero outcomes produce no artifacts
func TestWriteReports_EmptyRun(t *testing.T) {
	a := newTestAggregator()
	dir := t.TempDir()

	paths, err := a.WriteReports(dir)

	require.NoError(t, err)
	assert.Nil(t, paths)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "No report file should be created for an empty run")
}

// TestWriteReports_Filenames tests the ISO week naming of the three views
func TestWriteReports_Filenames(t *testing.T) {
	a := newTestAggregator()
	record(a, "invoice", "Finance")
	dir := t.TempDir()

	paths, err := a.WriteReports(dir)

	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "email_report_2026-W28.csv"), paths[0])
	assert.Equal(t, filepath.Join(dir, "summary_report_2026-W28.csv"), paths[1])
	assert.Equal(t, filepath.Join(dir, "repartition_report_2026-W28.csv"), paths[2])
}

// TestWriteReports_Detail tests the detail view: one row per outcome in
// insertion order, errors included
func TestWriteReports_Detail(t *testing.T) {
	a := newTestAggregator()
	record(a, "invoice", "Finance")
	a.Record(&parser.Message{Subject: "broken"}, classify.CategoryError, false, "parse failed")
	dir := t.TempDir()

	paths, err := a.WriteReports(dir)
	require.NoError(t, err)

	rows := readCSV(t, paths[0])
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"timestamp", "sender", "subject", "date", "category",
		"has_attachments", "attachment_count", "error"}, rows[0])
	assert.Equal(t, "invoice", rows[1][2])
	assert.Equal(t, "Finance", rows[1][4])
	assert.Equal(t, "", rows[1][7])
	assert.Equal(t, "broken", rows[2][2])
	assert.Equal(t, "Error", rows[2][4])
	assert.Equal(t, "parse failed", rows[2][7])
}

// TestWriteReports_Summary tests ordering, percentages and the TOTAL row
func TestWriteReports_Summary(t *testing.T) {
	a := newTestAggregator()
	record(a, "invoice 1", "Finance")
	record(a, "invoice 2", "Finance")
	record(a, "flight", "Travel")
	record(a, "hello", classify.CategoryGeneral)
	dir := t.TempDir()

	paths, err := a.WriteReports(dir)
	require.NoError(t, err)

	rows := readCSV(t, paths[1])
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"category", "count", "percentage"}, rows[0])
	assert.Equal(t, []string{"Finance", "2", "50.00%"}, rows[1])
	// Equal counts fall back to category name ascending.
	assert.Equal(t, []string{"General", "1", "25.00%"}, rows[2])
	assert.Equal(t, []string{"Travel", "1", "25.00%"}, rows[3])
	assert.Equal(t, []string{"TOTAL", "4", "100.00%"}, rows[4])
}

// TestWriteReports_SummaryWithErrors tests that category percentages are
// computed over successes while the ERRORS row is computed over all
func TestWriteReports_SummaryWithErrors(t *testing.T) {
	a := newTestAggregator()
	record(a, "invoice", "Finance")
	a.Record(&parser.Message{}, classify.CategoryError, false, "boom")
	a.Record(&parser.Message{}, classify.CategoryError, false, "boom again")
	dir := t.TempDir()

	paths, err := a.WriteReports(dir)
	require.NoError(t, err)

	rows := readCSV(t, paths[1])
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Finance", "1", "100.00%"}, rows[1],
		"Category percentage is over successful outcomes")
	assert.Equal(t, []string{"ERRORS", "2", "66.67%"}, rows[2],
		"Error percentage is over all outcomes")
	assert.Equal(t, []string{"TOTAL", "3", "100.00%"}, rows[3])
}

// TestWriteReports_Repartition tests the category-sorted view
func TestWriteReports_Repartition(t *testing.T) {
	a := newTestAggregator()
	record(a, "zebra", "Travel")
	record(a, "apple", "Finance")
	record(a, "banana", "Finance")
	dir := t.TempDir()

	paths, err := a.WriteReports(dir)
	require.NoError(t, err)

	rows := readCSV(t, paths[2])
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"category", "sender", "subject", "date", "has_attachments"}, rows[0])
	assert.Equal(t, "Finance", rows[1][0])
	assert.Equal(t, "apple", rows[1][2])
	assert.Equal(t, "banana", rows[2][2])
	assert.Equal(t, "Travel", rows[3][0])
}
