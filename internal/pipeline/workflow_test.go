package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebiseau/mail-sorter/internal/attachment"
	"github.com/ebiseau/mail-sorter/internal/classify"
	"github.com/ebiseau/mail-sorter/internal/db"
	"github.com/ebiseau/mail-sorter/internal/mbox"
	"github.com/ebiseau/mail-sorter/internal/report"
)

const archive = `From billing@vendor.example Wed Jul  8 14:00:00 2026
From: billing@vendor.example
Subject: Invoice for July
Date: Wed, 08 Jul 2026 14:00:00 +0000
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="MixedBoundary42"

--MixedBoundary42
Content-Type: text/plain; charset=utf-8

Please find the invoice attached.

--MixedBoundary42
Content-Type: application/pdf; name="invoice.pdf"
Content-Disposition: attachment; filename="invoice.pdf"
Content-Transfer-Encoding: base64

JVBERi0xLjQKJSBmYWtlIHBkZiBjb250ZW50IGZvciB0ZXN0aW5nCg==

--MixedBoundary42--

From ceo@mycompany.com Thu Jul  9 09:00:00 2026
From: ceo@mycompany.com
Subject: All hands
Date: Thu, 09 Jul 2026 09:00:00 +0000
Content-Type: text/plain; charset=utf-8

Company update inside.

From friend@elsewhere.example Fri Jul 10 18:00:00 2026
From: friend@elsewhere.example
Subject: Lunch?
Date: Fri, 10 Jul 2026 18:00:00 +0000
Content-Type: text/plain; charset=utf-8

Free at noon?
`

// TestWorkflow_MboxToReports runs the whole chain against a real archive
// and a real database: fetch, parse, classify, extract, persist, report.
func TestWorkflow_MboxToReports(t *testing.T) {
	dir := t.TempDir()
	mboxPath := filepath.Join(dir, "export.mbox")
	require.NoError(t, os.WriteFile(mboxPath, []byte(archive), 0o644))

	database := db.SetupTestDB(t)
	defer db.CleanupTestDB(t, database)

	attachmentDir := filepath.Join(dir, "attachments")
	reportDir := filepath.Join(dir, "reports")

	aggregator := report.NewAggregator(testLogger)
	p := New(
		mbox.NewSource(mboxPath, testLogger),
		database,
		classify.New("en", "@mycompany.com"),
		attachment.NewExtractor(attachmentDir, testLogger),
		aggregator,
		Options{ReportDir: reportDir},
		testLogger,
	)

	require.NoError(t, p.Run(context.Background()))

	// Every archived message got exactly one record.
	total, err := database.TotalCount()
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	errCount, err := database.ErrorCount()
	require.NoError(t, err)
	assert.Equal(t, 0, errCount)

	finance, err := database.EmailsByCategory("Finance")
	require.NoError(t, err)
	require.Len(t, finance, 1)
	assert.Equal(t, "Invoice for July", finance[0].Subject)
	assert.True(t, finance[0].HasAttachments)

	internal, err := database.EmailsByCategory("Internal")
	require.NoError(t, err)
	require.Len(t, internal, 1)
	assert.Equal(t, "All hands", internal[0].Subject)

	general, err := database.EmailsByCategory("General")
	require.NoError(t, err)
	assert.Len(t, general, 1)

	// The attachment landed on disk under its category and in the database.
	savedPath := filepath.Join(attachmentDir, "Finance", "invoice.pdf")
	data, err := os.ReadFile(savedPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "%PDF-1.4")

	attachments, err := database.AttachmentsByEmailID(finance[0].ID)
	require.NoError(t, err)
	require.Len(t, attachments, 1)
	assert.Equal(t, "invoice.pdf", attachments[0].Filename)
	assert.Equal(t, savedPath, attachments[0].FilePath)

	// All three report views were written.
	entries, err := os.ReadDir(reportDir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	stats, err := database.Statistics()
	require.NoError(t, err)
	assert.Len(t, stats, 3)
}
