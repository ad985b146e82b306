package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// WriteReports renders the three report views into dir, one CSV each,
// filenames keyed by the ISO year-week. With zero outcomes no artifact is
// produced at all. It returns the paths of the files written.
func (a *Aggregator) WriteReports(dir string) ([]string, error) {
	if len(a.outcomes) == 0 {
		a.logger.Warn("no emails processed, skipping report generation")
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	year, week := a.now().ISOWeek()
	weekStr := fmt.Sprintf("%d-W%02d", year, week)

	var paths []string
	for _, r := range []struct {
		name  string
		write func(*csv.Writer) error
	}{
		{fmt.Sprintf("email_report_%s.csv", weekStr), a.writeDetail},
		{fmt.Sprintf("summary_report_%s.csv", weekStr), a.writeSummary},
		{fmt.Sprintf("repartition_report_%s.csv", weekStr), a.writeRepartition},
	} {
		path := filepath.Join(dir, r.name)
		if err := writeCSV(path, r.write); err != nil {
			return paths, err
		}
		a.logger.Info("report generated", "path", path)
		paths = append(paths, path)
	}

	return paths, nil
}

func writeCSV(path string, write func(*csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := write(w); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush report %s: %w", path, err)
	}
	return nil
}

// writeDetail emits one row per outcome in insertion order.
func (a *Aggregator) writeDetail(w *csv.Writer) error {
	if err := w.Write([]string{"timestamp", "sender", "subject", "date", "category", "has_attachments", "attachment_count", "error"}); err != nil {
		return err
	}
	for _, o := range a.outcomes {
		err := w.Write([]string{
			o.Timestamp, o.Sender, o.Subject, o.Date, string(o.Category),
			strconv.FormatBool(o.HasAttachments), strconv.Itoa(o.AttachmentCount), o.Err,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// writeSummary emits one row per category sorted by descending count, then
// an ERRORS row (when any) and a TOTAL row. Category percentages are
// computed over the successful outcomes; the ERRORS percentage over all.
func (a *Aggregator) writeSummary(w *csv.Writer) error {
	if err := w.Write([]string{"category", "count", "percentage"}); err != nil {
		return err
	}

	type catCount struct {
		category string
		count    int
	}
	counts := make([]catCount, 0, len(a.categoryCounts))
	for c, n := range a.categoryCounts {
		counts = append(counts, catCount{string(c), n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].category < counts[j].category
	})

	total := len(a.outcomes)
	succeeded := total - a.errorCount
	if succeeded > 0 {
		for _, cc := range counts {
			pct := float64(cc.count) / float64(succeeded) * 100
			if err := w.Write([]string{cc.category, strconv.Itoa(cc.count), fmt.Sprintf("%.2f%%", pct)}); err != nil {
				return err
			}
		}
	}

	if a.errorCount > 0 {
		pct := float64(a.errorCount) / float64(total) * 100
		if err := w.Write([]string{"ERRORS", strconv.Itoa(a.errorCount), fmt.Sprintf("%.2f%%", pct)}); err != nil {
			return err
		}
	}

	return w.Write([]string{"TOTAL", strconv.Itoa(total), "100.00%"})
}

// writeRepartition emits one row per outcome sorted by category, date and
// subject ascending, so the view is deterministic whatever the processing
// order was.
func (a *Aggregator) writeRepartition(w *csv.Writer) error {
	if err := w.Write([]string{"category", "sender", "subject", "date", "has_attachments"}); err != nil {
		return err
	}

	sorted := make([]Outcome, len(a.outcomes))
	copy(sorted, a.outcomes)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Category != sorted[j].Category {
			return sorted[i].Category < sorted[j].Category
		}
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].Subject < sorted[j].Subject
	})

	for _, o := range sorted {
		err := w.Write([]string{
			string(o.Category), o.Sender, o.Subject, o.Date,
			strconv.FormatBool(o.HasAttachments),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
