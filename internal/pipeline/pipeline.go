// Package pipeline drives one batch: search the mailbox, then fetch, parse,
// classify and persist each message, isolating per-item failure so one
// malformed or unreachable message never aborts the rest of the batch.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ebiseau/mail-sorter/internal/attachment"
	"github.com/ebiseau/mail-sorter/internal/classify"
	"github.com/ebiseau/mail-sorter/internal/db"
	"github.com/ebiseau/mail-sorter/internal/parser"
	"github.com/ebiseau/mail-sorter/internal/report"
)

// Mailbox is the transport collaborator. The IMAP client and the mbox
// archive source both implement it.
type Mailbox interface {
	Connect() error
	SelectMailbox(name string) error
	Search(criteria string) ([]uint32, error)
	Fetch(id uint32) ([]byte, error)
	MarkRead(id uint32) error
	Disconnect() error
}

// Store is the persistence collaborator.
type Store interface {
	InsertEmail(rec *db.EmailRecord) (int64, error)
	InsertAttachment(emailID int64, filename, filePath, category string) error
}

// Options configures one batch run.
type Options struct {
	Mailbox   string
	Criteria  string
	Limit     int
	ReportDir string
}

type Pipeline struct {
	mailbox    Mailbox
	store      Store
	classifier *classify.Classifier
	extractor  *attachment.Extractor
	aggregator *report.Aggregator
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

func New(mb Mailbox, store Store, classifier *classify.Classifier, extractor *attachment.Extractor, aggregator *report.Aggregator, opts Options, logger *slog.Logger) *Pipeline {
	if opts.Mailbox == "" {
		opts.Mailbox = "INBOX"
	}
	if opts.Criteria == "" {
		opts.Criteria = "UNSEEN"
	}
	return &Pipeline{
		mailbox:    mb,
		store:      store,
		classifier: classifier,
		extractor:  extractor,
		aggregator: aggregator,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one batch and then writes the report artifacts. A
// batch-level failure (connect, select, search) aborts processing but the
// accumulated stats are still reported, so partial progress is never lost.
func (p *Pipeline) Run(ctx context.Context) error {
	batchErr := p.runBatch(ctx)
	if batchErr != nil {
		p.logger.Error("batch aborted", "err", batchErr)
	}

	if _, err := p.aggregator.WriteReports(p.opts.ReportDir); err != nil {
		p.logger.Error("failed to generate reports", "err", err)
		if batchErr == nil {
			return err
		}
	}

	return batchErr
}

func (p *Pipeline) runBatch(ctx context.Context) error {
	if err := p.mailbox.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer p.mailbox.Disconnect()

	if err := p.mailbox.SelectMailbox(p.opts.Mailbox); err != nil {
		return fmt.Errorf("select mailbox: %w", err)
	}

	ids, err := p.mailbox.Search(p.opts.Criteria)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if len(ids) == 0 {
		p.logger.Info("no emails found matching criteria", "criteria", p.opts.Criteria)
		return nil
	}
	if p.opts.Limit > 0 && len(ids) > p.opts.Limit {
		ids = ids[:p.opts.Limit]
	}

	p.logger.Info("emails found to process", "count", len(ids), "criteria", p.opts.Criteria)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.processOne(id)
	}

	return nil
}

// processOne handles a single message id end to end. Every failure is
// absorbed at this boundary: the item is recorded under the Error category
// and the batch moves on.
func (p *Pipeline) processOne(id uint32) {
	res := p.processItem(id)
	if res.err != nil {
		p.recordFailure(id, res.raw, res.err)
		return
	}

	p.aggregator.Record(res.msg, res.category, res.msg.HasAttachments(), "")

	// Only messages selected as unread get their flag flipped, and only
	// once every side effect went through. A message whose attachments
	// were not fully persisted stays unread so the next run retries it.
	if res.sideEffectsFailed {
		p.logger.Warn("keeping email unread, side effects incomplete", "id", id)
		return
	}
	if strings.EqualFold(p.opts.Criteria, "UNSEEN") {
		if err := p.mailbox.MarkRead(id); err != nil {
			p.logger.Error("failed to mark email as read", "id", id, "err", err)
		}
	}
}

// processItem runs the per-item stages and reports the outcome as a value
// instead of unwinding through the batch loop.
func (p *Pipeline) processItem(id uint32) itemResult {
	raw, err := p.mailbox.Fetch(id)
	if err != nil {
		return itemResult{err: fmt.Errorf("fetch: %w", err)}
	}
	p.logger.Info("email fetched", "id", id)

	msg, err := parser.Parse(raw)
	if err != nil {
		return itemResult{raw: raw, err: err}
	}

	category := p.classifier.Classify(msg)
	p.logger.Info("email classified",
		"id", id,
		"sender", msg.Sender,
		"subject", msg.Subject,
		"date", msg.Date,
		"category", category,
		"bodyPreview", bodyPreview(msg.Body),
	)

	var saved []string
	sideEffectsFailed := false
	if msg.HasAttachments() {
		payloads, err := attachment.Extract(raw)
		if err != nil {
			p.logger.Warn("attachment extraction incomplete", "id", id, "err", err)
			sideEffectsFailed = true
		}
		saved = p.extractor.Save(payloads, string(category))
		if len(saved) < len(payloads) {
			sideEffectsFailed = true
		}
	}

	emailID, err := p.store.InsertEmail(&db.EmailRecord{
		Timestamp:       p.now().Format(time.RFC3339),
		Sender:          msg.Sender,
		Subject:         msg.Subject,
		Date:            msg.Date,
		Category:        string(category),
		HasAttachments:  msg.HasAttachments(),
		AttachmentCount: len(msg.AttachmentNames),
		Body:            msg.Body,
	})
	if err != nil {
		return itemResult{raw: raw, err: fmt.Errorf("insert email: %w", err)}
	}

	for _, path := range saved {
		if err := p.store.InsertAttachment(emailID, filepath.Base(path), path, string(category)); err != nil {
			p.logger.Error("failed to record attachment", "id", id, "path", path, "err", err)
			sideEffectsFailed = true
		}
	}

	return itemResult{
		raw:               raw,
		msg:               msg,
		category:          category,
		saved:             saved,
		sideEffectsFailed: sideEffectsFailed,
	}
}

// recordFailure inserts the item's Error record, parsing the raw bytes
// best-effort for partial fields when they are available. Every fetched id
// yields exactly one email record, whatever went wrong.
func (p *Pipeline) recordFailure(id uint32, raw []byte, cause error) {
	p.logger.Error("failed to process email", "id", id, "err", cause)

	msg := &parser.Message{}
	if raw != nil {
		if parsed, err := parser.Parse(raw); err == nil {
			msg = parsed
		}
	}

	_, err := p.store.InsertEmail(&db.EmailRecord{
		Timestamp:       p.now().Format(time.RFC3339),
		Sender:          msg.Sender,
		Subject:         msg.Subject,
		Date:            msg.Date,
		Category:        string(classify.CategoryError),
		AttachmentCount: len(msg.AttachmentNames),
		Body:            msg.Body,
		Error:           cause.Error(),
	})
	if err != nil {
		p.logger.Error("failed to record error email", "id", id, "err", err)
	}

	p.aggregator.Record(msg, classify.CategoryError, false, cause.Error())
}
