package db

import (
	"database/sql"
	"fmt"
)

// EmailRecord is one row of the emails table. Exactly one record is
// inserted per processed message, success or failure path, never updated.
type EmailRecord struct {
	ID              int64
	Timestamp       string
	Sender          string
	Subject         string
	Date            string
	Category        string
	HasAttachments  bool
	AttachmentCount int
	Body            string
	Error           string
}

// AttachmentRecord is one row of the attachments table, inserted once per
// saved attachment file.
type AttachmentRecord struct {
	ID       int64
	EmailID  int64
	Filename string
	FilePath string
	Category string
}

// InsertEmail inserts a new email record and returns its assigned id.
func (db *DB) InsertEmail(rec *EmailRecord) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO emails (
			timestamp, sender, subject, date, category,
			has_attachments, attachment_count, body, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Timestamp, rec.Sender, rec.Subject, rec.Date, rec.Category,
		rec.HasAttachments, rec.AttachmentCount, rec.Body, rec.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert email: %w", err)
	}

	return result.LastInsertId()
}

// InsertAttachment inserts an attachment record referencing an email row.
func (db *DB) InsertAttachment(emailID int64, filename, filePath, category string) error {
	_, err := db.Exec(`
		INSERT INTO attachments (email_id, filename, file_path, category)
		VALUES (?, ?, ?, ?)
	`, emailID, filename, filePath, category)
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	return nil
}

// EmailsByCategory retrieves all emails assigned to a category.
func (db *DB) EmailsByCategory(category string) ([]*EmailRecord, error) {
	rows, err := db.Query(`
		SELECT id, timestamp, sender, subject, date, category,
		       has_attachments, attachment_count, body, error
		FROM emails WHERE category = ?
		ORDER BY id
	`, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query emails: %w", err)
	}
	defer rows.Close()

	var emails []*EmailRecord
	for rows.Next() {
		rec := &EmailRecord{}
		err := rows.Scan(
			&rec.ID, &rec.Timestamp, &rec.Sender, &rec.Subject, &rec.Date,
			&rec.Category, &rec.HasAttachments, &rec.AttachmentCount,
			&rec.Body, &rec.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		emails = append(emails, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emails: %w", err)
	}
	return emails, nil
}

// AttachmentsByEmailID retrieves the attachment rows for one email.
func (db *DB) AttachmentsByEmailID(emailID int64) ([]*AttachmentRecord, error) {
	rows, err := db.Query(`
		SELECT id, email_id, filename, file_path, category
		FROM attachments WHERE email_id = ?
		ORDER BY id
	`, emailID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*AttachmentRecord
	for rows.Next() {
		rec := &AttachmentRecord{}
		if err := rows.Scan(&rec.ID, &rec.EmailID, &rec.Filename, &rec.FilePath, &rec.Category); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}
	return attachments, nil
}

// CategoryStat is one row of the per-category statistics view.
type CategoryStat struct {
	Category        string
	Count           int
	AttachmentCount int
}

// Statistics returns per-category counts over the successfully processed
// emails, most frequent category first.
func (db *DB) Statistics() ([]CategoryStat, error) {
	rows, err := db.Query(`
		SELECT category, COUNT(*) AS count, SUM(has_attachments) AS attachment_count
		FROM emails
		WHERE error = '' OR error IS NULL
		GROUP BY category
		ORDER BY count DESC, category ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}
	defer rows.Close()

	var stats []CategoryStat
	for rows.Next() {
		var s CategoryStat
		var attachments sql.NullInt64
		if err := rows.Scan(&s.Category, &s.Count, &attachments); err != nil {
			return nil, fmt.Errorf("failed to scan statistics: %w", err)
		}
		s.AttachmentCount = int(attachments.Int64)
		stats = append(stats, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statistics: %w", err)
	}
	return stats, nil
}

// TotalCount returns the total number of processed emails.
func (db *DB) TotalCount() (int, error) {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM emails").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count emails: %w", err)
	}
	return count, nil
}

// ErrorCount returns the number of emails recorded on the failure path.
func (db *DB) ErrorCount() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM emails WHERE error != '' AND error IS NOT NULL").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count errors: %w", err)
	}
	return count, nil
}
