package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"
)

func init() {
	// Register additional charsets that are commonly used in emails
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

// ErrMalformed is returned when a byte stream cannot be interpreted as a
// structured mail document at all. Missing optional fields never cause it.
var ErrMalformed = errors.New("malformed message")

// Parse decodes raw message bytes into a Message.
//
// Body assembly: all text/plain leaf parts are concatenated (newline-joined)
// as the primary body; all text/html leaves form the fallback used when no
// plain text is present. Parts with an attachment disposition contribute
// their decoded filename to AttachmentNames and never to the body. A part
// with an attachment disposition but no filename is ignored.
func Parse(raw []byte) (*Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	msg := &Message{
		Sender:  headerText(&mr.Header, "From"),
		Subject: headerText(&mr.Header, "Subject"),
		Date:    mr.Header.Get("Date"),
	}

	var textParts, htmlParts []string

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			if !strings.HasPrefix(contentType, "text/plain") &&
				!strings.HasPrefix(contentType, "text/html") {
				continue
			}

			body, err := io.ReadAll(part.Body)
			if err != nil {
				// An unreadable part does not fail the whole message.
				continue
			}

			text := strings.ToValidUTF8(string(body), "")
			if strings.HasPrefix(contentType, "text/plain") {
				textParts = append(textParts, text)
			} else {
				htmlParts = append(htmlParts, text)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			if filename == "" {
				continue
			}
			msg.AttachmentNames = append(msg.AttachmentNames, filename)
		}
	}

	// Plain text wins when present; HTML is only a fallback.
	msg.Body = strings.TrimSpace(strings.Join(textParts, "\n"))
	if msg.Body == "" {
		msg.Body = strings.TrimSpace(strings.Join(htmlParts, "\n"))
	}

	return msg, nil
}

// headerText decodes a RFC 2047 encoded header into one Unicode string.
// Mixed charset runs concatenate; an absent header yields an empty string.
func headerText(h *mail.Header, key string) string {
	text, err := h.Text(key)
	if err != nil && text == "" {
		// Decoding failed entirely, fall back to the raw value.
		return h.Get(key)
	}
	return text
}
