package pipeline

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ebiseau/mail-sorter/internal/classify"
	"github.com/ebiseau/mail-sorter/internal/parser"
)

// itemResult carries one message through the per-item stages: either a
// normalized message with its category, or the failure plus whatever raw
// bytes were fetched before it (for the best-effort error record).
// sideEffectsFailed marks a processed message whose attachment files or
// rows did not all land; such a message keeps its unread flag.
type itemResult struct {
	raw               []byte
	msg               *parser.Message
	category          classify.Category
	saved             []string
	sideEffectsFailed bool
	err               error
}

var stripPolicy = bluemonday.StrictPolicy()

const previewLen = 100

// bodyPreview renders a short single-line preview for the progress log.
// Bodies assembled from the HTML fallback still carry markup; strip it so
// the log line stays readable. Truncation counts runes so a multibyte
// character is never split mid-sequence.
func bodyPreview(body string) string {
	preview := body
	if strings.Contains(preview, "<") {
		preview = html.UnescapeString(stripPolicy.Sanitize(preview))
	}
	preview = strings.Join(strings.Fields(preview), " ")
	if runes := []rune(preview); len(runes) > previewLen {
		preview = string(runes[:previewLen])
	}
	return preview
}
