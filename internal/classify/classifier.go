package classify

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ebiseau/mail-sorter/internal/parser"
)

// Category is the label assigned to a classified message. Besides the
// per-language rule-table categories there are three synthetic labels.
type Category string

const (
	// CategoryInternal is forced when the sender matches the internal domain.
	CategoryInternal Category = "Internal"
	// CategoryGeneral is returned when no rule scores at all.
	CategoryGeneral Category = "General"
	// CategoryError marks records inserted on the pipeline's failure path.
	CategoryError Category = "Error"
)

const (
	subjectWeight = 3
	bodyWeight    = 1
)

// Classifier scores messages against one language profile's rule table.
// It is immutable after New and safe for concurrent use.
type Classifier struct {
	internalDomain string
	rules          []compiledRule
}

type compiledRule struct {
	category Category
	keywords []*keywordMatcher
}

// New builds a classifier for the given language profile. An unrecognized
// language falls back to the default ("en") table. The internal domain is a
// sender-address substring, matched case-insensitively; when empty the
// internal short-circuit is disabled.
func New(language, internalDomain string) *Classifier {
	rs := Rules(strings.ToLower(language))

	c := &Classifier{internalDomain: strings.ToLower(internalDomain)}
	for _, rule := range rs {
		cr := compiledRule{category: rule.Category}
		for _, kw := range rule.Keywords {
			cr.keywords = append(cr.keywords, newKeywordMatcher(kw))
		}
		c.rules = append(c.rules, cr)
	}
	return c
}

// Classify assigns exactly one category to a message. It never fails.
//
// A sender containing the internal domain wins unconditionally. Otherwise
// each keyword occurrence scores 3 in the subject and 1 in the body;
// occurrences are counted, not deduplicated. With every score at zero the
// result is General; on an exact tie the category defined first in the rule
// table wins.
func (c *Classifier) Classify(msg *parser.Message) Category {
	if c.internalDomain != "" &&
		strings.Contains(strings.ToLower(msg.Sender), c.internalDomain) {
		return CategoryInternal
	}

	best := CategoryGeneral
	bestScore := 0
	for _, rule := range c.rules {
		score := 0
		for _, kw := range rule.keywords {
			score += subjectWeight * kw.count(msg.Subject)
			score += bodyWeight * kw.count(msg.Body)
		}
		if score > bestScore {
			best = rule.category
			bestScore = score
		}
	}
	return best
}

// keywordMatcher counts whole-word, case-insensitive occurrences of one
// keyword phrase. The regexp finds candidate occurrences (with unicode case
// folding); word boundaries are then checked explicitly because regexp's \b
// is ASCII-only and the French rule table is full of accented words.
type keywordMatcher struct {
	re    *regexp.Regexp
	first rune
	last  rune
}

func newKeywordMatcher(keyword string) *keywordMatcher {
	first, _ := utf8.DecodeRuneInString(keyword)
	last, _ := utf8.DecodeLastRuneInString(keyword)
	return &keywordMatcher{
		re:    regexp.MustCompile(`(?i)` + regexp.QuoteMeta(keyword)),
		first: first,
		last:  last,
	}
}

func (m *keywordMatcher) count(text string) int {
	n := 0
	for _, loc := range m.re.FindAllStringIndex(text, -1) {
		if m.boundedAt(text, loc[0], loc[1]) {
			n++
		}
	}
	return n
}

// boundedAt reports whether the occurrence at [start,end) sits on word
// boundaries, with \b semantics: a boundary exists where word-ness flips,
// and string edges count as non-word.
func (m *keywordMatcher) boundedAt(text string, start, end int) bool {
	beforeIsWord := false
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		beforeIsWord = isWordRune(r)
	}
	if beforeIsWord == isWordRune(m.first) {
		return false
	}

	afterIsWord := false
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		afterIsWord = isWordRune(r)
	}
	return afterIsWord != isWordRune(m.last)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
