package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/parser"
)

// Config controls the splitting behaviour.
type Config struct {
	MaxRunes int  // Sentences longer than this are cut at clause boundaries.
	KeepDups bool // Keep repeated segments (e.g. running headers) instead of dropping them.
}

// Segment is one extraction unit cut from a parsed document.
type Segment struct {
	Text       string `json:"text"`
	Heading    string `json:"heading,omitempty"`
	PageNumber int    `json:"page_number,omitempty"`
	Position   int    `json:"position"`
	Hash       string `json:"-"`
}

// Chunker turns parsed sections into sentence-sized segments. Relation
// evidence never crosses a sentence, so sentences are the natural unit.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration.
// Zero-value fields are replaced with sensible defaults.
func New(cfg Config) *Chunker {
	if cfg.MaxRunes <= 0 {
		cfg.MaxRunes = 512
	}
	return &Chunker{cfg: cfg}
}

// Chunk splits every section's content into segments in document order.
func (c *Chunker) Chunk(sections []parser.Section) []Segment {
	var out []Segment
	seen := make(map[string]bool)
	for _, sec := range sections {
		for _, sent := range SplitSentences(sec.Content) {
			for _, frag := range c.limit(sent) {
				h := contentHash(frag)
				if !c.cfg.KeepDups && seen[h] {
					continue
				}
				seen[h] = true
				out = append(out, Segment{
					Text:       frag,
					Heading:    sec.Heading,
					PageNumber: sec.PageNumber,
					Position:   len(out),
					Hash:       h,
				})
			}
		}
	}
	return out
}

// Texts returns the segment texts, in order.
func Texts(segs []Segment) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.Text
	}
	return out
}

// limit cuts an overlong sentence at clause punctuation, packing clauses
// greedily up to MaxRunes. A single clause longer than the limit is hard
// split.
func (c *Chunker) limit(sentence string) []string {
	if len([]rune(sentence)) <= c.cfg.MaxRunes {
		return []string{sentence}
	}

	var out []string
	var cur []rune
	for _, clause := range splitOn(sentence, isClauseEnd) {
		cr := []rune(clause)
		if len(cur)+len(cr) > c.cfg.MaxRunes && len(cur) > 0 {
			out = append(out, strings.TrimSpace(string(cur)))
			cur = cur[:0]
		}
		for len(cr) > c.cfg.MaxRunes {
			out = append(out, string(cr[:c.cfg.MaxRunes]))
			cr = cr[c.cfg.MaxRunes:]
		}
		cur = append(cur, cr...)
	}
	if s := strings.TrimSpace(string(cur)); s != "" {
		out = append(out, s)
	}
	return out
}

// SplitSentences splits text at Chinese sentence punctuation (。！？；),
// at newlines, and at ASCII '.', '!', '?' or ';' when followed by
// whitespace or the end of the text. Terminators stay attached to their
// sentence; blank sentences are dropped.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	flush := func(end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
	}
	for i, r := range runes {
		switch {
		case r == '\n' || r == '\r':
			flush(i + 1)
		case r == '。' || r == '！' || r == '？' || r == '；':
			flush(i + 1)
		case r == '.' || r == '!' || r == '?' || r == ';':
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				flush(i + 1)
			}
		}
	}
	flush(len(runes))
	return out
}

func isClauseEnd(r rune) bool {
	return r == '，' || r == '、' || r == ',' || r == '：' || r == ':'
}

// splitOn cuts s after every rune matching sep, keeping the separator.
func splitOn(s string, sep func(rune) bool) []string {
	var out []string
	var b strings.Builder
	for _, r := range s {
		b.WriteRune(r)
		if sep(r) {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// contentHash returns the SHA-256 hex digest of text.
func contentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
