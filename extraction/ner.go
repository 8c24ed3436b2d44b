package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"
)

// Detector finds entity mentions in a text. Implementations must be safe
// for concurrent use.
type Detector interface {
	Detect(ctx context.Context, text string) ([]Mention, error)
	Source() Source
}

// DictionaryDetector is the rule pass: exact, case-sensitive matching of
// every dictionary term.
type DictionaryDetector struct {
	dicts []Dictionary
}

// NewDictionaryDetector builds a rule detector over the lexicon's
// dictionaries.
func NewDictionaryDetector(lex *Lexicon) *DictionaryDetector {
	return &DictionaryDetector{dicts: lex.Dictionaries}
}

func (d *DictionaryDetector) Source() Source { return SourceRule }

// Detect emits one mention per non-overlapping occurrence of each term,
// scanning dictionaries and terms in table order.
func (d *DictionaryDetector) Detect(_ context.Context, text string) ([]Mention, error) {
	if text == "" {
		return nil, nil
	}
	offsets := runeOffsets(text)

	var out []Mention
	for _, dict := range d.dicts {
		for _, term := range dict.Terms {
			for _, m := range findAll(text, term, offsets) {
				out = append(out, Mention{
					Text:   term,
					Type:   dict.Type,
					Start:  m[0],
					End:    m[1],
					Source: SourceRule,
				})
			}
		}
	}
	return out, nil
}

// runeOffsets maps every byte offset of text (and len(text)) to the number
// of runes before it.
func runeOffsets(text string) []int {
	offsets := make([]int, len(text)+1)
	r := 0
	for i := 0; i < len(text); {
		_, size := utf8.DecodeRuneInString(text[i:])
		for k := 0; k < size; k++ {
			offsets[i+k] = r
		}
		i += size
		r++
	}
	offsets[len(text)] = r
	return offsets
}

// findAll returns the rune spans of every non-overlapping occurrence of
// term in text, leftmost first.
func findAll(text, term string, offsets []int) [][2]int {
	if term == "" {
		return nil
	}
	var spans [][2]int
	for pos := 0; pos <= len(text)-len(term); {
		i := strings.Index(text[pos:], term)
		if i < 0 {
			break
		}
		start := pos + i
		end := start + len(term)
		spans = append(spans, [2]int{offsets[start], offsets[end]})
		pos = end
	}
	return spans
}

// ExtractOptions selects which detection passes run.
type ExtractOptions struct {
	UseRules bool
	UseModel bool
}

// DefaultExtractOptions enables both passes.
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{UseRules: true, UseModel: true}
}

// Recognizer composes the rule detector with an optional model detector
// and resolves their combined output into a MentionSet.
type Recognizer struct {
	rules Detector
	model Detector
}

// NewRecognizer creates a recognizer. A nil model means no statistical
// tagger is configured; extraction then runs on rules alone.
func NewRecognizer(rules, model Detector) *Recognizer {
	if model == nil {
		slog.Info("ner: statistical tagger unavailable, rule-only extraction")
	}
	return &Recognizer{rules: rules, model: model}
}

// HasModel reports whether a statistical tagger is configured.
func (r *Recognizer) HasModel() bool { return r.model != nil }

// Extract runs the enabled passes over text and resolves overlaps. Only a
// rule pass failure is returned; a failing model pass is logged and its
// mentions are skipped.
func (r *Recognizer) Extract(ctx context.Context, text string, opts ExtractOptions) (MentionSet, error) {
	var all []Mention

	if opts.UseRules && r.rules != nil {
		ms, err := r.rules.Detect(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDetectorFailed, r.rules.Source(), err)
		}
		all = append(all, ms...)
	}

	if opts.UseModel && r.model != nil {
		ms, err := r.model.Detect(ctx, text)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			// The tagger is optional: fall back to the rule mentions.
			slog.Warn("ner: model pass failed, using rule mentions only", "error", err)
			ms = nil
		}
		n := utf8.RuneCountInString(text)
		for _, m := range ms {
			if m.Start < 0 || m.End <= m.Start || m.End > n {
				slog.Debug("ner: dropping out-of-range model span", "text", m.Text, "start", m.Start, "end", m.End)
				continue
			}
			all = append(all, m)
		}
	}

	return Resolve(all), nil
}

// Resolve orders mentions by (Start asc, End desc) and drops every mention
// fully contained in one already kept. Partially overlapping mentions both
// survive. The sort is stable so earlier entries win exact ties.
func Resolve(mentions []Mention) MentionSet {
	sorted := make([]Mention, len(mentions))
	copy(sorted, mentions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End > sorted[j].End
	})

	out := make(MentionSet, 0, len(sorted))
	for _, m := range sorted {
		contained := false
		for _, k := range out {
			if k.Contains(m) {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, m)
		}
	}
	return out
}
