package extraction

import "strings"

// ruleConfidence is the fixed confidence of keyword-window relations.
const ruleConfidence = 0.7

// RelationExtractor proposes relations between type-compatible mention
// pairs when a trigger keyword lies between them.
type RelationExtractor struct {
	lex *Lexicon
}

// NewRelationExtractor creates an extractor over the lexicon's
// compatibility and pattern tables.
func NewRelationExtractor(lex *Lexicon) *RelationExtractor {
	return &RelationExtractor{lex: lex}
}

type relationKey struct {
	head     string
	relation RelationType
	tail     string
}

// Extract scans every ordered mention pair. A pair yields a candidate for
// relation R when (head.Type, tail.Type) permits R and one of R's keywords
// occurs in the text strictly between head and tail. Candidates are
// unique by (head text, relation, tail text); the first one found is kept.
func (e *RelationExtractor) Extract(text string, mentions MentionSet) []RelationCandidate {
	if len(mentions) < 2 {
		return nil
	}
	runes := []rune(text)

	seen := make(map[relationKey]bool)
	var out []RelationCandidate
	for i, head := range mentions {
		for j, tail := range mentions {
			if i == j {
				continue
			}
			rels := e.lex.RelationsFor(head.Type, tail.Type)
			if len(rels) == 0 {
				continue
			}
			between := betweenText(runes, head, tail)
			if between == "" {
				continue
			}
			for _, rel := range rels {
				if !containsAny(between, e.lex.Keywords(rel)) {
					continue
				}
				key := relationKey{head.Text, rel, tail.Text}
				if seen[key] {
					continue
				}
				seen[key] = true
				conf := ruleConfidence
				out = append(out, RelationCandidate{
					Head:       head,
					Relation:   rel,
					Tail:       tail,
					Confidence: &conf,
					Source:     SourceRule,
				})
			}
		}
	}
	return out
}

// betweenText returns runes[head.End:tail.Start], or "" when tail does not
// start after head ends.
func betweenText(runes []rune, head, tail Mention) string {
	if tail.Start < head.End || tail.Start > len(runes) {
		return ""
	}
	return string(runes[head.End:tail.Start])
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
