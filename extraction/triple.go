package extraction

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	defaultConfidence  = 0.5
	defaultSourceLabel = "text"
)

// Generator runs the recognizer and the relation extractor over a text and
// turns the accepted candidates into triples.
type Generator struct {
	recognizer *Recognizer
	relations  *RelationExtractor
	opts       ExtractOptions
}

// NewGenerator wires a generator. Both passes are enabled; the model pass
// is a no-op when the recognizer has no tagger.
func NewGenerator(recognizer *Recognizer, relations *RelationExtractor) *Generator {
	return &Generator{recognizer: recognizer, relations: relations, opts: DefaultExtractOptions()}
}

// WithOptions returns a copy of g that runs the given passes.
func (g *Generator) WithOptions(opts ExtractOptions) *Generator {
	c := *g
	c.opts = opts
	return &c
}

// Recognizer returns the underlying recognizer.
func (g *Generator) Recognizer() *Recognizer { return g.recognizer }

// GenerateFromText extracts mentions, relations and triples from one text.
// An empty source label defaults to "text".
func (g *Generator) GenerateFromText(ctx context.Context, text, source string) (*Result, error) {
	mentions, err := g.recognizer.Extract(ctx, text, g.opts)
	if err != nil {
		return nil, err
	}
	candidates := g.relations.Extract(text, mentions)

	if mentions == nil {
		mentions = MentionSet{}
	}
	if candidates == nil {
		candidates = []RelationCandidate{}
	}
	return &Result{
		Text:      text,
		Entities:  mentions,
		Relations: candidates,
		Triples:   ToTriples(candidates, source),
	}, nil
}

// ToTriples flattens candidates into triples. Candidates without a
// confidence get 0.5; an explicit zero is kept.
func ToTriples(candidates []RelationCandidate, source string) []Triple {
	if source == "" {
		source = defaultSourceLabel
	}
	triples := make([]Triple, 0, len(candidates))
	for _, c := range candidates {
		triples = append(triples, Triple{
			Head:       c.Head.Text,
			HeadType:   c.Head.Type,
			Relation:   c.Relation,
			Tail:       c.Tail.Text,
			TailType:   c.Tail.Type,
			Confidence: c.Score(),
			Source:     source,
		})
	}
	return triples
}

// GenerateFromTexts processes texts in order. A failing item, including a
// panic, becomes an error marker at its index and the batch continues.
func (g *Generator) GenerateFromTexts(ctx context.Context, texts []string, source string) []BatchItem {
	items := make([]BatchItem, len(texts))
	for i, text := range texts {
		items[i] = g.GenerateItem(ctx, i, text, source)
	}
	return items
}

// GenerateItem runs GenerateFromText for one batch position and captures
// any failure in the returned item.
func (g *Generator) GenerateItem(ctx context.Context, index int, text, source string) (item BatchItem) {
	item.Index = index
	defer func() {
		if r := recover(); r != nil {
			slog.Error("extraction: panic in batch item", "index", index, "panic", r)
			item.Result = nil
			item.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	res, err := g.GenerateFromText(ctx, text, source)
	if err != nil {
		slog.Warn("extraction: batch item failed", "index", index, "error", err)
		item.Error = err.Error()
		return item
	}
	item.Result = res
	return item
}
