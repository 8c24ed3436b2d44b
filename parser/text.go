package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// TextParser handles plain text (.txt, .md) files. Blank lines separate
// sections.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt", "md"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("text file %s is not valid UTF-8", filepath.Base(path))
	}

	content := strings.TrimPrefix(string(data), "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var sections []Section
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		sections = append(sections, Section{
			Heading: filepath.Base(path),
			Content: para,
			Type:    "paragraph",
		})
	}

	return &ParseResult{Sections: sections, Method: "native"}, nil
}
