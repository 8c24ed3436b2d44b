package parser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	sections := make([]Section, 0)

	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		sections = append(sections, splitPageIntoSections(text, i)...)
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("no extractable text in PDF %s", path)
	}

	return &ParseResult{
		Sections: sections,
		Method:   "native",
		Metadata: map[string]string{"pages": fmt.Sprintf("%d", totalPages)},
	}, nil
}

// headingRe matches the heading styles of Chinese clinical guidelines and
// case reports: 一、 / （一） / 第一章 / 1. / 1.1 / 【诊断】.
var headingRe = regexp.MustCompile(`^(?:[一二三四五六七八九十]+、|（[一二三四五六七八九十]+）|第[一二三四五六七八九十百\d]+[章节部分]|\d+(?:\.\d+)*[.、\s]|【[^】]+】)`)

// splitPageIntoSections breaks page text into sections at heading lines.
// Body lines are joined without separators, since PDF line breaks inside
// Chinese paragraphs are layout artifacts.
func splitPageIntoSections(text string, pageNum int) []Section {
	var sections []Section
	var body strings.Builder
	heading := ""

	flush := func() {
		if content := strings.TrimSpace(body.String()); content != "" {
			sections = append(sections, Section{
				Heading:    heading,
				Content:    content,
				PageNumber: pageNum,
				Type:       "section",
			})
		}
		body.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			// Paragraph break: keep it so sentence splitting sees it.
			if body.Len() > 0 {
				body.WriteString("\n")
			}
			continue
		}
		if isLikelyHeading(trimmed) {
			flush()
			heading = trimmed
			continue
		}
		body.WriteString(trimmed)
	}
	flush()

	// A page holding only a heading still yields its text.
	if len(sections) == 0 && heading != "" {
		sections = append(sections, Section{
			Heading:    heading,
			Content:    heading,
			PageNumber: pageNum,
			Type:       "paragraph",
		})
	}
	return sections
}

func isLikelyHeading(line string) bool {
	if len([]rune(line)) > 40 {
		return false
	}
	if headingRe.MatchString(line) {
		return true
	}
	// Short label lines like "鉴别诊断：" introduce a block.
	return strings.HasSuffix(line, "：") && len([]rune(line)) <= 12
}
