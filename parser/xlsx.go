package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// textColumns are header names whose column holds free clinical text.
// When a sheet has one, only that column is extracted.
var textColumns = []string{"text", "content", "文本", "内容", "病历", "描述", "主诉", "现病史"}

// XLSXParser reads spreadsheets of case records. Every data row becomes one
// section so that unrelated rows never share an extraction window.
type XLSXParser struct{}

func (p *XLSXParser) SupportedFormats() []string { return []string{"xlsx"} }

func (p *XLSXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var sections []Section
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		col := textColumn(rows[0])
		data := rows
		if col >= 0 {
			data = rows[1:]
		}

		for i, row := range data {
			var content string
			if col >= 0 {
				if col < len(row) {
					content = strings.TrimSpace(row[col])
				}
			} else {
				content = joinCells(row)
			}
			if content == "" {
				continue
			}
			rowNum := i + 1
			if col >= 0 {
				rowNum++
			}
			sections = append(sections, Section{
				Heading: sheet,
				Content: content,
				Type:    "record",
				Metadata: map[string]string{
					"sheet_name": sheet,
					"row":        fmt.Sprintf("%d", rowNum),
				},
			})
		}
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("no data found in XLSX")
	}

	return &ParseResult{Sections: sections, Method: "native"}, nil
}

// textColumn returns the index of the free-text column in header, or -1.
func textColumn(header []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, name := range textColumns {
			if h == name {
				return i
			}
		}
	}
	return -1
}

// joinCells joins the non-empty cells of a row with a Chinese comma.
func joinCells(row []string) string {
	cells := make([]string, 0, len(row))
	for _, c := range row {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	return strings.Join(cells, "，")
}
