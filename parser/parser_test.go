package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// ---------------------------------------------------------------------------
// Registry tests
// ---------------------------------------------------------------------------

func TestRegistryBuiltInParsers(t *testing.T) {
	reg := NewRegistry()

	formats := []struct {
		format     string
		wantParser string
	}{
		{"txt", "*parser.TextParser"},
		{"md", "*parser.TextParser"},
		{"pdf", "*parser.PDFParser"},
		{"xlsx", "*parser.XLSXParser"},
	}

	for _, tt := range formats {
		t.Run(tt.format, func(t *testing.T) {
			p, err := reg.Get(tt.format)
			if err != nil {
				t.Fatalf("Get(%q) returned error: %v", tt.format, err)
			}
			found := false
			for _, f := range p.SupportedFormats() {
				if f == tt.format {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("parser for %q does not list it in SupportedFormats(): %v", tt.format, p.SupportedFormats())
			}
		})
	}
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry()
	for _, format := range []string{"docx", "pptx", "csv", "html", ""} {
		t.Run("format_"+format, func(t *testing.T) {
			p, err := reg.Get(format)
			if !errors.Is(err, ErrNoParser) {
				t.Errorf("Get(%q) err = %v, want ErrNoParser", format, err)
			}
			if p != nil {
				t.Errorf("Get(%q) expected nil parser", format)
			}
		})
	}
}

func TestRegistryCustomParser(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Get("log"); err == nil {
		t.Fatal("expected error for unregistered format")
	}
	reg.Register("log", &TextParser{})
	if _, err := reg.Get("log"); err != nil {
		t.Fatalf("Get(\"log\") after Register returned error: %v", err)
	}
}

func TestFormatOf(t *testing.T) {
	tests := map[string]string{
		"/data/病例.TXT":    "txt",
		"guide.pdf":       "pdf",
		"records.v2.xlsx": "xlsx",
		"README":          "",
	}
	for path, want := range tests {
		if got := FormatOf(path); got != want {
			t.Errorf("FormatOf(%q) = %q, want %q", path, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Text parser
// ---------------------------------------------------------------------------

func TestTextParser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case.txt")
	content := "\ufeff患者确诊高血压，表现为头痛。\r\n\r\n\r\n建议氨氯地平治疗。\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := (&TextParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Sections) != 2 {
		t.Fatalf("got %d sections, want 2: %+v", len(res.Sections), res.Sections)
	}
	if res.Sections[0].Content != "患者确诊高血压，表现为头痛。" {
		t.Errorf("section 0 = %q", res.Sections[0].Content)
	}
	if res.Sections[1].Heading != "case.txt" {
		t.Errorf("heading = %q", res.Sections[1].Heading)
	}
}

func TestTextParserRejectsBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.txt")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x41}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (&TextParser{}).Parse(context.Background(), path); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
}

// ---------------------------------------------------------------------------
// PDF page splitting
// ---------------------------------------------------------------------------

func TestSplitPageIntoSections(t *testing.T) {
	text := `一、概述
高血压是以体循环动脉压增高
为主要特征的临床综合征。

（一）临床表现
常见症状有头痛、头晕。
【诊断】
诊室血压≥140/90mmHg。`

	sections := splitPageIntoSections(text, 2)
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d: %+v", len(sections), sections)
	}

	want := []struct{ heading, content string }{
		{"一、概述", "高血压是以体循环动脉压增高为主要特征的临床综合征。"},
		{"（一）临床表现", "常见症状有头痛、头晕。"},
		{"【诊断】", "诊室血压≥140/90mmHg。"},
	}
	for i, w := range want {
		if sections[i].Heading != w.heading {
			t.Errorf("section[%d].Heading = %q, want %q", i, sections[i].Heading, w.heading)
		}
		if sections[i].Content != w.content {
			t.Errorf("section[%d].Content = %q, want %q", i, sections[i].Content, w.content)
		}
		if sections[i].PageNumber != 2 {
			t.Errorf("section[%d].PageNumber = %d", i, sections[i].PageNumber)
		}
	}
}

func TestSplitPageIntoSectionsEdgeCases(t *testing.T) {
	if got := splitPageIntoSections("", 1); len(got) != 0 {
		t.Errorf("empty text: %d sections", len(got))
	}
	if got := splitPageIntoSections("   \n\n   \n  ", 1); len(got) != 0 {
		t.Errorf("whitespace text: %d sections", len(got))
	}
	got := splitPageIntoSections("第三章 糖尿病", 4)
	if len(got) != 1 || got[0].Content != "第三章 糖尿病" {
		t.Errorf("heading-only page: %+v", got)
	}
	got = splitPageIntoSections("没有标题的一段文字。", 5)
	if len(got) != 1 || got[0].Heading != "" || got[0].PageNumber != 5 {
		t.Errorf("no headings: %+v", got)
	}
}

func TestIsLikelyHeading(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"一、概述", true},
		{"十二、预后", true},
		{"（三）治疗", true},
		{"第二章 诊断", true},
		{"第4节", true},
		{"1. 定义", true},
		{"2.3 药物治疗", true},
		{"【禁忌】", true},
		{"鉴别诊断：", true},
		{"2型糖尿病患者应控制血糖。", false},
		{"患者表现为头痛：持续三天，伴恶心呕吐，无发热。", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isLikelyHeading(tt.line); got != tt.want {
			t.Errorf("isLikelyHeading(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// XLSX parser
// ---------------------------------------------------------------------------

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "records.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("saving workbook: %v", err)
	}
	return path
}

func TestXLSXParserTextColumn(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"编号", "病历", "科室"},
		{1, "高血压表现为头痛。", "心内科"},
		{2, "", "内分泌科"},
		{3, "2型糖尿病出现多饮。", "内分泌科"},
	})

	res, err := (&XLSXParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Sections) != 2 {
		t.Fatalf("got %d sections, want 2: %+v", len(res.Sections), res.Sections)
	}
	if res.Sections[0].Content != "高血压表现为头痛。" {
		t.Errorf("section 0 = %q", res.Sections[0].Content)
	}
	if res.Sections[1].Metadata["row"] != "4" {
		t.Errorf("row metadata = %q, want 4", res.Sections[1].Metadata["row"])
	}
}

func TestXLSXParserJoinsCells(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"冠心病", "胸痛", "心电图"},
	})
	res, err := (&XLSXParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Sections) != 1 || res.Sections[0].Content != "冠心病，胸痛，心电图" {
		t.Errorf("sections = %+v", res.Sections)
	}
}
