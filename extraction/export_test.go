package extraction

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

var sampleTriples = []Triple{
	{Head: "高血压", HeadType: EntityDisease, Relation: RelHasSymptom, Tail: "头痛", TailType: EntitySymptom, Confidence: 0.7, Source: "text"},
	{Head: "2型糖尿病", HeadType: EntityDisease, Relation: RelFirstLine, Tail: "二甲双胍", TailType: EntityDrug, Confidence: 0.95, Source: "demo_data"},
	{Head: "A<B>&C", HeadType: EntityGene, Relation: RelCauses, Tail: "x", TailType: EntitySymptom, Confidence: 1, Source: "manual"},
}

var zeroTriple = Triple{Head: "乙肝", HeadType: EntityDisease, Relation: RelHasSymptom, Tail: "乏力", TailType: EntitySymptom}

func TestExportCSV(t *testing.T) {
	got, err := ExportTriples(sampleTriples, "csv")
	if err != nil {
		t.Fatalf("ExportTriples: %v", err)
	}
	want := strings.Join([]string{
		"head,head_type,relation,tail,tail_type,confidence,source",
		"高血压,DISEASE,HAS_SYMPTOM,头痛,SYMPTOM,0.7,text",
		"2型糖尿病,DISEASE,FIRST_LINE,二甲双胍,DRUG,0.95,demo_data",
		"A<B>&C,GENE,CAUSES,x,SYMPTOM,1.0,manual",
	}, "\n")
	if got != want {
		t.Errorf("csv =\n%s\nwant\n%s", got, want)
	}
}

func TestExportCSVNoQuoting(t *testing.T) {
	tr := []Triple{{Head: "a,b", HeadType: EntityDisease, Relation: RelCauses, Tail: "c", TailType: EntitySymptom, Confidence: 0.5, Source: "s"}}
	got, _ := ExportTriples(tr, "csv")
	if !strings.HasSuffix(got, "\na,b,DISEASE,CAUSES,c,SYMPTOM,0.5,s") {
		t.Errorf("embedded comma should be written verbatim, got %q", got)
	}
}

func TestExportEmpty(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"csv", "head,head_type,relation,tail,tail_type,confidence,source"},
		{"jsonl", ""},
	}
	for _, tt := range tests {
		got, err := ExportTriples(nil, tt.format)
		if err != nil {
			t.Fatalf("%s: %v", tt.format, err)
		}
		if got != tt.want {
			t.Errorf("%s = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestExportJSONLRoundTrip(t *testing.T) {
	got, err := ExportTriples(sampleTriples, "jsonl")
	if err != nil {
		t.Fatalf("ExportTriples: %v", err)
	}
	if !strings.Contains(got, "高血压") || !strings.Contains(got, "A<B>&C") {
		t.Errorf("jsonl should not escape non-ASCII or HTML: %s", got)
	}

	lines := strings.Split(got, "\n")
	if len(lines) != len(sampleTriples) {
		t.Fatalf("got %d lines, want %d", len(lines), len(sampleTriples))
	}
	var decoded []Triple
	for _, line := range lines {
		var tr Triple
		if err := json.Unmarshal([]byte(line), &tr); err != nil {
			t.Fatalf("line %q: %v", line, err)
		}
		decoded = append(decoded, tr)
	}
	if !reflect.DeepEqual(decoded, sampleTriples) {
		t.Errorf("round trip = %+v, want %+v", decoded, sampleTriples)
	}

	parsed, err := ParseTriples(got, "jsonl")
	if err != nil {
		t.Fatalf("ParseTriples: %v", err)
	}
	if !reflect.DeepEqual(parsed, sampleTriples) {
		t.Errorf("ParseTriples = %+v", parsed)
	}

	withZero := append(append([]Triple{}, sampleTriples...), zeroTriple)
	out, err := ExportTriples(withZero, "jsonl")
	if err != nil {
		t.Fatalf("ExportTriples: %v", err)
	}
	parsed, err = ParseTriples(out, "jsonl")
	if err != nil {
		t.Fatalf("ParseTriples: %v", err)
	}
	if !reflect.DeepEqual(parsed, withZero) {
		t.Errorf("zero confidence and empty source not kept: %+v", parsed[len(parsed)-1])
	}
}

func TestExportCSVRoundTrip(t *testing.T) {
	want := append(append([]Triple{}, sampleTriples...), zeroTriple)
	out, err := ExportTriples(want, "csv")
	if err != nil {
		t.Fatalf("ExportTriples: %v", err)
	}
	if !strings.HasSuffix(out, "\n乙肝,DISEASE,HAS_SYMPTOM,乏力,SYMPTOM,0.0,") {
		t.Errorf("last line of %q", out)
	}
	parsed, err := ParseTriples(out, "csv")
	if err != nil {
		t.Fatalf("ParseTriples: %v", err)
	}
	if !reflect.DeepEqual(parsed, want) {
		t.Errorf("ParseTriples = %+v, want %+v", parsed, want)
	}
}

func TestTripleReaderDefaultsOnlyForMissingValues(t *testing.T) {
	tests := []struct {
		name, format, data string
		wantConf           float64
		wantSource         string
	}{
		{"jsonl keys absent", "jsonl", `{"head":"a","head_type":"DRUG","relation":"CAUSES","tail":"b","tail_type":"SYMPTOM"}`, 0.5, "unknown"},
		{"jsonl explicit zero", "jsonl", `{"head":"a","head_type":"DRUG","relation":"CAUSES","tail":"b","tail_type":"SYMPTOM","confidence":0,"source":""}`, 0, ""},
		{"csv columns absent", "csv", "head,head_type,relation,tail,tail_type\na,DRUG,CAUSES,b,SYMPTOM", 0.5, "unknown"},
		{"csv empty cells", "csv", "head,head_type,relation,tail,tail_type,confidence,source\na,DRUG,CAUSES,b,SYMPTOM,,", 0.5, ""},
		{"csv explicit zero", "csv", "head,head_type,relation,tail,tail_type,confidence,source\na,DRUG,CAUSES,b,SYMPTOM,0,", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTriples(tt.data, tt.format)
			if err != nil {
				t.Fatalf("ParseTriples: %v", err)
			}
			if len(got) != 1 || got[0].Confidence != tt.wantConf || got[0].Source != tt.wantSource {
				t.Errorf("got %+v, want confidence %v source %q", got, tt.wantConf, tt.wantSource)
			}
		})
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	for _, format := range []string{"xml", "", "CSV"} {
		got, err := ExportTriples(sampleTriples, format)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("%q: err = %v, want ErrUnsupportedFormat", format, err)
		}
		if got != "" {
			t.Errorf("%q: partial output %q", format, got)
		}
		if err != nil && !strings.Contains(err.Error(), format) {
			t.Errorf("error %q does not name the format", err)
		}
	}
}

func TestTripleReaderCSV(t *testing.T) {
	data := "tail,relation,head,head_type,tail_type,note\n" +
		"头痛,HAS_SYMPTOM,高血压,DISEASE,SYMPTOM,ignored\n" +
		",HAS_SYMPTOM,高血压,DISEASE,SYMPTOM,\n" +
		"乏力,CAUSES,二甲双胍,DRUG,SYMPTOM,\n"

	tr, err := NewTripleReader(strings.NewReader(data), "csv")
	if err != nil {
		t.Fatalf("NewTripleReader: %v", err)
	}

	var got []Triple
	var rowErrs []int
	for {
		triple, err := tr.Next()
		if err == io.EOF {
			break
		}
		var re *RowError
		if errors.As(err, &re) {
			rowErrs = append(rowErrs, re.Row)
			continue
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, triple)
	}

	if !reflect.DeepEqual(rowErrs, []int{2}) {
		t.Errorf("row errors = %v, want [2]", rowErrs)
	}
	want := []Triple{
		{Head: "高血压", HeadType: EntityDisease, Relation: RelHasSymptom, Tail: "头痛", TailType: EntitySymptom, Confidence: 0.5, Source: "unknown"},
		{Head: "二甲双胍", HeadType: EntityDrug, Relation: RelCauses, Tail: "乏力", TailType: EntitySymptom, Confidence: 0.5, Source: "unknown"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("triples = %+v, want %+v", got, want)
	}
}

func TestTripleReaderErrors(t *testing.T) {
	if _, err := NewTripleReader(strings.NewReader("a,b\n"), "csv"); err == nil {
		t.Error("expected error for header without required columns")
	}
	if _, err := NewTripleReader(strings.NewReader(""), "xml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
	_, err := ParseTriples("head,head_type,relation,tail,tail_type,confidence\n高血压,DISEASE,CAUSES,头痛,SYMPTOM,high\n", "csv")
	var re *RowError
	if !errors.As(err, &re) || re.Row != 1 {
		t.Errorf("err = %v, want RowError on row 1", err)
	}
}
