package extraction

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Supported interchange formats.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

// CSVHeader is the fixed header row of the CSV interchange format.
var CSVHeader = []string{"head", "head_type", "relation", "tail", "tail_type", "confidence", "source"}

// ExportTriples serializes triples. CSV output is a header followed by one
// comma-joined line per triple, without quoting; fields containing commas
// are written as-is. JSONL output is one object per line. Lines are joined
// by "\n" with no trailing newline. Any other format fails with
// ErrUnsupportedFormat and an empty string.
func ExportTriples(triples []Triple, format string) (string, error) {
	switch format {
	case FormatCSV:
		lines := make([]string, 0, len(triples)+1)
		lines = append(lines, strings.Join(CSVHeader, ","))
		for _, t := range triples {
			lines = append(lines, strings.Join([]string{
				t.Head, string(t.HeadType), string(t.Relation),
				t.Tail, string(t.TailType), formatConfidence(t.Confidence), t.Source,
			}, ","))
		}
		return strings.Join(lines, "\n"), nil

	case FormatJSONL:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		for _, t := range triples {
			if err := enc.Encode(t); err != nil {
				return "", fmt.Errorf("encoding triple: %w", err)
			}
		}
		return strings.TrimSuffix(buf.String(), "\n"), nil

	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// formatConfidence renders a float the way the CSV consumers expect:
// shortest representation, always with a decimal point.
func formatConfidence(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// RowError reports a malformed record. Reading can continue past it.
type RowError struct {
	Row int // 1-based data row, header excluded
	Err error
}

func (e *RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

// TripleReader decodes triples one record at a time. Next returns a
// *RowError for a bad record and io.EOF at the end of input.
type TripleReader struct {
	format string
	row    int

	csv     *csv.Reader
	columns map[string]int

	lines *bufio.Scanner

	// Defaults applied when a record has no value for the field: a missing
	// JSON key, a missing CSV column or, for confidence, an empty cell.
	// Explicit zero confidence and empty source are kept.
	DefaultConfidence float64
	DefaultSource     string
}

// NewTripleReader prepares a reader for format. For CSV the header row is
// read immediately and columns are looked up by name, so column order is
// free and extra columns are ignored.
func NewTripleReader(r io.Reader, format string) (*TripleReader, error) {
	tr := &TripleReader{format: format, DefaultConfidence: defaultConfidence, DefaultSource: "unknown"}
	switch format {
	case FormatCSV:
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		header, err := cr.Read()
		if err != nil {
			return nil, fmt.Errorf("reading csv header: %w", err)
		}
		tr.columns = make(map[string]int, len(header))
		for i, name := range header {
			tr.columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
		}
		for _, required := range []string{"head", "head_type", "relation", "tail", "tail_type"} {
			if _, ok := tr.columns[required]; !ok {
				return nil, fmt.Errorf("csv header missing column %q", required)
			}
		}
		tr.csv = cr
	case FormatJSONL:
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		tr.lines = sc
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return tr, nil
}

// Next returns the next triple.
func (tr *TripleReader) Next() (Triple, error) {
	if tr.format == FormatCSV {
		return tr.nextCSV()
	}
	return tr.nextJSONL()
}

func (tr *TripleReader) nextCSV() (Triple, error) {
	rec, err := tr.csv.Read()
	if err == io.EOF {
		return Triple{}, io.EOF
	}
	tr.row++
	if err != nil {
		return Triple{}, &RowError{Row: tr.row, Err: err}
	}

	field := func(name string) string {
		i, ok := tr.columns[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	t := Triple{
		Head:     field("head"),
		HeadType: EntityType(field("head_type")),
		Relation: RelationType(field("relation")),
		Tail:     field("tail"),
		TailType: EntityType(field("tail_type")),
	}
	var conf *float64
	if c := field("confidence"); c != "" {
		f, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return Triple{}, &RowError{Row: tr.row, Err: fmt.Errorf("confidence %q: %w", c, err)}
		}
		conf = &f
	}
	var source *string
	if _, ok := tr.columns["source"]; ok {
		s := field("source")
		source = &s
	}
	return tr.finish(t, conf, source)
}

// jsonlTriple tells absent keys apart from zero values.
type jsonlTriple struct {
	Triple
	Confidence *float64 `json:"confidence"`
	Source     *string  `json:"source"`
}

func (tr *TripleReader) nextJSONL() (Triple, error) {
	for tr.lines.Scan() {
		line := strings.TrimSpace(tr.lines.Text())
		tr.row++
		if line == "" {
			continue
		}
		var jt jsonlTriple
		if err := json.Unmarshal([]byte(line), &jt); err != nil {
			return Triple{}, &RowError{Row: tr.row, Err: err}
		}
		return tr.finish(jt.Triple, jt.Confidence, jt.Source)
	}
	if err := tr.lines.Err(); err != nil {
		return Triple{}, err
	}
	return Triple{}, io.EOF
}

func (tr *TripleReader) finish(t Triple, conf *float64, source *string) (Triple, error) {
	if t.Head == "" || t.Tail == "" || t.Relation == "" || t.HeadType == "" || t.TailType == "" {
		return Triple{}, &RowError{Row: tr.row, Err: errors.New("missing required field")}
	}
	t.Confidence = tr.DefaultConfidence
	if conf != nil {
		t.Confidence = *conf
	}
	t.Source = tr.DefaultSource
	if source != nil {
		t.Source = *source
	}
	return t, nil
}

// ParseTriples decodes a whole CSV or JSONL document and fails on the
// first malformed record.
func ParseTriples(data, format string) ([]Triple, error) {
	tr, err := NewTripleReader(strings.NewReader(data), format)
	if err != nil {
		return nil, err
	}
	var out []Triple
	for {
		t, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
}
