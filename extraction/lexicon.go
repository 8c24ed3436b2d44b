package extraction

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dictionary is the closed term list for one entity type.
type Dictionary struct {
	Type  EntityType `yaml:"type" json:"type"`
	Terms []string   `yaml:"terms" json:"terms"`
}

// Compatibility lists the relations permitted from Head to Tail.
type Compatibility struct {
	Head      EntityType     `yaml:"head" json:"head"`
	Tail      EntityType     `yaml:"tail" json:"tail"`
	Relations []RelationType `yaml:"relations" json:"relations"`
}

// Pattern is the lexical evidence for one relation type. Keywords are
// matched against the between-text. Patterns are positional regular
// expressions with {type} placeholders; they are validated on load and
// kept for callers that want them.
type Pattern struct {
	Keywords []string `yaml:"keywords" json:"keywords"`
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`
}

// Lexicon bundles the read-only tables the recognizer and the relation
// extractor consult. It must not be modified once handed to them.
type Lexicon struct {
	Dictionaries  []Dictionary             `yaml:"dictionaries" json:"dictionaries"`
	Compatibility []Compatibility          `yaml:"compatibility" json:"compatibility"`
	Patterns      map[RelationType]Pattern `yaml:"patterns" json:"patterns"`
}

// DefaultLexicon returns a fresh copy of the built-in tables.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Dictionaries: []Dictionary{
			{Type: EntityDisease, Terms: []string{
				"肺癌", "糖尿病", "2型糖尿病", "高血压", "冠心病", "脑卒中",
				"慢性阻塞性肺疾病", "慢性肾病",
			}},
			{Type: EntitySymptom, Terms: []string{
				"咳嗽", "发热", "胸痛", "呼吸困难", "头痛", "头晕", "胸闷",
				"乏力", "多饮", "多尿", "水肿",
			}},
			{Type: EntityDrug, Terms: []string{
				"吉非替尼", "奥希替尼", "二甲双胍", "阿司匹林", "氨氯地平", "阿托伐他汀",
			}},
			{Type: EntityExamination, Terms: []string{
				"CT", "MRI", "X光", "血常规", "活检", "心电图", "空腹血糖",
			}},
			{Type: EntityAnatomy, Terms: []string{
				"肺", "心脏", "肝脏", "脑部", "胃",
			}},
		},
		Compatibility: []Compatibility{
			{EntityDisease, EntityDrug, []RelationType{RelTreatedBy, RelFirstLine, RelSecondLine}},
			{EntityDisease, EntitySymptom, []RelationType{RelHasSymptom, RelCommonSymptom}},
			{EntityDisease, EntityExamination, []RelationType{RelDiagnosedBy, RelConfirmedBy}},
			{EntityDrug, EntitySymptom, []RelationType{RelRelieves, RelCauses}},
			{EntityDrug, EntityDrug, []RelationType{RelInteractsWith, RelContraindicatedWith}},
			{EntityDisease, EntityDisease, []RelationType{RelComplication, RelDifferential}},
		},
		Patterns: map[RelationType]Pattern{
			RelTreatedBy: {
				// 建议 covers advice phrasing such as "建议氨氯地平治疗", where
				// the drug follows the keyword.
				Keywords: []string{"治疗", "用于", "适用于", "用药", "建议"},
				Patterns: []string{`{disease}.*?(?:治疗|用于).*?{drug}`, `{drug}.*?(?:治疗|用于).*?{disease}`},
			},
			RelHasSymptom: {
				Keywords: []string{"表现为", "症状", "出现"},
				Patterns: []string{`{disease}.*?(?:表现为|症状).*?{symptom}`, `{symptom}.*?(?:见于|是).*?{disease}.*?症状`},
			},
			RelDiagnosedBy: {
				Keywords: []string{"诊断", "检查", "通过"},
				Patterns: []string{`{disease}.*?(?:诊断|检查).*?{examination}`, `{examination}.*?(?:诊断|用于).*?{disease}`},
			},
			RelCauses: {
				Keywords: []string{"导致", "引起", "造成"},
				Patterns: []string{`{drug}.*?(?:导致|引起|造成).*?{symptom}`},
			},
			RelContraindicatedWith: {
				Keywords: []string{"禁忌", "禁用", "不能合用"},
				Patterns: []string{`{drug}.*?禁忌.*?{drug2}`, `{drug}.*?不能与.*?{drug2}.*?合用`},
			},
		},
	}
}

// LoadLexicon reads a YAML lexicon file. Sections left out of the file are
// taken from DefaultLexicon, so a file may override only the dictionaries.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lexicon: %w", err)
	}

	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidLexicon, path, err)
	}

	def := DefaultLexicon()
	if lex.Dictionaries == nil {
		lex.Dictionaries = def.Dictionaries
	}
	if lex.Compatibility == nil {
		lex.Compatibility = def.Compatibility
	}
	if lex.Patterns == nil {
		lex.Patterns = def.Patterns
	}

	if err := lex.Validate(); err != nil {
		return nil, err
	}
	return &lex, nil
}

var labelRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

var placeholderRe = regexp.MustCompile(`\{[a-z_][a-z0-9_]*\}`)

// Validate checks the tables for empty terms, malformed labels and
// uncompilable positional patterns.
func (l *Lexicon) Validate() error {
	for _, d := range l.Dictionaries {
		if d.Type == "" {
			return fmt.Errorf("%w: dictionary without type", ErrInvalidLexicon)
		}
		for i, term := range d.Terms {
			if strings.TrimSpace(term) == "" {
				return fmt.Errorf("%w: %s term %d is empty", ErrInvalidLexicon, d.Type, i)
			}
		}
	}

	for _, c := range l.Compatibility {
		if c.Head == "" || c.Tail == "" {
			return fmt.Errorf("%w: compatibility entry missing head or tail type", ErrInvalidLexicon)
		}
		for _, rel := range c.Relations {
			if !labelRe.MatchString(string(rel)) {
				return fmt.Errorf("%w: malformed relation label %q for (%s, %s)", ErrInvalidLexicon, rel, c.Head, c.Tail)
			}
		}
	}

	for rel, p := range l.Patterns {
		if !labelRe.MatchString(string(rel)) {
			return fmt.Errorf("%w: malformed relation label %q in patterns", ErrInvalidLexicon, rel)
		}
		for _, kw := range p.Keywords {
			if kw == "" {
				return fmt.Errorf("%w: empty keyword for %s", ErrInvalidLexicon, rel)
			}
		}
		for _, expr := range p.Patterns {
			if _, err := regexp.Compile(placeholderRe.ReplaceAllString(expr, "(.+?)")); err != nil {
				return fmt.Errorf("%w: pattern %q for %s: %v", ErrInvalidLexicon, expr, rel, err)
			}
		}
	}
	return nil
}

// RelationsFor returns the relations permitted from head to tail. The
// lookup is directional and returns nil for unlisted pairs.
func (l *Lexicon) RelationsFor(head, tail EntityType) []RelationType {
	for _, c := range l.Compatibility {
		if c.Head == head && c.Tail == tail {
			return c.Relations
		}
	}
	return nil
}

// Keywords returns the trigger keywords for rel, or nil when the relation
// has no pattern entry.
func (l *Lexicon) Keywords(rel RelationType) []string {
	return l.Patterns[rel].Keywords
}

// TermCount is the total number of dictionary terms.
func (l *Lexicon) TermCount() int {
	n := 0
	for _, d := range l.Dictionaries {
		n += len(d.Terms)
	}
	return n
}
