// Package demo holds the chronic-disease demo dataset and the importers
// that load datasets and triple files into a graph store.
package demo

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/extraction"
)

// Entity is one typed record of a dataset. Each entity type has its own
// fixed schema; fields outside it are kept in an extension map.
type Entity interface {
	EntityName() string
	EntityType() extraction.EntityType
	// Properties returns every attribute except name and type, ready to be
	// stored on a graph node.
	Properties() map[string]any
}

type Disease struct {
	Name          string
	Aliases       []string
	ICD10         string
	Definition    string
	Category      string
	RiskFactors   []string
	Complications []string
	Extra         map[string]any
}

func (d Disease) EntityName() string                { return d.Name }
func (d Disease) EntityType() extraction.EntityType { return extraction.EntityDisease }

func (d Disease) Properties() map[string]any {
	p := withExtra(d.Extra)
	putStrings(p, "aliases", d.Aliases)
	putString(p, "icd10", d.ICD10)
	putString(p, "definition", d.Definition)
	putString(p, "category", d.Category)
	putStrings(p, "risk_factors", d.RiskFactors)
	putStrings(p, "complications", d.Complications)
	return p
}

type Drug struct {
	Name              string
	Category          string
	Indications       []string
	Contraindications []string
	SideEffects       []string
	Extra             map[string]any
}

func (d Drug) EntityName() string                { return d.Name }
func (d Drug) EntityType() extraction.EntityType { return extraction.EntityDrug }

func (d Drug) Properties() map[string]any {
	p := withExtra(d.Extra)
	putString(p, "category", d.Category)
	putStrings(p, "indications", d.Indications)
	putStrings(p, "contraindications", d.Contraindications)
	putStrings(p, "side_effects", d.SideEffects)
	return p
}

type Symptom struct {
	Name  string
	Extra map[string]any
}

func (s Symptom) EntityName() string                { return s.Name }
func (s Symptom) EntityType() extraction.EntityType { return extraction.EntitySymptom }
func (s Symptom) Properties() map[string]any        { return withExtra(s.Extra) }

type Examination struct {
	Name        string
	NormalRange string
	Extra       map[string]any
}

func (e Examination) EntityName() string                { return e.Name }
func (e Examination) EntityType() extraction.EntityType { return extraction.EntityExamination }

func (e Examination) Properties() map[string]any {
	p := withExtra(e.Extra)
	putString(p, "normal_range", e.NormalRange)
	return p
}

// Other carries an entity of any type without a dedicated schema.
type Other struct {
	Name  string
	Type  extraction.EntityType
	Extra map[string]any
}

func (o Other) EntityName() string                { return o.Name }
func (o Other) EntityType() extraction.EntityType { return o.Type }
func (o Other) Properties() map[string]any        { return withExtra(o.Extra) }

// defaultEntityType labels records that carry no type.
const defaultEntityType extraction.EntityType = "Entity"

// encodeEntity flattens e into the on-disk object shape.
func encodeEntity(e Entity) map[string]any {
	m := e.Properties()
	m["name"] = e.EntityName()
	m["type"] = string(e.EntityType())
	return m
}

// decodeEntity picks the variant for m["type"] and moves unknown fields to
// the extension map.
func decodeEntity(m map[string]any) (Entity, error) {
	f := fields(m)
	name := f.str("name")
	if name == "" {
		return nil, fmt.Errorf("entity without name")
	}
	typ := extraction.EntityType(f.str("type"))
	if typ == "" {
		typ = defaultEntityType
	}

	var e Entity
	switch typ {
	case extraction.EntityDisease:
		e = Disease{
			Name:          name,
			Aliases:       f.strs("aliases"),
			ICD10:         f.str("icd10"),
			Definition:    f.str("definition"),
			Category:      f.str("category"),
			RiskFactors:   f.strs("risk_factors"),
			Complications: f.strs("complications"),
			Extra:         f.rest(),
		}
	case extraction.EntityDrug:
		e = Drug{
			Name:              name,
			Category:          f.str("category"),
			Indications:       f.strs("indications"),
			Contraindications: f.strs("contraindications"),
			SideEffects:       f.strs("side_effects"),
			Extra:             f.rest(),
		}
	case extraction.EntitySymptom:
		e = Symptom{Name: name, Extra: f.rest()}
	case extraction.EntityExamination:
		e = Examination{Name: name, NormalRange: f.str("normal_range"), Extra: f.rest()}
	default:
		e = Other{Name: name, Type: typ, Extra: f.rest()}
	}
	return e, nil
}

// fieldSet tracks which keys of a raw object have been consumed.
type fieldSet struct {
	m    map[string]any
	used map[string]bool
}

func fields(m map[string]any) *fieldSet {
	return &fieldSet{m: m, used: make(map[string]bool)}
}

func (f *fieldSet) str(key string) string {
	f.used[key] = true
	s, _ := f.m[key].(string)
	return s
}

func (f *fieldSet) strs(key string) []string {
	f.used[key] = true
	switch v := f.m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			out = append(out, fmt.Sprint(x))
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

func (f *fieldSet) rest() map[string]any {
	var out map[string]any
	for k, v := range f.m {
		if f.used[k] {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[k] = v
	}
	return out
}

func withExtra(extra map[string]any) map[string]any {
	p := make(map[string]any, len(extra)+4)
	for k, v := range extra {
		p[k] = v
	}
	return p
}

func putString(p map[string]any, key, v string) {
	if v != "" {
		p[key] = v
	}
}

func putStrings(p map[string]any, key string, v []string) {
	if len(v) > 0 {
		p[key] = v
	}
}

// Dataset is a set of typed entities plus gold relation triples.
type Dataset struct {
	Entities  []Entity
	Relations []extraction.Triple
}

type datasetJSON struct {
	Entities  []map[string]any    `json:"entities"`
	Relations []extraction.Triple `json:"relations"`
}

func (d Dataset) MarshalJSON() ([]byte, error) {
	out := datasetJSON{
		Entities:  make([]map[string]any, 0, len(d.Entities)),
		Relations: d.Relations,
	}
	if out.Relations == nil {
		out.Relations = []extraction.Triple{}
	}
	for _, e := range d.Entities {
		out.Entities = append(out.Entities, encodeEntity(e))
	}
	return json.Marshal(out)
}

func (d *Dataset) UnmarshalJSON(data []byte) error {
	var raw datasetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Entities = make([]Entity, 0, len(raw.Entities))
	for i, m := range raw.Entities {
		e, err := decodeEntity(m)
		if err != nil {
			return fmt.Errorf("entity %d: %w", i, err)
		}
		d.Entities = append(d.Entities, e)
	}
	d.Relations = raw.Relations
	return nil
}

// Counts returns the number of entities per type.
func (d Dataset) Counts() map[extraction.EntityType]int {
	out := make(map[extraction.EntityType]int)
	for _, e := range d.Entities {
		out[e.EntityType()]++
	}
	return out
}

// propertyKeys returns the sorted union of attribute names across entities.
func propertyKeys(entities []Entity) []string {
	seen := make(map[string]bool)
	for _, e := range entities {
		for k := range e.Properties() {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
