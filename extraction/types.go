package extraction

import "encoding/json"

// EntityType labels a mention. The closed set below covers the dictionary
// pass; labels produced by a statistical tagger are carried verbatim.
type EntityType string

// Entity type constants used during extraction and storage.
const (
	EntityDisease     EntityType = "DISEASE"
	EntitySymptom     EntityType = "SYMPTOM"
	EntityDrug        EntityType = "DRUG"
	EntityExamination EntityType = "EXAMINATION"
	EntityTreatment   EntityType = "TREATMENT"
	EntityAnatomy     EntityType = "ANATOMY"
	EntityGene        EntityType = "GENE"
)

// EntityTypes lists the closed set in canonical order.
var EntityTypes = []EntityType{
	EntityDisease, EntitySymptom, EntityDrug, EntityExamination,
	EntityTreatment, EntityAnatomy, EntityGene,
}

// Known reports whether t belongs to the closed entity type set.
func (t EntityType) Known() bool {
	for _, k := range EntityTypes {
		if k == t {
			return true
		}
	}
	return false
}

// RelationType is an open-ended relation label.
type RelationType string

// Relation type constants used during extraction and storage.
const (
	RelTreatedBy           RelationType = "TREATED_BY"
	RelFirstLine           RelationType = "FIRST_LINE"
	RelSecondLine          RelationType = "SECOND_LINE"
	RelHasSymptom          RelationType = "HAS_SYMPTOM"
	RelCommonSymptom       RelationType = "COMMON_SYMPTOM"
	RelDiagnosedBy         RelationType = "DIAGNOSED_BY"
	RelConfirmedBy         RelationType = "CONFIRMED_BY"
	RelRelieves            RelationType = "RELIEVES"
	RelCauses              RelationType = "CAUSES"
	RelInteractsWith       RelationType = "INTERACTS_WITH"
	RelContraindicatedWith RelationType = "CONTRAINDICATED_WITH"
	RelComplication        RelationType = "COMPLICATION"
	RelDifferential        RelationType = "DIFFERENTIAL"
)

// Source records which pass produced a mention or relation.
type Source string

const (
	SourceRule  Source = "rule"
	SourceModel Source = "model"
)

// Mention is a located, typed occurrence of an entity name. Start and End
// are half-open character (rune) offsets into the source text.
type Mention struct {
	Text   string     `json:"text"`
	Type   EntityType `json:"type"`
	Start  int        `json:"start"`
	End    int        `json:"end"`
	Source Source     `json:"source"`
}

// Contains reports whether m's span fully covers o's span.
func (m Mention) Contains(o Mention) bool {
	return m.Start <= o.Start && m.End >= o.End
}

// Overlaps reports whether the two spans share at least one character.
func (m Mention) Overlaps(o Mention) bool {
	return m.Start < o.End && o.Start < m.End
}

// MentionSet is ordered by Start ascending, then End descending, and holds
// no mention fully contained in another.
type MentionSet []Mention

// RelationCandidate is a proposed directed edge between two mentions. A
// nil Confidence means the producer gave none.
type RelationCandidate struct {
	Head       Mention
	Relation   RelationType
	Tail       Mention
	Confidence *float64
	Source     Source
}

// Score returns the candidate confidence, 0.5 when absent.
func (c RelationCandidate) Score() float64 {
	if c.Confidence == nil {
		return defaultConfidence
	}
	return *c.Confidence
}

// MarshalJSON flattens the candidate to the head/tail name shape used by
// the API and the export format.
func (c RelationCandidate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Head       string       `json:"head"`
		HeadType   EntityType   `json:"head_type"`
		Relation   RelationType `json:"relation"`
		Tail       string       `json:"tail"`
		TailType   EntityType   `json:"tail_type"`
		Confidence float64      `json:"confidence"`
		Source     Source       `json:"source"`
	}{c.Head.Text, c.Head.Type, c.Relation, c.Tail.Text, c.Tail.Type, c.Score(), c.Source})
}

// Triple is the storage-ready form of an accepted relation candidate.
// Field order matches the CSV interchange header.
type Triple struct {
	Head       string       `json:"head"`
	HeadType   EntityType   `json:"head_type"`
	Relation   RelationType `json:"relation"`
	Tail       string       `json:"tail"`
	TailType   EntityType   `json:"tail_type"`
	Confidence float64      `json:"confidence"`
	Source     string       `json:"source"`
}

// Result is the output of one GenerateFromText call.
type Result struct {
	Text      string              `json:"text"`
	Entities  MentionSet          `json:"entities"`
	Relations []RelationCandidate `json:"relations"`
	Triples   []Triple            `json:"triples"`
}

// BatchItem holds either the result for one batch input or the reason it
// failed. Index is the position of the input in the batch.
type BatchItem struct {
	Index  int     `json:"index"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// OK reports whether the item succeeded.
func (b BatchItem) OK() bool { return b.Error == "" && b.Result != nil }
