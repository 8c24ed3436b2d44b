package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/llm"
)

// taggingPrompt asks the model for entity surface forms only. Offsets are
// recovered locally, models are unreliable at counting characters.
const taggingPrompt = `You are a named-entity tagger for Chinese clinical text.
Find every medical entity mentioned in the text below.

ENTITY TYPES (prefer these values):
- DISEASE      : a disease or diagnosis (e.g. 高血压, 2型糖尿病)
- SYMPTOM      : a symptom or sign (e.g. 头痛, 呼吸困难)
- DRUG         : a medication (e.g. 二甲双胍)
- EXAMINATION  : a test or imaging study (e.g. 心电图, 胸部CT)
- TREATMENT    : a non-drug therapy or procedure
- ANATOMY      : a body part or organ
- GENE         : a gene or mutation (e.g. EGFR)

Return a JSON object with exactly one key:
  "entities" : array of {"text": string, "type": string}

Rules:
- "text" must be copied verbatim from the input, character for character.
- Only include entities clearly supported by the text.
- If there are none, return an empty array.
- Do NOT include any text outside the JSON object.

Input: "患者确诊高血压，表现为头痛"
Output:
{"entities": [{"text": "高血压", "type": "DISEASE"}, {"text": "头痛", "type": "SYMPTOM"}]}

Text:
%s`

// TaggerDetector is the model pass, backed by a chat LLM.
type TaggerDetector struct {
	chat  llm.Provider
	model string
}

// NewTaggerDetector wraps chat as a Detector. model overrides the
// provider's configured model when non-empty.
func NewTaggerDetector(chat llm.Provider, model string) *TaggerDetector {
	return &TaggerDetector{chat: chat, model: model}
}

func (d *TaggerDetector) Source() Source { return SourceModel }

type taggedEntity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

type taggingResult struct {
	Entities []taggedEntity `json:"entities"`
}

// Detect asks the model for entities and locates every occurrence of each
// returned text. Entities whose text does not occur in the input are
// ignored. Type labels are carried as returned.
func (d *TaggerDetector) Detect(ctx context.Context, text string) ([]Mention, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	resp, err := d.chat.Chat(ctx, llm.ChatRequest{
		Model: d.model,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(taggingPrompt, text)},
		},
		Temperature:    0.0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return nil, fmt.Errorf("tagger llm chat: %w", err)
	}

	jsonStr, err := extractJSON(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing tagger result: %w", err)
	}
	var result taggingResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("unmarshalling tagger result: %w", err)
	}

	offsets := runeOffsets(text)
	seen := make(map[taggedEntity]bool)
	var out []Mention
	for _, e := range result.Entities {
		e.Text = strings.TrimSpace(e.Text)
		e.Type = strings.TrimSpace(e.Type)
		if e.Text == "" || seen[e] {
			continue
		}
		seen[e] = true
		for _, span := range findAll(text, e.Text, offsets) {
			out = append(out, Mention{
				Text:   e.Text,
				Type:   EntityType(e.Type),
				Start:  span[0],
				End:    span[1],
				Source: SourceModel,
			})
		}
	}
	return out, nil
}

// codeBlockRe strips markdown code fences from LLM output.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// extractJSON finds the JSON object in an LLM response.
func extractJSON(raw string) (string, error) {
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], nil
	}
	return "", fmt.Errorf("no JSON object found in response")
}
