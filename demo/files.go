package demo

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/extraction"
)

// Output file names under <data_dir>/processed.
const (
	DatasetFile  = "medical_data.json"
	TriplesFile  = "triples.csv"
	EntitiesFile = "entities.csv"
)

// Paths lists the files written by Save.
type Paths struct {
	Dataset  string `json:"dataset"`
	Triples  string `json:"triples"`
	Entities string `json:"entities"`
}

// ProcessedDir returns <dataDir>/processed.
func ProcessedDir(dataDir string) string {
	return filepath.Join(dataDir, "processed")
}

// Save writes ds as JSON, its relations as a triples CSV and its entities
// as a flat CSV into <dataDir>/processed, creating directories as needed.
func Save(dataDir string, ds *Dataset) (*Paths, error) {
	dir := ProcessedDir(dataDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "raw"), 0755); err != nil {
		return nil, fmt.Errorf("creating raw dir: %w", err)
	}

	paths := &Paths{
		Dataset:  filepath.Join(dir, DatasetFile),
		Triples:  filepath.Join(dir, TriplesFile),
		Entities: filepath.Join(dir, EntitiesFile),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ds); err != nil {
		return nil, fmt.Errorf("encoding dataset: %w", err)
	}
	if err := os.WriteFile(paths.Dataset, buf.Bytes(), 0644); err != nil {
		return nil, err
	}

	triples, err := extraction.ExportTriples(ds.Relations, extraction.FormatCSV)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(paths.Triples, []byte(triples+"\n"), 0644); err != nil {
		return nil, err
	}

	entities, err := entitiesCSV(ds.Entities)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(paths.Entities, entities, 0644); err != nil {
		return nil, err
	}
	return paths, nil
}

// entitiesCSV writes one row per entity over the union of all attribute
// names. List attributes are joined with "|".
func entitiesCSV(entities []Entity) ([]byte, error) {
	keys := append([]string{"name", "type"}, propertyKeys(entities)...)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(keys); err != nil {
		return nil, err
	}
	for _, e := range entities {
		props := e.Properties()
		row := make([]string, len(keys))
		row[0], row[1] = e.EntityName(), string(e.EntityType())
		for i, k := range keys[2:] {
			row[i+2] = cellValue(props[k])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func cellValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, "|")
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// LoadDataset reads a dataset JSON file written by Save.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ds := &Dataset{}
	if err := json.Unmarshal(data, ds); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return ds, nil
}
