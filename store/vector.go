package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// NameVectorDim is the dimension of entity name vectors.
const NameVectorDim = 64

// SimilarEntity is an entity whose name is close to a query name.
type SimilarEntity struct {
	Entity
	Score float64 `json:"score"`
}

// NameVector hashes the character unigrams and bigrams of name into a
// unit-length vector. Names sharing many characters end up close in L2.
func NameVector(name string) []float32 {
	v := make([]float32, NameVectorDim)
	runes := []rune(strings.ToLower(strings.TrimSpace(name)))
	add := func(gram string) {
		h := fnv.New32a()
		h.Write([]byte(gram))
		v[h.Sum32()%NameVectorDim]++
	}
	for i, r := range runes {
		add(string(r))
		if i+1 < len(runes) {
			add(string(runes[i : i+2]))
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// SimilarEntities returns the k entities whose names are nearest to name.
// This is a lookup aid for callers; extraction never links entities.
func (s *Store) SimilarEntities(ctx context.Context, name string, k int) ([]SimilarEntity, error) {
	if k <= 0 {
		k = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.entity_id, v.distance, e.name, e.entity_type
		FROM vec_entities v
		JOIN entities e ON e.id = v.entity_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(NameVector(name)), k)
	if err != nil {
		return nil, fmt.Errorf("similar entities: %w", err)
	}
	defer rows.Close()

	results := make([]SimilarEntity, 0, k)
	for rows.Next() {
		var r SimilarEntity
		var distance float64
		if err := rows.Scan(&r.ID, &distance, &r.Name, &r.Type); err != nil {
			return nil, err
		}
		// Unit vectors: cosine = 1 - d^2/2.
		r.Score = 1.0 - distance*distance/2
		results = append(results, r)
	}
	return results, rows.Err()
}
