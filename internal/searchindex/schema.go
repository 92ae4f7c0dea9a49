// Package searchindex provisions and loads the document search index.
// Two backends share one schema: Qdrant for deployed use and SQLite for
// local, single-file indexes.
package searchindex

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Field names of the shared schema.
const (
	FieldID            = "id"
	FieldContent       = "content"
	FieldContentVector = "contentVector"
	FieldMetaJSON      = "meta_json_string"
	FieldFilepath      = "filepath"
	FieldTitle         = "title"
)

const (
	VectorProfileName   = "default-profile"
	VectorAlgorithmName = "default-algorithm"
	SemanticConfigName  = "azureml-default"
)

// FieldType is the storage type of a schema field.
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeVector FieldType = "float32[]"
)

// Field describes one index field.
type Field struct {
	Name          string    `json:"name"`
	Type          FieldType `json:"type"`
	Key           bool      `json:"key,omitempty"`
	Filterable    bool      `json:"filterable,omitempty"`
	Searchable    bool      `json:"searchable,omitempty"`
	Sortable      bool      `json:"sortable,omitempty"`
	Dimensions    int       `json:"dimensions,omitempty"`
	VectorProfile string    `json:"vectorProfile,omitempty"`
}

// VectorAlgorithm is an HNSW configuration.
type VectorAlgorithm struct {
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Metric         string `json:"metric"`
	M              int    `json:"m"`
	EfConstruction int    `json:"efConstruction"`
	EfSearch       int    `json:"efSearch"`
}

// VectorProfile binds vector fields to an algorithm.
type VectorProfile struct {
	Name      string `json:"name"`
	Algorithm string `json:"algorithm"`
}

// SemanticConfig names the title and content fields used for ranking.
type SemanticConfig struct {
	Name         string `json:"name"`
	TitleField   string `json:"titleField"`
	ContentField string `json:"contentField"`
}

// Schema is the full index definition.
type Schema struct {
	Fields     []Field           `json:"fields"`
	Algorithms []VectorAlgorithm `json:"algorithms"`
	Profiles   []VectorProfile   `json:"profiles"`
	Semantic   SemanticConfig    `json:"semantic"`
}

// DefaultSchema returns the document index schema for vectors of the given size.
func DefaultSchema(dimensions int) Schema {
	return Schema{
		Fields: []Field{
			{Name: FieldID, Type: FieldTypeString, Key: true, Filterable: true},
			{Name: FieldContent, Type: FieldTypeString, Searchable: true},
			{Name: FieldContentVector, Type: FieldTypeVector, Searchable: true, Dimensions: dimensions, VectorProfile: VectorProfileName},
			{Name: FieldMetaJSON, Type: FieldTypeString, Filterable: true},
			{Name: FieldFilepath, Type: FieldTypeString, Filterable: true},
			{Name: FieldTitle, Type: FieldTypeString, Searchable: true, Sortable: true},
		},
		Algorithms: []VectorAlgorithm{
			{Name: VectorAlgorithmName, Kind: "hnsw", Metric: "cosine", M: 4, EfConstruction: 400, EfSearch: 500},
		},
		Profiles: []VectorProfile{
			{Name: VectorProfileName, Algorithm: VectorAlgorithmName},
		},
		Semantic: SemanticConfig{
			Name:         SemanticConfigName,
			TitleField:   FieldTitle,
			ContentField: FieldContent,
		},
	}
}

// Dimensions returns the size of the content vector field.
func (s Schema) Dimensions() int {
	for _, f := range s.Fields {
		if f.Type == FieldTypeVector {
			return f.Dimensions
		}
	}
	return 0
}

// Algorithm returns the algorithm bound to the content vector profile.
func (s Schema) Algorithm() VectorAlgorithm {
	for _, p := range s.Profiles {
		if p.Name != VectorProfileName {
			continue
		}
		for _, a := range s.Algorithms {
			if a.Name == p.Algorithm {
				return a
			}
		}
	}
	return VectorAlgorithm{}
}

// Backend is a search index store.
type Backend interface {
	CreateIndex(ctx context.Context, name string) error
	Ingest(ctx context.Context, name string, records []Record) ([]Result, error)
	Search(ctx context.Context, name string, query Query) ([]Hit, error)
	Stats(ctx context.Context, name string) (*Stats, error)
	Health(ctx context.Context) error
	Close() error
}

var indexNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,127}$`)

// ValidateIndexName accepts lowercase letters, digits and dashes.
func ValidateIndexName(name string) error {
	if !indexNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIndexName, name)
	}
	return nil
}

// validateRecord checks a record against the schema before it is written.
func validateRecord(schema Schema, r Record) error {
	if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidKey, r.ID)
	}
	if strings.TrimSpace(r.Content) == "" {
		return ErrEmptyContent
	}
	if want := schema.Dimensions(); len(r.ContentVector) != want {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(r.ContentVector), want)
	}
	return nil
}
