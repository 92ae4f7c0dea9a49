// Package metadata defines the fixed-shape descriptor stored alongside every
// indexed chunk.
package metadata

import (
	"encoding/json"
	"fmt"
)

// Meta describes where a chunk came from. Field order is stable in the
// serialized form.
type Meta struct {
	Source            string `json:"source"`
	ChunkNumber       int    `json:"chunk_number"`
	DocumentReference string `json:"document_reference"`
	DocumentTitle     string `json:"document_title"`
	ChunkTitle        string `json:"chunk_title"`
}

// Encode serializes m to the JSON string stored in the meta_json_string field.
func (m Meta) Encode() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}

// Decode parses a meta_json_string value.
func Decode(s string) (*Meta, error) {
	var m Meta
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &m, nil
}
