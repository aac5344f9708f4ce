package course

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed blob.schema.json
var blobSchemaSource string

var blobSchema = jsonschema.MustCompileString("blob.schema.json", blobSchemaSource)

// Blob is the suspend-data snapshot persisted through the session.
//
// The wire form is a JSON object with exactly the keys "position",
// "progress" and "interactions". When decoding, each key is optional and
// absent keys leave the corresponding field nil.
type Blob struct {
	Position     *int          `json:"position,omitempty"`
	Progress     Progress      `json:"progress,omitempty"`
	Interactions []Interaction `json:"interactions,omitempty"`
}

// wireBlob always emits all three keys.
type wireBlob struct {
	Position     int           `json:"position"`
	Progress     Progress      `json:"progress"`
	Interactions []Interaction `json:"interactions"`
}

// EncodeBlob serializes a full snapshot.
func EncodeBlob(position int, progress Progress, interactions []Interaction) (string, error) {
	if progress == nil {
		progress = Progress{}
	}
	if interactions == nil {
		interactions = []Interaction{}
	}
	data, err := json.Marshal(wireBlob{
		Position:     position,
		Progress:     progress,
		Interactions: interactions,
	})
	if err != nil {
		return "", fmt.Errorf("encode suspend data: %w", err)
	}
	return string(data), nil
}

// DecodeBlob parses suspend data, checking its shape first.
func DecodeBlob(raw string) (Blob, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Blob{}, fmt.Errorf("parse suspend data: %w", err)
	}
	if err := blobSchema.Validate(doc); err != nil {
		return Blob{}, fmt.Errorf("suspend data shape: %w", err)
	}

	var b Blob
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return Blob{}, fmt.Errorf("decode suspend data: %w", err)
	}
	return b, nil
}
