package session

import (
	"encoding/json"
	"fmt"
)

// Codec converts attribute values to and from the opaque byte form
// stored in the attributes table. Encode then Decode must round-trip
// every value callers store.
type Codec interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// JSONCodec is the default attribute codec. Decoded values come back
// in json shapes (string, float64, bool, map[string]any, []any).
type JSONCodec struct{}

func (JSONCodec) Encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("session: failed to encode attribute: %w", err)
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte) (any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("session: failed to decode attribute: %w", err)
	}
	return value, nil
}
