// Package serialization provides the stream codecs used to persist cache entries.
package serialization

import (
	"bytes"
	"fmt"
	"io"
)

const (

	// JSONType represents the serialization type for JSON format.
	JSONType = "json"

	// GobType represents the serialization type for Gob format.
	GobType = "gob"
)

// Decoder and Encoder are the interface for serialization.
type Decoder interface {
	Decode(v any) error
}

// Encoder and Decoder are the interface for serialization.
type Encoder interface {
	Encode(v any) error
}

// Marshal encodes v into a fresh byte slice using newEncoder.
func Marshal(newEncoder func(io.Writer) Encoder, v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := newEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into v using newDecoder.
func Unmarshal(newDecoder func(io.Reader) Decoder, data []byte, v any) error {
	return newDecoder(bytes.NewReader(data)).Decode(v)
}

// Lookup returns the encoder and decoder constructors registered for name.
func Lookup(name string) (func(io.Writer) Encoder, func(io.Reader) Decoder, error) {
	switch name {
	case JSONType:
		return JsonEncoder, JsonDecoder, nil
	case GobType:
		return GobEncoder, GobDecoder, nil
	default:
		return nil, nil, fmt.Errorf("unsupported serialization type: %s", name)
	}
}
