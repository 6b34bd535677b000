package serialization

import (
	"encoding/json"
	"io"
)

// Json streams values as JSON. HTML escaping is disabled so sprite and
// API URLs are persisted verbatim.
type Json struct {
	dec *json.Decoder
	enc *json.Encoder
}

// Decode reads the next JSON value into v.
func (j *Json) Decode(v any) error {
	return j.dec.Decode(v)
}

// Encode writes v as a single JSON document.
func (j *Json) Encode(v any) error {
	return j.enc.Encode(v)
}

// JsonDecoder returns a Decoder reading JSON from r.
func JsonDecoder(r io.Reader) Decoder {
	return &Json{dec: json.NewDecoder(r)}
}

// JsonEncoder returns an Encoder writing JSON to w.
func JsonEncoder(w io.Writer) Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Json{enc: enc}
}
