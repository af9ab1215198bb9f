// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// json.go - JSON codec wrapping encoding/json; the inspect command prints
// decoded payloads with it.

package codec

import "encoding/json"

// JSON is a Codec using encoding/json; the CLI uses it to print decoded trees.
type JSON struct{}

// Marshal serializes v to indented JSON bytes.
func (JSON) Marshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// Unmarshal deserializes JSON bytes into v.
func (JSON) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Name returns "json".
func (JSON) Name() string { return "json" }
