package stream

import (
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
)

var jsonIter = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON returns a RecordDecoder backed by encoding/json.
func JSON[T any]() RecordDecoder[T] {
	return func(data []byte) (T, error) {
		var t T
		err := json.Unmarshal(data, &t)
		return t, err
	}
}

// JSONIter returns a RecordDecoder backed by json-iterator, configured to
// behave as encoding/json does.
func JSONIter[T any]() RecordDecoder[T] {
	return func(data []byte) (T, error) {
		var t T
		err := jsonIter.Unmarshal(data, &t)
		return t, err
	}
}

// Codec names a JSON implementation, as used in configuration.
type Codec string

const (
	CodecJSON     Codec = "json"
	CodecJSONIter Codec = "jsoniter"
)

// DecoderFor returns the RecordDecoder for the named codec. Unknown or
// empty names get encoding/json.
func DecoderFor[T any](c Codec) RecordDecoder[T] {
	if c == CodecJSONIter {
		return JSONIter[T]()
	}
	return JSON[T]()
}

// Marshal encodes v with the named codec.
func Marshal(c Codec, v any) ([]byte, error) {
	if c == CodecJSONIter {
		return jsonIter.Marshal(v)
	}
	return json.Marshal(v)
}
