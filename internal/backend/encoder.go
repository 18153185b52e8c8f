package backend

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

// Encoder defines the interface for API payload serialization.
type Encoder interface {
	Encode(any) ([]byte, error)
	Decode([]byte, any) error
}

// JSONEncoder is the default Encoder. It uses the standard library for
// encoding and sonic for decoding, which dominates on the large alert pages.
type JSONEncoder struct{}

func (*JSONEncoder) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (*JSONEncoder) Decode(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}
