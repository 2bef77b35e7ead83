// Package codec names the encode and decode surface the document codecs of
// this module share.
package codec

import (
	"context"
	"io"
)

type Encoder interface {
	Encode(v any) error
}

type Decoder interface {
	Decode(v any) error
}

type Marshaler interface {
	Marshal(v any) ([]byte, error)
	NewEncoder(w io.Writer) Encoder
}

type Unmarshaler interface {
	Unmarshal(data []byte, v any) error
	NewDecoder(r io.Reader) Decoder
}

// ContextUnmarshaler is implemented by codecs whose decoding may block on I/O,
// such as loading referenced entities.
type ContextUnmarshaler interface {
	Unmarshaler
	UnmarshalContext(ctx context.Context, data []byte, v any) error
}

type Codec interface {
	Marshaler
	ContextUnmarshaler
	MarshalContext(ctx context.Context, v any) ([]byte, error)
}
