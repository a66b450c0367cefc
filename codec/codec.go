// Package codec serializes envelopes for the transport layer.
package codec

// Codec encodes outgoing envelopes and decodes reply bodies.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	ContentType() string
}

// Default is the codec used when a client is not given one.
func Default() Codec {
	return &JSONCodec{}
}
