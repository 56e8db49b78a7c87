// Package codec converts typed values to bytes and back.
//
// variantcache stores rendered output as raw bytes; codecs are used for the
// small structured records it persists on behalf of visitors (see package
// assignment) and by hosts that cache typed fragments next to pages.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
