// Package codec turns cached values into bytes and back. Codecs are used by
// the snapshot package to persist Cache.Extract output in a shared provider.
package codec

// Codec encodes and decodes values of type V.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
