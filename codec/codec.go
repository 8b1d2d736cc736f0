// Package codec turns cached values into the opaque bytes a provider stores.
//
// A Codec is also the serializability check: cachegate encodes every value
// at the call boundary, before anything is dispatched, and a value the codec
// cannot encode is rejected there.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
