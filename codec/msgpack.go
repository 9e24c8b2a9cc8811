package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack uses vmihailenco/msgpack. The zero value is ready to use.
// Struct fields are matched by `msgpack` tags, falling back to field names.
type Msgpack[V any] struct{}

var _ Codec[struct{}] = Msgpack[struct{}]{}

func (Msgpack[V]) Encode(v V) ([]byte, error) { return msgpack.Marshal(v) }

func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}
