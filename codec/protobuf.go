package codec

import "google.golang.org/protobuf/proto"

// Protobuf encodes generated message types. ctor returns an empty message to
// decode into, e.g. func() *pb.User { return new(pb.User) }.
type Protobuf[T proto.Message] struct {
	ctor func() T
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{ctor: ctor}
}

func (Protobuf[T]) Encode(m T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(m)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.ctor()
	if err := proto.Unmarshal(b, m); err != nil {
		var zero T
		return zero, err
	}
	return m, nil
}
