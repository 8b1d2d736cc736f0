package codec

import (
	"errors"

	"google.golang.org/protobuf/proto"
)

var errNilMessage = errors.New("codec: nil protobuf message")

// Protobuf encodes proto messages. ctor returns a fresh message for Decode,
// e.g. func() *pb.User { return &pb.User{} }.
type Protobuf[T proto.Message] struct {
	new func() T
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	if any(v) == nil || !v.ProtoReflect().IsValid() {
		return nil, errNilMessage
	}
	return proto.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
