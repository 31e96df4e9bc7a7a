package codec

import "google.golang.org/protobuf/proto"

// Protobuf stores proto messages in their binary wire form. T is the
// message pointer type, e.g. *pb.Reading.
type Protobuf[T proto.Message] struct {
	new func() T
}

// NewProtobuf returns a codec that decodes into messages made by ctor.
// A nil ctor allocates new messages through the type's protoreflect
// descriptor, so NewProtobuf[*pb.Reading](nil) is valid.
func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	if ctor == nil {
		ctor = reflectNew[T]
	}
	return Protobuf[T]{new: ctor}
}

// reflectNew relies on generated messages answering ProtoReflect on a nil
// pointer with their type information.
func reflectNew[T proto.Message]() T {
	var zero T
	return zero.ProtoReflect().Type().New().Interface().(T)
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}

// Decode on a zero Protobuf (not built by NewProtobuf) falls back to
// reflectNew as well.
func (c Protobuf[T]) Decode(b []byte) (T, error) {
	mk := c.new
	if mk == nil {
		mk = reflectNew[T]
	}
	m := mk()
	err := proto.Unmarshal(b, m)
	return m, err
}
