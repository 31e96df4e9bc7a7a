// Package codec converts typed values to and from the bytes held by the
// remote store. The store never interprets values; a decode failure on read
// is reported to the caller as a serialization error.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Func builds a Codec from a pair of functions, e.g. to reuse an existing
// marshaller for a legacy value layout. Both functions are required.
type Func[V any] struct {
	EncodeFunc func(V) ([]byte, error)
	DecodeFunc func([]byte) (V, error)
}

var _ Codec[struct{}] = Func[struct{}]{}

func (f Func[V]) Encode(v V) ([]byte, error) { return f.EncodeFunc(v) }

func (f Func[V]) Decode(b []byte) (V, error) { return f.DecodeFunc(b) }
