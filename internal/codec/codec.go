// Package codec provides the Codec interface consumed by the storage tiers
// and the generic MessagePack pack/unpack primitive used by the wire codec.
package codec

// Codec encodes and decodes values for storage.
type Codec interface {
	// Marshal serializes v into bytes.
	Marshal(v any) ([]byte, error)
	// Unmarshal deserializes data into v (must be a pointer).
	Unmarshal(data []byte, v any) error
	// Name returns the codec identifier used for diagnostics.
	Name() string
}
