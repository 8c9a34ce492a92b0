package converter

// Payload is the serialized form of a value as stored by a backend.
type Payload []byte

type Converter interface {
	// To converts the given value to a payload
	To(v any) (Payload, error)

	// From converts the given payload to a value
	From(data Payload, v any) error
}

var DefaultConverter Converter = &jsonConverter{}
