package wire

import "fmt"

// ErrorKind classifies a wire-codec failure. These are the "protocol"
// entries of the error taxonomy; transport and coordination failures are
// defined by their respective packages.
type ErrorKind int

const (
	// ErrUnsupportedCommand means a frame carried a command id outside the
	// fixed, documented set.
	ErrUnsupportedCommand ErrorKind = iota
	// ErrUnsupportedParameter means a (read|write)-parameter frame carried a
	// parameter id outside the fixed, documented set.
	ErrUnsupportedParameter
	// ErrInvalidParameter means a parameter id was recognised but its value
	// failed to decode; Inner carries the underlying decode error.
	ErrInvalidParameter
	// ErrUnsupportedAddressMode means an address-mode tag byte (destination
	// or source) fell outside the documented set for that field.
	ErrUnsupportedAddressMode
	// ErrShortBuffer means a frame ended before all the fields its command
	// id calls for had been read. The header's frame-length field is not
	// checked.
	ErrShortBuffer
	// ErrUnexpectedResponse means a solicited response decoded to a variant
	// other than the one the issuing request expected.
	ErrUnexpectedResponse
)

// Error is a wire-codec failure.
type Error struct {
	Kind ErrorKind

	// CommandID is set for ErrUnsupportedCommand / ErrUnexpectedResponse.
	CommandID byte
	// ParameterID is set for ErrUnsupportedParameter / ErrInvalidParameter.
	ParameterID byte
	// AddressMode is set for ErrUnsupportedAddressMode.
	AddressMode byte

	// Inner is the underlying error for ErrInvalidParameter and
	// ErrShortBuffer; nil otherwise.
	Inner error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrUnsupportedCommand:
		return fmt.Sprintf("wire: unsupported command id 0x%02x", e.CommandID)
	case ErrUnsupportedParameter:
		return fmt.Sprintf("wire: unsupported parameter id 0x%02x", e.ParameterID)
	case ErrInvalidParameter:
		return fmt.Sprintf("wire: invalid parameter 0x%02x: %v", e.ParameterID, e.Inner)
	case ErrUnsupportedAddressMode:
		return fmt.Sprintf("wire: unsupported address mode 0x%02x", e.AddressMode)
	case ErrShortBuffer:
		return fmt.Sprintf("wire: short buffer: %v", e.Inner)
	case ErrUnexpectedResponse:
		return fmt.Sprintf("wire: unexpected response command id 0x%02x", e.CommandID)
	default:
		return "wire: unknown error"
	}
}

func (e *Error) Unwrap() error { return e.Inner }
