package wire

import "fmt"

// SequenceId correlates a serial-layer request to its solicited response.
type SequenceId = byte

// RequestId correlates an application-layer data request to its eventual
// confirmation.
type RequestId = byte

// Platform identifies the coordinator's hardware family, decoded from the
// Version response.
type Platform byte

const (
	PlatformAvr Platform = 0x05
	PlatformArm Platform = 0x07
)

// IsKnown reports whether p is one of the documented platforms.
func (p Platform) IsKnown() bool {
	return p == PlatformAvr || p == PlatformArm
}

func (p Platform) String() string {
	switch p {
	case PlatformAvr:
		return "avr"
	case PlatformArm:
		return "arm"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(p))
	}
}

// Version is the coordinator firmware version reported in the Version
// response.
type Version struct {
	Major byte
	Minor byte
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// readVersion decodes a Version; the wire order is minor byte then major
// byte, per the device firmware.
func readVersion(r *reader) (Version, error) {
	minor, err := r.u8()
	if err != nil {
		return Version{}, err
	}
	major, err := r.u8()
	if err != nil {
		return Version{}, err
	}
	return Version{Major: major, Minor: minor}, nil
}

// NetworkState is the coordinator's mesh membership, the low 2 bits of the
// DeviceState byte.
type NetworkState byte

const (
	NetworkOffline NetworkState = iota
	NetworkJoining
	NetworkConnected
	NetworkLeaving
)

func (n NetworkState) String() string {
	switch n {
	case NetworkOffline:
		return "offline"
	case NetworkJoining:
		return "joining"
	case NetworkConnected:
		return "connected"
	case NetworkLeaving:
		return "leaving"
	default:
		return fmt.Sprintf("unknown(%d)", byte(n))
	}
}

// DeviceState is the coordinator status bitfield, broadcast whenever a frame
// carrying one is received.
type DeviceState struct {
	NetworkState         NetworkState
	DataConfirm          bool
	DataIndication       bool
	ConfigurationChanged bool
	DataRequestFreeSlots bool
}

func decodeDeviceState(b byte) DeviceState {
	return DeviceState{
		NetworkState:         NetworkState(b & 0b11),
		DataConfirm:          b&0b100 != 0,
		DataIndication:       b&0b1000 != 0,
		ConfigurationChanged: b&0b10000 != 0,
		DataRequestFreeSlots: b&0b100000 != 0,
	}
}

// Endpoint, ProfileId and ClusterId are the addressing triple identifying a
// service on a device within the mesh application layer.
type Endpoint byte
type ProfileId uint16
type ClusterId uint16

// ShortAddress is a 16-bit network address; ExtendedAddress is the 64-bit
// IEEE address.
type ShortAddress uint16
type ExtendedAddress uint64

const (
	addrModeGroup         byte = 0x01
	addrModeShort         byte = 0x02
	addrModeExtended      byte = 0x03
	addrModeShortExtended byte = 0x04 // source-combined short+extended
)

// Destination is the tagged destination address used on the request side
// (ApsDataRequest) and echoed back on the confirm side (ApsDataConfirm).
type Destination struct {
	mode     byte
	group    ShortAddress
	short    ShortAddress
	extended ExtendedAddress
	endpoint Endpoint
}

// NewGroupDestination addresses a Zigbee group (no endpoint).
func NewGroupDestination(group ShortAddress) Destination {
	return Destination{mode: addrModeGroup, group: group}
}

// NewShortDestination addresses a single device by short address + endpoint.
func NewShortDestination(addr ShortAddress, endpoint Endpoint) Destination {
	return Destination{mode: addrModeShort, short: addr, endpoint: endpoint}
}

// NewExtendedDestination addresses a single device by extended (IEEE)
// address + endpoint.
func NewExtendedDestination(addr ExtendedAddress, endpoint Endpoint) Destination {
	return Destination{mode: addrModeExtended, extended: addr, endpoint: endpoint}
}

// Mode returns the address-mode tag byte for d.
func (d Destination) Mode() byte { return d.mode }

// Group returns the group address; only meaningful when Mode() is group.
func (d Destination) Group() ShortAddress { return d.group }

// Short returns the short address; only meaningful when Mode() is short.
func (d Destination) Short() ShortAddress { return d.short }

// Extended returns the extended address; only meaningful when Mode() is
// extended.
func (d Destination) Extended() ExtendedAddress { return d.extended }

// Endpoint returns the destination endpoint; zero and meaningless when
// Mode() is group.
func (d Destination) Endpoint() Endpoint { return d.endpoint }

func (d Destination) wireLen() uint16 {
	switch d.mode {
	case addrModeGroup:
		return 2
	case addrModeShort:
		return 3
	case addrModeExtended:
		return 9
	default:
		return 0
	}
}

func (d Destination) writeTo(w *writer) {
	w.u8(d.mode)
	switch d.mode {
	case addrModeGroup:
		w.u16(uint16(d.group))
	case addrModeShort:
		w.u16(uint16(d.short))
		w.u8(byte(d.endpoint))
	case addrModeExtended:
		w.u64(uint64(d.extended))
		w.u8(byte(d.endpoint))
	}
}

func readDestination(r *reader) (Destination, error) {
	mode, err := r.u8()
	if err != nil {
		return Destination{}, err
	}

	switch mode {
	case addrModeGroup:
		addr, err := r.u16()
		if err != nil {
			return Destination{}, err
		}
		return NewGroupDestination(ShortAddress(addr)), nil
	case addrModeShort:
		addr, err := r.u16()
		if err != nil {
			return Destination{}, err
		}
		ep, err := r.u8()
		if err != nil {
			return Destination{}, err
		}
		return NewShortDestination(ShortAddress(addr), Endpoint(ep)), nil
	case addrModeExtended:
		addr, err := r.u64()
		if err != nil {
			return Destination{}, err
		}
		ep, err := r.u8()
		if err != nil {
			return Destination{}, err
		}
		return NewExtendedDestination(ExtendedAddress(addr), Endpoint(ep)), nil
	default:
		return Destination{}, &Error{Kind: ErrUnsupportedAddressMode, AddressMode: mode}
	}
}

// DestinationAddress is the response-side destination address used in
// ApsDataIndication: the same three address modes as Destination, but
// without an embedded endpoint (the endpoint is a separate field on the
// indication).
type DestinationAddress struct {
	mode     byte
	group    ShortAddress
	short    ShortAddress
	extended ExtendedAddress
}

func (d DestinationAddress) Mode() byte               { return d.mode }
func (d DestinationAddress) Group() ShortAddress       { return d.group }
func (d DestinationAddress) Short() ShortAddress       { return d.short }
func (d DestinationAddress) Extended() ExtendedAddress { return d.extended }

func readDestinationAddress(r *reader) (DestinationAddress, error) {
	mode, err := r.u8()
	if err != nil {
		return DestinationAddress{}, err
	}

	switch mode {
	case addrModeGroup:
		addr, err := r.u16()
		if err != nil {
			return DestinationAddress{}, err
		}
		return DestinationAddress{mode: mode, group: ShortAddress(addr)}, nil
	case addrModeShort:
		addr, err := r.u16()
		if err != nil {
			return DestinationAddress{}, err
		}
		return DestinationAddress{mode: mode, short: ShortAddress(addr)}, nil
	case addrModeExtended:
		addr, err := r.u64()
		if err != nil {
			return DestinationAddress{}, err
		}
		return DestinationAddress{mode: mode, extended: ExtendedAddress(addr)}, nil
	default:
		return DestinationAddress{}, &Error{Kind: ErrUnsupportedAddressMode, AddressMode: mode}
	}
}

// SourceAddress is the source of an inbound indication. The protocol is
// only ever observed to use the combined short+extended source-address
// mode (0x04); any other tag is a parse failure for that frame, by design
// (see spec's source-ambiguity note) — no other mode is invented.
type SourceAddress struct {
	Short    ShortAddress
	Extended ExtendedAddress
}

func readSourceAddress(r *reader) (SourceAddress, error) {
	mode, err := r.u8()
	if err != nil {
		return SourceAddress{}, err
	}
	if mode != addrModeShortExtended {
		return SourceAddress{}, &Error{Kind: ErrUnsupportedAddressMode, AddressMode: mode}
	}

	short, err := r.u16()
	if err != nil {
		return SourceAddress{}, err
	}
	extended, err := r.u64()
	if err != nil {
		return SourceAddress{}, err
	}
	return SourceAddress{Short: ShortAddress(short), Extended: ExtendedAddress(extended)}, nil
}

// ApsDataRequest is an outbound application-layer data request.
type ApsDataRequest struct {
	Destination    Destination
	ProfileId      ProfileId
	ClusterId      ClusterId
	SourceEndpoint Endpoint
	Asdu           []byte
}

// ApsDataIndication is a decoded inbound application frame.
type ApsDataIndication struct {
	DestinationAddress DestinationAddress
	DestinationEndpoint Endpoint
	SourceAddress      SourceAddress
	SourceEndpoint     Endpoint
	ProfileId          ProfileId
	ClusterId          ClusterId
	Asdu               []byte
}

// ApsDataConfirm is the coordinator's local delivery confirmation for an
// outbound data request.
type ApsDataConfirm struct {
	Destination    Destination
	SourceEndpoint Endpoint
	Status         byte
}
