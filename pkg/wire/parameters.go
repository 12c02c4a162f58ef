package wire

// ParameterId identifies a coordinator configuration parameter readable via
// CommandReadParameter and writable via CommandWriteParameter. The set is
// fixed by the device firmware.
type ParameterId byte

const (
	ParameterMacAddress               ParameterId = 0x01
	ParameterNwkPanId                 ParameterId = 0x05
	ParameterNwkAddress               ParameterId = 0x07
	ParameterNwkExtendedPanId         ParameterId = 0x08
	ParameterApsDesignatedCoordinator ParameterId = 0x09
	ParameterChannelMask              ParameterId = 0x0A
	ParameterApsExtendedPanId         ParameterId = 0x0B
	ParameterTrustCenterAddress       ParameterId = 0x0E
	ParameterSecurityMode             ParameterId = 0x10
	ParameterNetworkKey               ParameterId = 0x18
	ParameterCurrentChannel           ParameterId = 0x1C
	ParameterProtocolVersion          ParameterId = 0x22
	ParameterNwkUpdateId              ParameterId = 0x24
	ParameterWatchdogTtl              ParameterId = 0x26
)

func (id ParameterId) String() string {
	switch id {
	case ParameterMacAddress:
		return "mac-address"
	case ParameterNwkPanId:
		return "nwk-pan-id"
	case ParameterNwkAddress:
		return "nwk-address"
	case ParameterNwkExtendedPanId:
		return "nwk-extended-pan-id"
	case ParameterApsDesignatedCoordinator:
		return "aps-designated-coordinator"
	case ParameterChannelMask:
		return "channel-mask"
	case ParameterApsExtendedPanId:
		return "aps-extended-pan-id"
	case ParameterTrustCenterAddress:
		return "trust-center-address"
	case ParameterSecurityMode:
		return "security-mode"
	case ParameterNetworkKey:
		return "network-key"
	case ParameterCurrentChannel:
		return "current-channel"
	case ParameterProtocolVersion:
		return "protocol-version"
	case ParameterNwkUpdateId:
		return "nwk-update-id"
	case ParameterWatchdogTtl:
		return "watchdog-ttl"
	default:
		return "unknown"
	}
}

func parseParameterId(b byte) (ParameterId, error) {
	switch ParameterId(b) {
	case ParameterMacAddress, ParameterNwkPanId, ParameterNwkAddress,
		ParameterNwkExtendedPanId, ParameterApsDesignatedCoordinator, ParameterChannelMask,
		ParameterApsExtendedPanId, ParameterTrustCenterAddress, ParameterSecurityMode,
		ParameterNetworkKey, ParameterCurrentChannel, ParameterProtocolVersion,
		ParameterNwkUpdateId, ParameterWatchdogTtl:
		return ParameterId(b), nil
	default:
		return 0, &Error{Kind: ErrUnsupportedParameter, ParameterID: b}
	}
}

// wireLen returns the fixed encoded width of id's value, independent of any
// particular Parameter instance.
func (id ParameterId) wireLen() uint16 {
	switch id {
	case ParameterMacAddress, ParameterNwkExtendedPanId, ParameterApsExtendedPanId,
		ParameterTrustCenterAddress:
		return 8
	case ParameterChannelMask, ParameterWatchdogTtl:
		return 4
	case ParameterNwkPanId, ParameterNwkAddress, ParameterProtocolVersion:
		return 2
	case ParameterApsDesignatedCoordinator, ParameterSecurityMode, ParameterNetworkKey,
		ParameterCurrentChannel, ParameterNwkUpdateId:
		return 1
	default:
		return 0
	}
}

// Parameter is a decoded configuration value, tagged by its ParameterId.
// Exactly one of the typed fields is meaningful, selected by ID.
type Parameter struct {
	ID ParameterId

	U8  byte
	U16 uint16
	U32 uint32
	U64 uint64
}

// NewU8Parameter, NewU16Parameter, NewU32Parameter and NewU64Parameter build
// a Parameter for writing; callers are responsible for matching the width
// ParameterId.wireLen expects.
func NewU8Parameter(id ParameterId, v byte) Parameter    { return Parameter{ID: id, U8: v} }
func NewU16Parameter(id ParameterId, v uint16) Parameter { return Parameter{ID: id, U16: v} }
func NewU32Parameter(id ParameterId, v uint32) Parameter { return Parameter{ID: id, U32: v} }
func NewU64Parameter(id ParameterId, v uint64) Parameter { return Parameter{ID: id, U64: v} }

func (p Parameter) writeValue(w *writer) {
	switch p.ID.wireLen() {
	case 1:
		w.u8(p.U8)
	case 2:
		w.u16(p.U16)
	case 4:
		w.u32(p.U32)
	case 8:
		w.u64(p.U64)
	}
}

func readParameterValue(id ParameterId, r *reader) (Parameter, error) {
	var (
		p   = Parameter{ID: id}
		err error
	)

	switch id.wireLen() {
	case 1:
		p.U8, err = r.u8()
	case 2:
		p.U16, err = r.u16()
	case 4:
		p.U32, err = r.u32()
	case 8:
		p.U64, err = r.u64()
	}

	if err != nil {
		return Parameter{}, &Error{Kind: ErrInvalidParameter, ParameterID: byte(id), Inner: err}
	}
	return p, nil
}
