package wire

// CommandId identifies the variant of a Request or Response frame. The set
// is fixed by the device firmware; anything else is ErrUnsupportedCommand.
type CommandId byte

const (
	CommandVersion            CommandId = 0x0D
	CommandReadParameter      CommandId = 0x0A
	CommandWriteParameter     CommandId = 0x0B
	CommandDeviceState        CommandId = 0x07
	CommandDeviceStateChanged CommandId = 0x0E
	CommandApsDataIndication  CommandId = 0x17
	CommandApsDataRequest     CommandId = 0x12
	CommandApsDataConfirm     CommandId = 0x04
	CommandMacPoll            CommandId = 0x1C
)

// Solicited reports whether a response to id is the direct reply to a
// request the host issued (and therefore correlated by sequence id), as
// opposed to a spontaneous broadcast the coordinator emits unprompted.
//
// DeviceStateChanged is the only unsolicited variant; every other response
// id answers a request of the same id.
func (id CommandId) Solicited() bool {
	return id != CommandDeviceStateChanged
}

func (id CommandId) String() string {
	switch id {
	case CommandVersion:
		return "version"
	case CommandReadParameter:
		return "read-parameter"
	case CommandWriteParameter:
		return "write-parameter"
	case CommandDeviceState:
		return "device-state"
	case CommandDeviceStateChanged:
		return "device-state-changed"
	case CommandApsDataIndication:
		return "aps-data-indication"
	case CommandApsDataRequest:
		return "aps-data-request"
	case CommandApsDataConfirm:
		return "aps-data-confirm"
	case CommandMacPoll:
		return "mac-poll"
	default:
		return "unknown"
	}
}

func parseCommandId(b byte) (CommandId, error) {
	switch CommandId(b) {
	case CommandVersion, CommandReadParameter, CommandWriteParameter,
		CommandDeviceState, CommandDeviceStateChanged, CommandApsDataIndication,
		CommandApsDataRequest, CommandApsDataConfirm, CommandMacPoll:
		return CommandId(b), nil
	default:
		return 0, &Error{Kind: ErrUnsupportedCommand, CommandID: b}
	}
}
