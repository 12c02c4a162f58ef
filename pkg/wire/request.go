package wire

const headerLen = 5

// Request is a host-to-coordinator frame. Exactly one constructor below
// should be used to build a value; the zero Request is not meaningful.
type Request struct {
	kind CommandId

	parameterID ParameterId
	parameter   Parameter

	requestID      RequestId
	apsDataRequest ApsDataRequest
}

// NewVersionRequest asks the coordinator to report its firmware version and
// platform.
func NewVersionRequest() Request { return Request{kind: CommandVersion} }

// NewDeviceStateRequest asks the coordinator to report its current status
// bitfield.
func NewDeviceStateRequest() Request { return Request{kind: CommandDeviceState} }

// NewReadParameterRequest asks the coordinator for the current value of a
// configuration parameter.
func NewReadParameterRequest(id ParameterId) Request {
	return Request{kind: CommandReadParameter, parameterID: id}
}

// NewWriteParameterRequest asks the coordinator to set a configuration
// parameter.
func NewWriteParameterRequest(p Parameter) Request {
	return Request{kind: CommandWriteParameter, parameterID: p.ID, parameter: p}
}

// NewApsDataIndicationRequest asks the coordinator to deliver its next
// queued inbound application frame, if any.
func NewApsDataIndicationRequest() Request { return Request{kind: CommandApsDataIndication} }

// NewApsDataRequestRequest enqueues an outbound application frame, tagged
// with requestID so its eventual confirmation can be correlated back to
// this call.
func NewApsDataRequestRequest(requestID RequestId, req ApsDataRequest) Request {
	return Request{kind: CommandApsDataRequest, requestID: requestID, apsDataRequest: req}
}

// NewApsDataConfirmRequest asks the coordinator to deliver its next queued
// delivery confirmation, if any.
func NewApsDataConfirmRequest() Request { return Request{kind: CommandApsDataConfirm} }

// CommandID returns the command id this request will be sent under.
func (req Request) CommandID() CommandId { return req.kind }

func (req Request) payloadLen() (uint16, bool) {
	switch req.kind {
	case CommandVersion, CommandDeviceState:
		return 0, false
	case CommandReadParameter:
		return 1, true
	case CommandWriteParameter:
		return 1 + req.parameterID.wireLen(), true
	case CommandApsDataIndication:
		return 1, true
	case CommandApsDataRequest:
		// request id, flags, profile id, cluster id, source endpoint, asdu
		// length, tx options, radius: 11 fixed bytes around the variable
		// destination and asdu. Destination.wireLen does not count its own
		// leading address-mode byte, so that's a 12th fixed byte here.
		d := req.apsDataRequest.Destination
		return 12 + d.wireLen() + uint16(len(req.apsDataRequest.Asdu)), true
	case CommandApsDataConfirm:
		return 0, true
	default:
		return 0, false
	}
}

func (req Request) writePayload(w *writer) {
	switch req.kind {
	case CommandVersion, CommandDeviceState, CommandApsDataConfirm:
	case CommandReadParameter:
		w.u8(byte(req.parameterID))
	case CommandWriteParameter:
		w.u8(byte(req.parameterID))
		req.parameter.writeValue(w)
	case CommandApsDataIndication:
		w.u8(4)
	case CommandApsDataRequest:
		d := req.apsDataRequest
		w.u8(req.requestID)
		w.u8(0) // flags
		d.Destination.writeTo(w)
		w.u16(uint16(d.ProfileId))
		w.u16(uint16(d.ClusterId))
		w.u8(byte(d.SourceEndpoint))
		w.u16(uint16(len(d.Asdu)))
		w.bytes(d.Asdu)
		w.u8(0x04) // tx options: use APS acks
		w.u8(0)    // radius: infinite hops
	}
}

// EncodeFrame renders req as a complete wire frame (header, optional
// payload length, payload), ready for the framing layer to escape and
// checksum. sequenceID is the serial-layer correlation id this request will
// be tracked under.
func (req Request) EncodeFrame(sequenceID SequenceId) []byte {
	payloadLen, hasPayload := req.payloadLen()

	frameLen := uint16(headerLen)
	if hasPayload {
		frameLen += 2 + payloadLen
	}

	w := &writer{buf: make([]byte, 0, frameLen)}
	w.u8(byte(req.kind))
	w.u8(sequenceID)
	w.u8(0) // reserved
	w.u16(frameLen)

	if hasPayload {
		w.u16(payloadLen)
	}

	req.writePayload(w)

	return w.buf
}
