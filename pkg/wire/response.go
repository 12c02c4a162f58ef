package wire

// Response is a decoded coordinator-to-host frame. Exactly one group of
// fields is meaningful, selected by Kind.
type Response struct {
	kind CommandId

	version  Version
	platform Platform

	parameter      Parameter
	writeParamID   ParameterId

	deviceState DeviceState

	indication ApsDataIndication
	requestID  RequestId
	confirm    ApsDataConfirm

	macPollAddress ShortAddress
}

// Kind returns the response's command id.
func (resp Response) Kind() CommandId { return resp.kind }

// Solicited reports whether resp answers a request the host issued, as
// opposed to an unprompted broadcast.
func (resp Response) Solicited() bool { return resp.kind.Solicited() }

// Version returns the decoded version and platform; only meaningful when
// Kind() == CommandVersion.
func (resp Response) Version() (Version, Platform) { return resp.version, resp.platform }

// Parameter returns the decoded parameter value; only meaningful when
// Kind() == CommandReadParameter.
func (resp Response) Parameter() Parameter { return resp.parameter }

// WrittenParameterID returns the parameter id the coordinator confirmed
// writing; only meaningful when Kind() == CommandWriteParameter.
func (resp Response) WrittenParameterID() ParameterId { return resp.writeParamID }

// Indication returns the decoded inbound application frame; only
// meaningful when Kind() == CommandApsDataIndication.
func (resp Response) Indication() ApsDataIndication { return resp.indication }

// RequestID returns the request id echoed back by an ApsDataRequest or
// ApsDataConfirm response.
func (resp Response) RequestID() RequestId { return resp.requestID }

// Confirm returns the decoded delivery confirmation; only meaningful when
// Kind() == CommandApsDataConfirm.
func (resp Response) Confirm() ApsDataConfirm { return resp.confirm }

// MacPollAddress returns the polling device's short address; only
// meaningful when Kind() == CommandMacPoll.
func (resp Response) MacPollAddress() ShortAddress { return resp.macPollAddress }

// DeviceState returns the status bitfield carried by this response, if
// any. DeviceState, DeviceStateChanged, ApsDataIndication and
// ApsDataRequest responses all carry one; the rest do not.
func (resp Response) DeviceState() (DeviceState, bool) {
	switch resp.kind {
	case CommandDeviceState, CommandDeviceStateChanged, CommandApsDataIndication,
		CommandApsDataRequest:
		return resp.deviceState, true
	default:
		return DeviceState{}, false
	}
}

// DecodeResponse parses a single complete frame body (post framing-layer
// checksum strip) into its sequence id and decoded Response.
func DecodeResponse(frame []byte) (SequenceId, Response, error) {
	r := newReader(frame)

	idByte, err := r.u8()
	if err != nil {
		return 0, Response{}, err
	}
	kind, err := parseCommandId(idByte)
	if err != nil {
		return 0, Response{}, err
	}

	sequenceID, err := r.u8()
	if err != nil {
		return 0, Response{}, err
	}

	if _, err := r.u8(); err != nil { // reserved
		return 0, Response{}, err
	}
	if _, err := r.u16(); err != nil { // frame length, redundant with len(frame)
		return 0, Response{}, err
	}

	resp, err := decodeResponseBody(kind, r)
	if err != nil {
		return 0, Response{}, err
	}
	return sequenceID, resp, nil
}

func decodeResponseBody(kind CommandId, r *reader) (Response, error) {
	switch kind {
	case CommandVersion:
		platform, err := r.u8()
		if err != nil {
			return Response{}, err
		}
		version, err := readVersion(r)
		if err != nil {
			return Response{}, err
		}
		return Response{kind: kind, platform: Platform(platform), version: version}, nil

	case CommandReadParameter:
		if _, err := r.u16(); err != nil { // payload length
			return Response{}, err
		}
		idByte, err := r.u8()
		if err != nil {
			return Response{}, err
		}
		paramID, err := parseParameterId(idByte)
		if err != nil {
			return Response{}, err
		}
		param, err := readParameterValue(paramID, r)
		if err != nil {
			return Response{}, err
		}
		return Response{kind: kind, parameter: param}, nil

	case CommandWriteParameter:
		if _, err := r.u16(); err != nil {
			return Response{}, err
		}
		idByte, err := r.u8()
		if err != nil {
			return Response{}, err
		}
		paramID, err := parseParameterId(idByte)
		if err != nil {
			return Response{}, err
		}
		return Response{kind: kind, writeParamID: paramID}, nil

	case CommandDeviceState:
		ds, err := r.u8()
		if err != nil {
			return Response{}, err
		}
		return Response{kind: kind, deviceState: decodeDeviceState(ds)}, nil

	case CommandDeviceStateChanged:
		ds, err := r.u8()
		if err != nil {
			return Response{}, err
		}
		return Response{kind: kind, deviceState: decodeDeviceState(ds)}, nil

	case CommandApsDataIndication:
		if _, err := r.u16(); err != nil {
			return Response{}, err
		}
		dsByte, err := r.u8()
		if err != nil {
			return Response{}, err
		}
		destAddr, err := readDestinationAddress(r)
		if err != nil {
			return Response{}, err
		}
		destEndpoint, err := r.u8()
		if err != nil {
			return Response{}, err
		}
		srcAddr, err := readSourceAddress(r)
		if err != nil {
			return Response{}, err
		}
		srcEndpoint, err := r.u8()
		if err != nil {
			return Response{}, err
		}
		profileID, err := r.u16()
		if err != nil {
			return Response{}, err
		}
		clusterID, err := r.u16()
		if err != nil {
			return Response{}, err
		}
		asduLen, err := r.u16()
		if err != nil {
			return Response{}, err
		}
		asdu, err := r.take(int(asduLen))
		if err != nil {
			return Response{}, err
		}

		return Response{
			kind:        kind,
			deviceState: decodeDeviceState(dsByte),
			indication: ApsDataIndication{
				DestinationAddress:  destAddr,
				DestinationEndpoint: Endpoint(destEndpoint),
				SourceAddress:       srcAddr,
				SourceEndpoint:      Endpoint(srcEndpoint),
				ProfileId:           ProfileId(profileID),
				ClusterId:           ClusterId(clusterID),
				Asdu:                append([]byte(nil), asdu...),
			},
		}, nil

	case CommandApsDataRequest:
		if _, err := r.u16(); err != nil {
			return Response{}, err
		}
		dsByte, err := r.u8()
		if err != nil {
			return Response{}, err
		}
		requestID, err := r.u8()
		if err != nil {
			return Response{}, err
		}
		return Response{kind: kind, deviceState: decodeDeviceState(dsByte), requestID: requestID}, nil

	case CommandMacPoll:
		if _, err := r.u16(); err != nil {
			return Response{}, err
		}
		if _, err := r.u8(); err != nil { // undocumented enum byte
			return Response{}, err
		}
		addr, err := r.u16()
		if err != nil {
			return Response{}, err
		}
		return Response{kind: kind, macPollAddress: ShortAddress(addr)}, nil

	case CommandApsDataConfirm:
		if _, err := r.u16(); err != nil {
			return Response{}, err
		}
		dsByte, err := r.u8()
		if err != nil {
			return Response{}, err
		}
		requestID, err := r.u8()
		if err != nil {
			return Response{}, err
		}
		dest, err := readDestination(r)
		if err != nil {
			return Response{}, err
		}
		srcEndpoint, err := r.u8()
		if err != nil {
			return Response{}, err
		}
		status, err := r.u8()
		if err != nil {
			return Response{}, err
		}

		return Response{
			kind:        kind,
			deviceState: decodeDeviceState(dsByte),
			requestID:   requestID,
			confirm: ApsDataConfirm{
				Destination:    dest,
				SourceEndpoint: Endpoint(srcEndpoint),
				Status:         status,
			},
		}, nil

	default:
		return Response{}, &Error{Kind: ErrUnsupportedCommand, CommandID: byte(kind)}
	}
}
