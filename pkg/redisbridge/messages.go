package redisbridge

import (
	"fmt"

	"github.com/librescoot/zigbee-coordinator/pkg/wire"
)

// destinationDTO is the CBOR wire shape of a wire.Destination, tagged by
// mode the same way the protocol itself tags it. Only the fields relevant
// to mode are populated.
type destinationDTO struct {
	Mode     byte   `cbor:"mode"`
	Group    uint16 `cbor:"group,omitempty"`
	Short    uint16 `cbor:"short,omitempty"`
	Extended uint64 `cbor:"extended,omitempty"`
	Endpoint byte   `cbor:"endpoint,omitempty"`
}

func encodeDestination(d wire.Destination) destinationDTO {
	dto := destinationDTO{Mode: d.Mode(), Endpoint: byte(d.Endpoint())}
	switch d.Mode() {
	case 0x01:
		dto.Group = uint16(d.Group())
	case 0x02:
		dto.Short = uint16(d.Short())
	case 0x03:
		dto.Extended = uint64(d.Extended())
	}
	return dto
}

func encodeDestinationAddress(d wire.DestinationAddress) destinationDTO {
	dto := destinationDTO{Mode: d.Mode()}
	switch d.Mode() {
	case 0x01:
		dto.Group = uint16(d.Group())
	case 0x02:
		dto.Short = uint16(d.Short())
	case 0x03:
		dto.Extended = uint64(d.Extended())
	}
	return dto
}

// decode builds a wire.Destination from a submitted DTO,
// validating mode against the three request-side address modes.
func (d destinationDTO) decode() (wire.Destination, error) {
	switch d.Mode {
	case 0x01:
		return wire.NewGroupDestination(wire.ShortAddress(d.Group)), nil
	case 0x02:
		return wire.NewShortDestination(wire.ShortAddress(d.Short), wire.Endpoint(d.Endpoint)), nil
	case 0x03:
		return wire.NewExtendedDestination(wire.ExtendedAddress(d.Extended), wire.Endpoint(d.Endpoint)), nil
	default:
		return wire.Destination{}, fmt.Errorf("redisbridge: unsupported destination mode 0x%02x", d.Mode)
	}
}

// dataRequestDTO is the CBOR shape a producer pushes onto KeyDataRequests.
type dataRequestDTO struct {
	Destination    destinationDTO `cbor:"destination"`
	ProfileID      uint16         `cbor:"profile_id"`
	ClusterID      uint16         `cbor:"cluster_id"`
	SourceEndpoint byte           `cbor:"source_endpoint"`
	Asdu           []byte         `cbor:"asdu"`
}

func (m dataRequestDTO) decode() (wire.ApsDataRequest, error) {
	dest, err := m.Destination.decode()
	if err != nil {
		return wire.ApsDataRequest{}, err
	}
	return wire.ApsDataRequest{
		Destination:    dest,
		ProfileId:      wire.ProfileId(m.ProfileID),
		ClusterId:      wire.ClusterId(m.ClusterID),
		SourceEndpoint: wire.Endpoint(m.SourceEndpoint),
		Asdu:           m.Asdu,
	}, nil
}

// confirmDTO is the CBOR shape published to KeyDataConfirms once a
// submission's delivery confirmation, or its failure, is known.
type confirmDTO struct {
	Destination    destinationDTO `cbor:"destination"`
	SourceEndpoint byte           `cbor:"source_endpoint"`
	Status         byte           `cbor:"status"`
	Error          string         `cbor:"error,omitempty"`
}

func encodeConfirm(c wire.ApsDataConfirm) confirmDTO {
	return confirmDTO{
		Destination:    encodeDestination(c.Destination),
		SourceEndpoint: byte(c.SourceEndpoint),
		Status:         c.Status,
	}
}

// indicationDTO is the CBOR shape published to KeyIndications for every
// inbound application frame.
type indicationDTO struct {
	DestinationAddress  destinationDTO `cbor:"destination_address"`
	DestinationEndpoint byte           `cbor:"destination_endpoint"`
	SourceShort         uint16         `cbor:"source_short"`
	SourceExtended      uint64         `cbor:"source_extended"`
	SourceEndpoint      byte           `cbor:"source_endpoint"`
	ProfileID           uint16         `cbor:"profile_id"`
	ClusterID           uint16         `cbor:"cluster_id"`
	Asdu                []byte         `cbor:"asdu"`
}

func encodeIndication(ind wire.ApsDataIndication) indicationDTO {
	return indicationDTO{
		DestinationAddress:  encodeDestinationAddress(ind.DestinationAddress),
		DestinationEndpoint: byte(ind.DestinationEndpoint),
		SourceShort:         uint16(ind.SourceAddress.Short),
		SourceExtended:      uint64(ind.SourceAddress.Extended),
		SourceEndpoint:      byte(ind.SourceEndpoint),
		ProfileID:           uint16(ind.ProfileId),
		ClusterID:           uint16(ind.ClusterId),
		Asdu:                ind.Asdu,
	}
}

// deviceStateDTO is the CBOR shape published to KeyDeviceState on every
// broadcast.
type deviceStateDTO struct {
	NetworkState         string `cbor:"network_state"`
	DataConfirm          bool   `cbor:"data_confirm"`
	DataIndication       bool   `cbor:"data_indication"`
	ConfigurationChanged bool   `cbor:"configuration_changed"`
	DataRequestFreeSlots bool   `cbor:"data_request_free_slots"`
}

func encodeDeviceState(ds wire.DeviceState) deviceStateDTO {
	return deviceStateDTO{
		NetworkState:         ds.NetworkState.String(),
		DataConfirm:          ds.DataConfirm,
		DataIndication:       ds.DataIndication,
		ConfigurationChanged: ds.ConfigurationChanged,
		DataRequestFreeSlots: ds.DataRequestFreeSlots,
	}
}

// macPollDTO is the CBOR shape published to KeyMacPolls.
type macPollDTO struct {
	ShortAddress uint16 `cbor:"short_address"`
}

func encodeMacPoll(addr wire.ShortAddress) macPollDTO {
	return macPollDTO{ShortAddress: uint16(addr)}
}
