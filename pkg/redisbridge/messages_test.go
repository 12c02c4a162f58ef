package redisbridge

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librescoot/zigbee-coordinator/pkg/wire"
)

func TestDataRequestDTORoundTripsShortDestination(t *testing.T) {
	req := wire.ApsDataRequest{
		Destination:    wire.NewShortDestination(0x0159, 1),
		ProfileId:      0x0104,
		ClusterId:      0x0006,
		SourceEndpoint: 1,
		Asdu:           []byte{1, 0, 0},
	}

	dto := dataRequestDTO{
		Destination:    encodeDestination(req.Destination),
		ProfileID:      uint16(req.ProfileId),
		ClusterID:      uint16(req.ClusterId),
		SourceEndpoint: byte(req.SourceEndpoint),
		Asdu:           req.Asdu,
	}

	encoded, err := cbor.Marshal(dto)
	require.NoError(t, err)

	var decoded dataRequestDTO
	require.NoError(t, cbor.Unmarshal(encoded, &decoded))

	got, err := decoded.decode()
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestDataRequestDTORoundTripsGroupAndExtendedDestinations(t *testing.T) {
	cases := []wire.Destination{
		wire.NewGroupDestination(0x4201),
		wire.NewExtendedDestination(0x00124b0001aabbcc, 3),
	}

	for _, dest := range cases {
		dto := encodeDestination(dest)
		back, err := dto.decode()
		require.NoError(t, err)
		assert.Equal(t, dest, back)
	}
}

func TestDestinationDTORejectsUnknownMode(t *testing.T) {
	dto := destinationDTO{Mode: 0x7F}
	_, err := dto.decode()
	assert.Error(t, err)
}

func TestConfirmDTORoundTrip(t *testing.T) {
	confirm := wire.ApsDataConfirm{
		Destination:    wire.NewShortDestination(0x0159, 1),
		SourceEndpoint: 1,
		Status:         0x00,
	}

	dto := encodeConfirm(confirm)
	encoded, err := cbor.Marshal(dto)
	require.NoError(t, err)

	var decoded confirmDTO
	require.NoError(t, cbor.Unmarshal(encoded, &decoded))
	assert.Equal(t, byte(0x00), decoded.Status)
	assert.Equal(t, byte(1), decoded.SourceEndpoint)
	assert.Empty(t, decoded.Error)
}

func TestIndicationDTOCarriesSourceAndAsdu(t *testing.T) {
	ind := wire.ApsDataIndication{
		DestinationAddress:  wire.DestinationAddress{},
		DestinationEndpoint: 1,
		SourceAddress:       wire.SourceAddress{Short: 0x0159, Extended: 0x00124b0001aabbcc},
		SourceEndpoint:      2,
		ProfileId:           0x0104,
		ClusterId:           0x0006,
		Asdu:                []byte{0xAA, 0xBB},
	}

	dto := encodeIndication(ind)
	encoded, err := cbor.Marshal(dto)
	require.NoError(t, err)

	var decoded indicationDTO
	require.NoError(t, cbor.Unmarshal(encoded, &decoded))
	assert.Equal(t, uint16(0x0159), decoded.SourceShort)
	assert.Equal(t, uint64(0x00124b0001aabbcc), decoded.SourceExtended)
	assert.Equal(t, []byte{0xAA, 0xBB}, decoded.Asdu)
}

func TestDeviceStateDTOEncodesNetworkStateName(t *testing.T) {
	dto := encodeDeviceState(wire.DeviceState{
		NetworkState:         wire.NetworkConnected,
		DataRequestFreeSlots: true,
	})
	assert.Equal(t, "connected", dto.NetworkState)
	assert.True(t, dto.DataRequestFreeSlots)
	assert.False(t, dto.DataConfirm)
}

func TestMacPollDTOEncodesShortAddress(t *testing.T) {
	dto := encodeMacPoll(0xBEEF)
	assert.Equal(t, uint16(0xBEEF), dto.ShortAddress)
}
