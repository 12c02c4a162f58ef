package serialmux

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librescoot/zigbee-coordinator/pkg/frame"
	"github.com/librescoot/zigbee-coordinator/pkg/wire"
)

// fakeAdapter sits on the far end of a net.Pipe from the Mux under test,
// decoding requests the Mux writes and letting the test script a response.
type fakeAdapter struct {
	t      *testing.T
	conn   net.Conn
	reader *frame.Reader
	writer *frame.Writer
}

func newFakeAdapter(t *testing.T) (*Mux, *fakeAdapter) {
	t.Helper()

	muxSide, testSide := net.Pipe()
	mux := New(muxSide, nil, 200*time.Millisecond)

	fa := &fakeAdapter{
		t:      t,
		conn:   testSide,
		reader: frame.NewReader(testSide),
		writer: frame.NewWriter(testSide),
	}

	t.Cleanup(func() { mux.Close() })

	return mux, fa
}

// nextRequestSeq reads the next frame the Mux wrote and returns its
// sequence id (offset 1 of the raw frame body).
func (fa *fakeAdapter) nextRequestSeq() wire.SequenceId {
	fa.t.Helper()
	raw, err := fa.reader.ReadFrame()
	require.NoError(fa.t, err)
	require.GreaterOrEqual(fa.t, len(raw), 2)
	return raw[1]
}

func (fa *fakeAdapter) sendDeviceStateResponse(seq wire.SequenceId, bits byte) {
	fa.t.Helper()
	w := encodeDeviceStateResponse(seq, bits)
	require.NoError(fa.t, fa.writer.WriteFrame(w))
}

func (fa *fakeAdapter) sendVersionResponse(seq wire.SequenceId, major, minor, platform byte) {
	fa.t.Helper()
	body := []byte{byte(wire.CommandVersion), seq, 0, 0, 0, platform, minor, major}
	setFrameLen(body)
	require.NoError(fa.t, fa.writer.WriteFrame(body))
}

func encodeDeviceStateResponse(seq wire.SequenceId, bits byte) []byte {
	body := []byte{byte(wire.CommandDeviceState), seq, 0, 0, 0, bits}
	setFrameLen(body)
	return body
}

func setFrameLen(body []byte) {
	n := uint16(len(body))
	body[3] = byte(n)
	body[4] = byte(n >> 8)
}

func TestSubmitRoutesResponseBySequenceID(t *testing.T) {
	mux, fa := newFakeAdapter(t)

	var (
		wg   sync.WaitGroup
		resp wire.Response
		err  error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		resp, err = mux.Submit(context.Background(), wire.NewVersionRequest())
	}()

	seq := fa.nextRequestSeq()
	fa.sendVersionResponse(seq, 1, 10, 0x07)

	wg.Wait()
	require.NoError(t, err)
	version, platform := resp.Version()
	assert.Equal(t, wire.Version{Major: 1, Minor: 10}, version)
	assert.Equal(t, wire.PlatformArm, platform)
}

func TestSubmitTimesOutWithNoResponse(t *testing.T) {
	mux, fa := newFakeAdapter(t)
	// Consume the request so the write completes, but never answer it.
	go fa.reader.ReadFrame()

	start := time.Now()
	_, err := mux.Submit(context.Background(), wire.NewDeviceStateRequest())
	elapsed := time.Since(start)

	require.Error(t, err)
	var me *Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrTimeout, me.Kind)
	assert.Less(t, elapsed, 2*mux.timeout)
}

func TestConcurrentSubmissionsRoutedByReversedResponseOrder(t *testing.T) {
	mux, fa := newFakeAdapter(t)

	const n = 5
	// Each caller asks for a different one-byte parameter, so a response can
	// be traced back to the request it answers.
	params := [n]wire.ParameterId{
		wire.ParameterApsDesignatedCoordinator,
		wire.ParameterSecurityMode,
		wire.ParameterNetworkKey,
		wire.ParameterCurrentChannel,
		wire.ParameterNwkUpdateId,
	}
	results := make([]wire.Response, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = mux.Submit(context.Background(), wire.NewReadParameterRequest(params[i]))
		}(i)
	}

	// Callers reach the writer in no fixed order, so record which parameter
	// each arriving sequence id asked for (offset 7 of the raw frame).
	seqs := make([]wire.SequenceId, n)
	ids := make([]wire.ParameterId, n)
	seqByParam := make(map[wire.ParameterId]wire.SequenceId, n)
	for i := 0; i < n; i++ {
		raw, err := fa.reader.ReadFrame()
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(raw), 8)
		seqs[i], ids[i] = raw[1], wire.ParameterId(raw[7])
		seqByParam[ids[i]] = seqs[i]
	}

	// Reply in reverse order of request arrival, with a distinct value per
	// sequence id so correlation failures are observable.
	for i := n - 1; i >= 0; i-- {
		body := []byte{byte(wire.CommandReadParameter), seqs[i], 0, 0, 0, 0, 0, byte(ids[i]), seqs[i]}
		setFrameLen(body)
		require.NoError(t, fa.writer.WriteFrame(body))
	}

	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		p := results[i].Parameter()
		assert.Equal(t, params[i], p.ID)
		assert.Equal(t, seqByParam[params[i]], p.U8)
	}
}

func TestUnsolicitedDeviceStateChangedIsBroadcastNotRouted(t *testing.T) {
	mux, fa := newFakeAdapter(t)
	// Subscribe first: a broadcast reaches only the subscribers registered
	// when it is sent.
	states := mux.DeviceStates()

	body := []byte{byte(wire.CommandDeviceStateChanged), 0xFF, 0, 0, 0, 0b101110}
	setFrameLen(body)
	require.NoError(t, fa.writer.WriteFrame(body))

	select {
	case ds := <-states:
		assert.Equal(t, wire.NetworkConnected, ds.NetworkState)
		assert.True(t, ds.DataRequestFreeSlots)
	case <-time.After(time.Second):
		t.Fatal("device state was never broadcast")
	}
}

func TestSequenceIDsIncrementByFive(t *testing.T) {
	mux, fa := newFakeAdapter(t)

	go mux.Submit(context.Background(), wire.NewDeviceStateRequest())
	first := fa.nextRequestSeq()
	fa.sendDeviceStateResponse(first, 0)

	go mux.Submit(context.Background(), wire.NewDeviceStateRequest())
	second := fa.nextRequestSeq()
	fa.sendDeviceStateResponse(second, 0)

	assert.Equal(t, wire.SequenceId(first+5), second)
}
