package redisbridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librescoot/zigbee-coordinator/pkg/wire"
)

type fakeDriver struct {
	mu          sync.Mutex
	handle      func(req wire.ApsDataRequest) (wire.ApsDataConfirm, error)
	indications chan wire.ApsDataIndication
	deviceState chan wire.DeviceState
	macPolls    chan wire.ShortAddress
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		indications: make(chan wire.ApsDataIndication, 4),
		deviceState: make(chan wire.DeviceState, 4),
		macPolls:    make(chan wire.ShortAddress, 4),
	}
}

func (f *fakeDriver) DataRequest(ctx context.Context, req wire.ApsDataRequest) (wire.ApsDataConfirm, error) {
	f.mu.Lock()
	h := f.handle
	f.mu.Unlock()
	if h == nil {
		return wire.ApsDataConfirm{}, nil
	}
	return h(req)
}

func (f *fakeDriver) Indications() <-chan wire.ApsDataIndication { return f.indications }
func (f *fakeDriver) DeviceStates() <-chan wire.DeviceState      { return f.deviceState }
func (f *fakeDriver) MacPolls() <-chan wire.ShortAddress         { return f.macPolls }

// fakeStore is an in-memory stand-in for *redis.Client: BRPop pops the first
// value the test queued for its key with push, or returns nil after a short
// sleep when there is none, and every WriteAndPublishString call is recorded
// for assertion.
type fakeStore struct {
	mu     sync.Mutex
	queue  [][2]string
	writes chan struct{ key, value string }
}

func newFakeStore() *fakeStore {
	return &fakeStore{writes: make(chan struct{ key, value string }, 16)}
}

func (s *fakeStore) push(key, value string) {
	s.mu.Lock()
	s.queue = append(s.queue, [2]string{key, value})
	s.mu.Unlock()
}

func (s *fakeStore) BRPop(timeout time.Duration, key string) ([]string, error) {
	s.mu.Lock()
	for i, item := range s.queue {
		if item[0] == key {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			s.mu.Unlock()
			return []string{key, item[1]}, nil
		}
	}
	s.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	return nil, nil
}

func (s *fakeStore) WriteAndPublishString(key, field, value string) error {
	s.writes <- struct{ key, value string }{key, value}
	return nil
}

func TestBridgeDispatchesSubmissionAndPublishesConfirm(t *testing.T) {
	driver := newFakeDriver()
	driver.handle = func(req wire.ApsDataRequest) (wire.ApsDataConfirm, error) {
		return wire.ApsDataConfirm{Destination: req.Destination, SourceEndpoint: req.SourceEndpoint, Status: 0x00}, nil
	}
	store := newFakeStore()

	dto := dataRequestDTO{
		Destination:    encodeDestination(wire.NewShortDestination(0x0159, 1)),
		ProfileID:      0x0104,
		ClusterID:      0x0006,
		SourceEndpoint: 1,
		Asdu:           []byte{1, 0, 0},
	}
	encoded, err := cbor.Marshal(dto)
	require.NoError(t, err)
	store.push(KeyDataRequests, string(encoded))

	b := New(driver, store, nil)
	b.Run()
	defer b.Stop()

	select {
	case w := <-store.writes:
		assert.Equal(t, KeyDataConfirms, w.key)
		var confirm confirmDTO
		require.NoError(t, cbor.Unmarshal([]byte(w.value), &confirm))
		assert.Equal(t, byte(0x00), confirm.Status)
		assert.Empty(t, confirm.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for confirm publish")
	}
}

func TestBridgePublishesDataRequestErrorWhenDriverFails(t *testing.T) {
	driver := newFakeDriver()
	driver.handle = func(req wire.ApsDataRequest) (wire.ApsDataConfirm, error) {
		return wire.ApsDataConfirm{}, assertError("no free slot")
	}
	store := newFakeStore()

	dto := dataRequestDTO{
		Destination:    encodeDestination(wire.NewShortDestination(0x0159, 1)),
		ProfileID:      0x0104,
		ClusterID:      0x0006,
		SourceEndpoint: 1,
		Asdu:           []byte{1},
	}
	encoded, err := cbor.Marshal(dto)
	require.NoError(t, err)
	store.push(KeyDataRequests, string(encoded))

	b := New(driver, store, nil)
	b.Run()
	defer b.Stop()

	select {
	case w := <-store.writes:
		var confirm confirmDTO
		require.NoError(t, cbor.Unmarshal([]byte(w.value), &confirm))
		assert.Equal(t, "no free slot", confirm.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error publish")
	}
}

func TestBridgeForwardsIndicationsDeviceStatesAndMacPolls(t *testing.T) {
	driver := newFakeDriver()
	store := newFakeStore()

	b := New(driver, store, nil)
	b.Run()
	defer b.Stop()

	driver.indications <- wire.ApsDataIndication{Asdu: []byte{0x01}}
	driver.deviceState <- wire.DeviceState{NetworkState: wire.NetworkConnected}
	driver.macPolls <- wire.ShortAddress(0x1234)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case w := <-store.writes:
			seen[w.key] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for publish %d", i)
		}
	}
	assert.True(t, seen[KeyIndications])
	assert.True(t, seen[KeyDeviceState])
	assert.True(t, seen[KeyMacPolls])
}

type assertError string

func (e assertError) Error() string { return string(e) }
