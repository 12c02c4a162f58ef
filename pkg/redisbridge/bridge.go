// Package redisbridge glues the driver facade to Redis: it drains a list of
// CBOR-encoded application data requests with BRPOP and hands them to the
// driver, and mirrors the driver's indication, confirm, device-state and
// MAC-poll streams into Redis hashes with a publish on every update, the
// same hash-plus-channel convention used elsewhere in this fleet.
package redisbridge

import (
	"context"
	"encoding/hex"
	"log"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/librescoot/zigbee-coordinator/pkg/wire"
)

// submissionPollInterval bounds how long a single BRPOP call blocks, so the
// watcher loop can notice Stop promptly instead of waiting on the next
// pushed submission.
const submissionPollInterval = 1 * time.Second

// Driver is what the bridge needs of the coordinator facade.
type Driver interface {
	DataRequest(ctx context.Context, req wire.ApsDataRequest) (wire.ApsDataConfirm, error)
	Indications() <-chan wire.ApsDataIndication
	DeviceStates() <-chan wire.DeviceState
	MacPolls() <-chan wire.ShortAddress
}

// Store is what the bridge needs of the Redis client: a blocking list pop
// for the submission queue and a hash-write-plus-publish for every outbound
// stream. *redis.Client satisfies this.
type Store interface {
	BRPop(timeout time.Duration, key string) ([]string, error)
	WriteAndPublishString(key, field, value string) error
}

// Bridge runs the background watchers that connect driver to a Store.
// Construct with New, then call Run; call Stop to tear every watcher down.
type Bridge struct {
	logger *log.Logger
	redis  Store
	driver Driver

	done chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Bridge. logger defaults to log.Default() when nil.
func New(driver Driver, redisClient Store, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.Default()
	}
	return &Bridge{
		logger: logger,
		redis:  redisClient,
		driver: driver,
		done:   make(chan struct{}),
	}
}

// Run starts the submission, indication, device-state and MAC-poll
// watchers. It returns immediately; the watchers run until Stop is called.
func (b *Bridge) Run() {
	b.wg.Add(4)
	go b.watchSubmissions()
	go b.watchIndications()
	go b.watchDeviceStates()
	go b.watchMacPolls()
}

// Stop signals every watcher to exit and waits for them to do so.
func (b *Bridge) Stop() {
	close(b.done)
	b.wg.Wait()
}

func (b *Bridge) watchSubmissions() {
	defer b.wg.Done()

	for {
		select {
		case <-b.done:
			return
		default:
		}

		result, err := b.redis.BRPop(submissionPollInterval, KeyDataRequests)
		if err != nil {
			b.logger.Printf("redisbridge: BRPOP on %s: %v", KeyDataRequests, err)
			continue
		}
		if result == nil {
			continue
		}

		b.handleSubmission(result[1])
	}
}

func (b *Bridge) handleSubmission(payload string) {
	var msg dataRequestDTO
	if err := cbor.Unmarshal([]byte(payload), &msg); err != nil {
		b.logger.Printf("redisbridge: decode data request (%s): %v", hex.EncodeToString([]byte(payload)), err)
		return
	}

	req, err := msg.decode()
	if err != nil {
		b.logger.Printf("redisbridge: invalid data request: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	confirm, err := b.driver.DataRequest(ctx, req)
	cancel()

	dto := confirmDTO{Destination: encodeDestination(req.Destination), SourceEndpoint: byte(req.SourceEndpoint)}
	if err != nil {
		b.logger.Printf("redisbridge: data request failed: %v", err)
		dto.Error = err.Error()
	} else {
		dto = encodeConfirm(confirm)
	}
	b.publish(KeyDataConfirms, dto)
}

func (b *Bridge) watchIndications() {
	defer b.wg.Done()
	for {
		select {
		case ind, ok := <-b.driver.Indications():
			if !ok {
				return
			}
			b.publish(KeyIndications, encodeIndication(ind))
		case <-b.done:
			return
		}
	}
}

func (b *Bridge) watchDeviceStates() {
	defer b.wg.Done()
	states := b.driver.DeviceStates()
	for {
		select {
		case ds, ok := <-states:
			if !ok {
				return
			}
			b.publish(KeyDeviceState, encodeDeviceState(ds))
		case <-b.done:
			return
		}
	}
}

func (b *Bridge) watchMacPolls() {
	defer b.wg.Done()
	for {
		select {
		case addr, ok := <-b.driver.MacPolls():
			if !ok {
				return
			}
			b.publish(KeyMacPolls, encodeMacPoll(addr))
		case <-b.done:
			return
		}
	}
}

// publish CBOR-encodes v and writes it to key's "latest" field, publishing
// the change on key as a channel name. Redis values are binary-safe, so the
// encoded bytes travel as-is; only log output hex-encodes them.
func (b *Bridge) publish(key string, v interface{}) {
	encoded, err := cbor.Marshal(v)
	if err != nil {
		b.logger.Printf("redisbridge: encode message for %s: %v", key, err)
		return
	}

	if err := b.redis.WriteAndPublishString(key, "latest", string(encoded)); err != nil {
		b.logger.Printf("redisbridge: publish %s: %v", key, err)
		return
	}

	b.logger.Printf("redisbridge: published %s latest=%s", key, hex.EncodeToString(encoded))
}
