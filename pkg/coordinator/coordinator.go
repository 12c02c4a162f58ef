// Package coordinator schedules outbound application data requests against
// a coordinator that only ever has one data-request slot free at a time,
// polls for inbound indications and delivery confirmations as the device
// signals their availability, and correlates confirmations back to
// submitters by request id.
package coordinator

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/librescoot/zigbee-coordinator/pkg/wire"
)

// requestIDStep: request ids have no collision requirement with
// unsolicited frames, unlike sequence ids, so they simply increment by one.
const requestIDStep = 1

type submission struct {
	request wire.ApsDataRequest
	reply   chan confirmReply
}

type confirmReply struct {
	confirm wire.ApsDataConfirm
	err     error
}

// Mux is what Coordinator needs of the serial multiplexer: synchronous
// request/response submission and a feed of device-state broadcasts.
type Mux interface {
	Submit(ctx context.Context, req wire.Request) (wire.Response, error)
	DeviceStates() <-chan wire.DeviceState
}

// Coordinator runs the device-state-gated data-request/indication/confirm
// event loop described by the driver's design. Construct with New; it
// starts its event loop goroutine immediately. Call Close to tear it down.
type Coordinator struct {
	logger *log.Logger
	mux    Mux

	submissions   chan submission
	indications   chan wire.ApsDataIndication
	cancellations chan chan confirmReply

	requestID uint32

	done chan struct{}
	wg   sync.WaitGroup
}

// New starts the coordinator's event loop against mux. logger defaults to
// log.Default() when nil.
func New(mux Mux, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}

	c := &Coordinator{
		logger:        logger,
		mux:           mux,
		submissions:   make(chan submission),
		indications:   make(chan wire.ApsDataIndication, 8),
		cancellations: make(chan chan confirmReply),
		done:          make(chan struct{}),
	}

	c.wg.Add(1)
	go c.run()

	return c
}

// Indications returns the stream of decoded inbound application frames, in
// the order they were polled from the adapter.
func (c *Coordinator) Indications() <-chan wire.ApsDataIndication { return c.indications }

// Close stops the event loop. DataRequest calls not yet accepted by the loop
// return ErrQueueClosed; a call already dispatched to the adapter keeps
// waiting for its confirmation until its ctx is done.
func (c *Coordinator) Close() error {
	close(c.done)
	c.wg.Wait()
	return nil
}

// DataRequest enqueues req for dispatch as soon as the coordinator next
// observes a free data-request slot, and blocks until the matching
// confirmation is routed back, the submission fails before reaching the
// adapter, or ctx is cancelled. Cancelling after dispatch drops this
// request's entry from the coordinator's confirm_waiters table so it is not
// kept around waiting for a confirmation nobody is listening for anymore.
func (c *Coordinator) DataRequest(ctx context.Context, req wire.ApsDataRequest) (wire.ApsDataConfirm, error) {
	sub := submission{request: req, reply: make(chan confirmReply, 1)}

	select {
	case c.submissions <- sub:
	case <-c.done:
		return wire.ApsDataConfirm{}, &Error{Kind: ErrQueueClosed}
	case <-ctx.Done():
		return wire.ApsDataConfirm{}, ctx.Err()
	}

	select {
	case r := <-sub.reply:
		return r.confirm, r.err
	case <-ctx.Done():
		c.cancel(sub.reply)
		return wire.ApsDataConfirm{}, ctx.Err()
	}
}

// cancel tells the event loop to drop whatever confirm_waiters entry is
// keyed to reply, so a caller that gave up via context cancellation doesn't
// leak a slot in the waiters map if its confirmation never arrives. It is a
// best-effort notification: if the loop has already exited, or already
// delivered the reply, there is nothing left to clean up.
func (c *Coordinator) cancel(reply chan confirmReply) {
	select {
	case c.cancellations <- reply:
	case <-c.done:
	}
}

// nextRequestID returns 0 on its first call and increments by one
// thereafter (mod 256).
func (c *Coordinator) nextRequestID() wire.RequestId {
	n := atomic.AddUint32(&c.requestID, requestIDStep) - requestIDStep
	return byte(n)
}

func (c *Coordinator) run() {
	defer c.wg.Done()
	defer close(c.indications)

	deviceStates := c.mux.DeviceStates()
	freeSlots := false
	waiters := make(map[wire.RequestId]chan confirmReply)

	for {
		var subsCh chan submission
		if freeSlots {
			subsCh = c.submissions
		}

		select {
		case ds, ok := <-deviceStates:
			if !ok {
				return
			}
			freeSlots = c.handleDeviceState(ds, waiters)

		case sub, ok := <-subsCh:
			if !ok {
				return
			}
			freeSlots = c.handleSubmission(sub, waiters)

		case reply := <-c.cancellations:
			removeWaiterByReply(waiters, reply)

		case <-c.done:
			return
		}
	}
}

// removeWaiterByReply drops whichever entry in waiters is keyed to reply, if
// any. waiters is keyed by request id, not by reply channel, so a cancelled
// caller — which only ever knows its own reply channel, not the request id
// the loop assigned it — is found by scanning; the map holds at most a
// handful of in-flight confirmations at a time.
func removeWaiterByReply(waiters map[wire.RequestId]chan confirmReply, reply chan confirmReply) {
	for id, w := range waiters {
		if w == reply {
			delete(waiters, id)
			return
		}
	}
}

func (c *Coordinator) handleDeviceState(ds wire.DeviceState, waiters map[wire.RequestId]chan confirmReply) bool {
	if ds.DataIndication {
		c.pollIndication()
	}
	if ds.DataConfirm {
		c.pollConfirm(waiters)
	}
	return ds.DataRequestFreeSlots
}

func (c *Coordinator) pollIndication() {
	resp, err := c.mux.Submit(context.Background(), wire.NewApsDataIndicationRequest())
	if err != nil {
		c.logger.Printf("coordinator: indication poll failed: %v", err)
		return
	}

	select {
	case c.indications <- resp.Indication():
	case <-c.done:
	}
}

func (c *Coordinator) pollConfirm(waiters map[wire.RequestId]chan confirmReply) {
	resp, err := c.mux.Submit(context.Background(), wire.NewApsDataConfirmRequest())
	if err != nil {
		c.logger.Printf("coordinator: confirm poll failed: %v", err)
		return
	}

	id := resp.RequestID()
	waiter, ok := waiters[id]
	if !ok {
		c.logger.Printf("coordinator: unsolicited confirm for request id %d", id)
		return
	}
	delete(waiters, id)
	waiter <- confirmReply{confirm: resp.Confirm()}
}

// handleSubmission dispatches sub to the adapter, assuming the single data
// request slot it was gated on. The return value is the free-slots bit this
// coordinator should now assume until the next device-state broadcast
// corrects it: false on success (the device will tell us when it frees up
// again), and unchanged-to-true on a failure that never reached the
// adapter, since no slot was actually consumed.
func (c *Coordinator) handleSubmission(sub submission, waiters map[wire.RequestId]chan confirmReply) bool {
	id := c.nextRequestID()
	waiters[id] = sub.reply

	resp, err := c.mux.Submit(context.Background(), wire.NewApsDataRequestRequest(id, sub.request))
	if err != nil {
		delete(waiters, id)
		sub.reply <- confirmReply{err: err}
		return true
	}

	if resp.Kind() != wire.CommandApsDataRequest || resp.RequestID() != id {
		delete(waiters, id)
		sub.reply <- confirmReply{err: &Error{Kind: ErrUnexpectedResponse}}
		return false
	}

	return false
}
