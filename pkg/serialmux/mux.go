// Package serialmux multiplexes request/response traffic over a single
// framed serial transport: a writer task assigns sequence ids, registers a
// reply slot per submission and flushes the frame without waiting on the
// reply, so many requests can be in flight at once; a reader task parses
// incoming frames and routes them back to the waiting caller by sequence
// id, and unsolicited frames are broadcast on a device-state channel
// instead.
package serialmux

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/librescoot/zigbee-coordinator/pkg/frame"
	"github.com/librescoot/zigbee-coordinator/pkg/wire"
)

// DefaultTimeout is the deadline applied to a submission when the caller
// does not override it.
const DefaultTimeout = 500 * time.Millisecond

// sequenceStep is the hardware workaround documented in the protocol: the
// coordinator ignores requests whose sequence id collides with an
// unsolicited-frame sequence id, so sequence ids are never allocated by
// simple increment.
const sequenceStep = 5

type submission struct {
	req     wire.Request
	reply   chan reply
	timeout time.Duration
}

type reply struct {
	resp wire.Response
	err  error
}

// Mux owns a framed transport and the correlation table of in-flight
// requests. Construct with New; it starts its reader and writer goroutines
// immediately. Call Close to tear both down.
type Mux struct {
	logger *log.Logger

	reader *frame.Reader
	writer *frame.Writer
	closer io.Closer

	submissions chan submission
	macPolls    chan wire.ShortAddress

	seq     uint32
	timeout time.Duration

	mu      sync.Mutex
	waiters map[wire.SequenceId]chan reply

	dsMu  sync.Mutex
	dsSubs []chan wire.DeviceState

	done chan struct{}
	wg   sync.WaitGroup
}

// Transport is what Mux needs of the underlying link: a byte stream it can
// read and write, and close to unblock a pending read during shutdown.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// New wraps transport and starts the reader and writer goroutines. logger
// defaults to log.Default() when nil.
func New(transport Transport, logger *log.Logger, timeout time.Duration) *Mux {
	if logger == nil {
		logger = log.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	m := &Mux{
		logger:       logger,
		reader:       frame.NewReader(transport),
		writer:       frame.NewWriter(transport),
		closer:       transport,
		submissions:  make(chan submission),
		macPolls:     make(chan wire.ShortAddress, 16),
		timeout:      timeout,
		waiters:      make(map[wire.SequenceId]chan reply),
		done:         make(chan struct{}),
	}

	m.wg.Add(2)
	go m.writeLoop()
	go m.readLoop()

	return m
}

// DeviceStates registers a new subscriber and returns its dedicated channel
// on which every DeviceState embedded in a received frame is broadcast,
// solicited or not. Each call creates an independent feed — the
// coordinator's own subscription and an external observer's never compete
// for the same update. Sends are non-blocking: a slow subscriber observes
// only the latest broadcast rather than stalling the reader on a backlog.
func (m *Mux) DeviceStates() <-chan wire.DeviceState {
	ch := make(chan wire.DeviceState, 1)
	m.dsMu.Lock()
	m.dsSubs = append(m.dsSubs, ch)
	m.dsMu.Unlock()
	return ch
}

// MacPolls returns the channel on which the short address of every MacPoll
// frame is delivered. MacPoll frames are tagged solicited by the protocol
// but nothing ever submits a request expecting one in practice, so they are
// broadcast here rather than dropped as unsolicited; a full channel drops
// the oldest queued address to make room rather than blocking the reader.
func (m *Mux) MacPolls() <-chan wire.ShortAddress { return m.macPolls }

// Close stops the reader and writer goroutines and closes the underlying
// transport. Submissions in flight resolve with ErrQueueClosed.
func (m *Mux) Close() error {
	close(m.done)
	err := m.closer.Close()
	m.wg.Wait()
	return err
}

// Submit encodes req under a freshly allocated sequence id, writes it to the
// transport, and blocks until the matching response is routed back, the
// submission's deadline elapses, or ctx is cancelled.
func (m *Mux) Submit(ctx context.Context, req wire.Request) (wire.Response, error) {
	return m.submitWithTimeout(ctx, req, m.timeout)
}

func (m *Mux) submitWithTimeout(ctx context.Context, req wire.Request, timeout time.Duration) (wire.Response, error) {
	sub := submission{req: req, reply: make(chan reply, 1), timeout: timeout}

	select {
	case m.submissions <- sub:
	case <-m.done:
		return wire.Response{}, &Error{Kind: ErrQueueClosed}
	case <-ctx.Done():
		return wire.Response{}, ctx.Err()
	}

	select {
	case r := <-sub.reply:
		return r.resp, r.err
	case <-ctx.Done():
		return wire.Response{}, ctx.Err()
	}
}

// nextSequenceID returns 0 on its first call and increments by sequenceStep
// (mod 256) thereafter, per the device's documented sequence-id contract.
func (m *Mux) nextSequenceID() wire.SequenceId {
	n := atomic.AddUint32(&m.seq, sequenceStep) - sequenceStep
	return byte(n)
}

func (m *Mux) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return
		case sub := <-m.submissions:
			m.handleSubmission(sub)
		}
	}
}

// handleSubmission assigns a sequence id, registers the waiter, and flushes
// the frame to the transport. It returns as soon as the write completes,
// without waiting for the reply, so the writer loop is free to pick up the
// next submission — the multiplexer allows many requests in flight at once,
// correlated purely by sequence id in the waiters table. Waiting for the
// reply (or timing it out) happens in a separate goroutine.
func (m *Mux) handleSubmission(sub submission) {
	seq := m.nextSequenceID()
	frameBytes := sub.req.EncodeFrame(seq)

	replyCh := make(chan reply, 1)
	m.mu.Lock()
	m.waiters[seq] = replyCh
	m.mu.Unlock()

	if err := m.writer.WriteFrame(frameBytes); err != nil {
		m.removeWaiter(seq)
		sub.reply <- reply{err: &Error{Kind: ErrTransport, Inner: err}}
		return
	}

	m.wg.Add(1)
	go m.awaitReply(seq, replyCh, sub)
}

// awaitReply waits for the response routed to replyCh by the reader, the
// submission's own deadline, or shutdown, and forwards exactly one of those
// outcomes to the caller.
func (m *Mux) awaitReply(seq wire.SequenceId, replyCh chan reply, sub submission) {
	defer m.wg.Done()

	timer := time.NewTimer(sub.timeout)
	defer timer.Stop()

	select {
	case r := <-replyCh:
		sub.reply <- r
	case <-timer.C:
		m.removeWaiter(seq)
		sub.reply <- reply{err: &Error{Kind: ErrTimeout}}
	case <-m.done:
		m.removeWaiter(seq)
		sub.reply <- reply{err: &Error{Kind: ErrQueueClosed}}
	}
}

func (m *Mux) removeWaiter(seq wire.SequenceId) {
	m.mu.Lock()
	delete(m.waiters, seq)
	m.mu.Unlock()
}

func (m *Mux) readLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return
		default:
		}

		raw, err := m.reader.ReadFrame()
		if err != nil {
			select {
			case <-m.done:
				return
			default:
			}
			m.logger.Printf("serialmux: transport read error: %v", err)
			continue
		}

		m.handleFrame(raw)
	}
}

func (m *Mux) handleFrame(raw []byte) {
	if len(raw) < 2 {
		m.logger.Printf("serialmux: frame too short to carry a sequence id: %d bytes", len(raw))
		return
	}

	seq, resp, err := wire.DecodeResponse(raw)
	if err != nil {
		// offset 1 of the raw frame is the sequence id even when the body
		// fails to parse.
		m.routeOrLog(wire.SequenceId(raw[1]), reply{err: fmt.Errorf("serialmux: decode response: %w", err)})
		return
	}

	if ds, ok := resp.DeviceState(); ok {
		m.broadcastDeviceState(ds)
	}

	if !resp.Solicited() {
		return
	}

	if resp.Kind() == wire.CommandMacPoll {
		select {
		case m.macPolls <- resp.MacPollAddress():
		default:
			<-m.macPolls
			m.macPolls <- resp.MacPollAddress()
		}
		return
	}

	m.routeOrLog(seq, reply{resp: resp})
}

// broadcastDeviceState fans ds out to every subscriber, keeping only the
// most recent state per subscriber: a full buffer is drained before the new
// value is pushed.
func (m *Mux) broadcastDeviceState(ds wire.DeviceState) {
	m.dsMu.Lock()
	subs := make([]chan wire.DeviceState, len(m.dsSubs))
	copy(subs, m.dsSubs)
	m.dsMu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ds:
			continue
		default:
		}

		select {
		case <-ch:
		default:
		}

		select {
		case ch <- ds:
		default:
		}
	}
}

func (m *Mux) routeOrLog(seq wire.SequenceId, r reply) {
	m.mu.Lock()
	waiter, ok := m.waiters[seq]
	if ok {
		delete(m.waiters, seq)
	}
	m.mu.Unlock()

	if !ok {
		m.logger.Printf("serialmux: unsolicited response for sequence id %d", seq)
		return
	}

	waiter <- r
}
