// Package driver is the public facade over the coordinator stick: it owns
// the serial multiplexer and data coordinator background tasks and exposes
// the operations an application actually wants (version, device state,
// sending an application data request, and a stream of inbound
// indications), hiding the sequence-id/request-id correlation machinery
// beneath.
package driver

import (
	"context"
	"log"
	"time"

	"github.com/librescoot/zigbee-coordinator/pkg/coordinator"
	"github.com/librescoot/zigbee-coordinator/pkg/serialmux"
	"github.com/librescoot/zigbee-coordinator/pkg/wire"
)

// Driver is the coordinator stick's public facade. Construct with New; it
// starts the reader, writer and coordinator background tasks immediately.
// Call Close to tear all three down in one step.
type Driver struct {
	mux         *serialmux.Mux
	coordinator *coordinator.Coordinator
}

// New wraps transport and starts the reader, writer and coordinator
// background tasks. logger defaults to log.Default() when nil; timeout is
// the per-request serial-layer deadline, defaulting to
// serialmux.DefaultTimeout when zero.
func New(transport serialmux.Transport, logger *log.Logger, timeout time.Duration) *Driver {
	mux := serialmux.New(transport, logger, timeout)
	return &Driver{
		mux:         mux,
		coordinator: coordinator.New(mux, logger),
	}
}

// Close tears down the coordinator, then the serial multiplexer, stopping
// all three background tasks and closing the transport.
func (d *Driver) Close() error {
	d.coordinator.Close()
	return d.mux.Close()
}

// Version asks the coordinator for its firmware version and hardware
// platform in a single serial round trip.
func (d *Driver) Version(ctx context.Context) (wire.Version, wire.Platform, error) {
	resp, err := d.mux.Submit(ctx, wire.NewVersionRequest())
	if err != nil {
		return wire.Version{}, 0, err
	}
	if resp.Kind() != wire.CommandVersion {
		return wire.Version{}, 0, &Error{Kind: ErrUnexpectedResponse}
	}
	version, platform := resp.Version()
	return version, platform, nil
}

// DeviceState asks the coordinator to report its current status bitfield
// in a single serial round trip. Use DeviceStates to observe broadcasts
// without polling.
func (d *Driver) DeviceState(ctx context.Context) (wire.DeviceState, error) {
	resp, err := d.mux.Submit(ctx, wire.NewDeviceStateRequest())
	if err != nil {
		return wire.DeviceState{}, err
	}
	ds, ok := resp.DeviceState()
	if resp.Kind() != wire.CommandDeviceState || !ok {
		return wire.DeviceState{}, &Error{Kind: ErrUnexpectedResponse}
	}
	return ds, nil
}

// ReadParameter asks the coordinator for the current value of a
// configuration parameter.
func (d *Driver) ReadParameter(ctx context.Context, id wire.ParameterId) (wire.Parameter, error) {
	resp, err := d.mux.Submit(ctx, wire.NewReadParameterRequest(id))
	if err != nil {
		return wire.Parameter{}, err
	}
	if resp.Kind() != wire.CommandReadParameter {
		return wire.Parameter{}, &Error{Kind: ErrUnexpectedResponse}
	}
	return resp.Parameter(), nil
}

// WriteParameter asks the coordinator to set a configuration parameter,
// returning the id it confirmed writing.
func (d *Driver) WriteParameter(ctx context.Context, p wire.Parameter) (wire.ParameterId, error) {
	resp, err := d.mux.Submit(ctx, wire.NewWriteParameterRequest(p))
	if err != nil {
		return 0, err
	}
	if resp.Kind() != wire.CommandWriteParameter {
		return 0, &Error{Kind: ErrUnexpectedResponse}
	}
	return resp.WrittenParameterID(), nil
}

// DataRequest enqueues an outbound application frame and blocks until its
// local delivery confirmation arrives, fails before reaching the adapter,
// or ctx is cancelled.
func (d *Driver) DataRequest(ctx context.Context, req wire.ApsDataRequest) (wire.ApsDataConfirm, error) {
	return d.coordinator.DataRequest(ctx, req)
}

// Indications returns the stream of decoded inbound application frames.
func (d *Driver) Indications() <-chan wire.ApsDataIndication {
	return d.coordinator.Indications()
}

// DeviceStates returns the stream of device-state broadcasts, solicited or
// not — the coordinator already consumes this internally for backpressure
// and polling, so this is a read-only tap for observers (e.g. to surface
// network-state changes) rather than the coordinator's own input.
func (d *Driver) DeviceStates() <-chan wire.DeviceState {
	return d.mux.DeviceStates()
}

// MacPolls returns the stream of short addresses seen polling the
// coordinator.
func (d *Driver) MacPolls() <-chan wire.ShortAddress {
	return d.mux.MacPolls()
}
