package redisbridge

// Redis keys. The bridge only ever uses these five: one list for inbound
// submissions, and a hash-plus-channel pair for each of the four outbound
// streams: delivery confirmations plus the three streams the driver exposes.
const (
	// KeyDataRequests is the list BRPOP drains for outbound ApsDataRequest
	// submissions, CBOR-encoded.
	KeyDataRequests = "zigbee:data-requests"

	// KeyDataConfirms is the hash the bridge writes the most recent delivery
	// confirmation to, keyed by "latest"; its field change is published on
	// the same name.
	KeyDataConfirms = "zigbee:data-confirms"

	// KeyIndications is the hash the bridge writes the most recent inbound
	// application frame to.
	KeyIndications = "zigbee:indications"

	// KeyDeviceState is the hash the bridge mirrors the device status
	// bitfield into.
	KeyDeviceState = "zigbee:device-state"

	// KeyMacPolls is the hash the bridge mirrors the most recent MAC poll
	// source address into.
	KeyMacPolls = "zigbee:mac-polls"
)
