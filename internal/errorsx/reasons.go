package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// ReasonConnection covers failures to establish or keep a provider
	// session: spawn, handshake, transport dial, closed pipes.
	ReasonConnection ReasonCode = "connection"

	// ReasonRouting covers tool names no connected provider advertises.
	ReasonRouting ReasonCode = "routing"

	// ReasonDecode covers malformed or schema-violating tool arguments.
	ReasonDecode ReasonCode = "decode"

	// ReasonInvocation covers failures of a dispatched call: provider
	// reported an error, timed out, or died mid-call.
	ReasonInvocation ReasonCode = "invocation"
)
