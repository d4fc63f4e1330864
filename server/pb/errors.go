package pb

// ErrorDomain is the domain of ErrorInfo details attached to failed
// calls.
const ErrorDomain = "mdnsoffload"

// ErrorInfo reasons. The client maps each back to the matching
// mdnsoffload error.
const (
	ReasonMalformedPacket = "MALFORMED_PACKET"
	ReasonInvalidRequest  = "INVALID_REQUEST"
	ReasonUnknownOwner    = "UNKNOWN_OWNER"
	ReasonStopped         = "STOPPED"
)
