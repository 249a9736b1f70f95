package domain

import "errors"

var (
	ErrTransport = errors.New("transport failure")
	ErrProtocol  = errors.New("protocol failure")
	ErrDecode    = errors.New("decode failure")
	// ErrStaleHead marks a fetch whose chain head is behind one already published.
	ErrStaleHead = errors.New("stale chain head")
)

// FailureKind classifies a fetch error for logs and metrics.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrStaleHead):
		return "stale"
	default:
		return "other"
	}
}
