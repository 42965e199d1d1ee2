package domain

// ConnectivityState is the last known reachability of the remote gateway.
type ConnectivityState int32

const (
	ConnectivityUnknown ConnectivityState = iota
	ConnectivityConnected
	ConnectivityDisconnected
)

func (s ConnectivityState) String() string {
	switch s {
	case ConnectivityConnected:
		return "connected"
	case ConnectivityDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// MarshalText lets the state render as its name in JSON.
func (s ConnectivityState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
