package model

//
// Connectivity probe
//

// ConnectivityProbe reports whether the device currently has network
// connectivity. The signature verifier uses it to decide between
// failing open (offline) and rejecting (online) when the trust key
// cannot be fetched.
type ConnectivityProbe interface {
	// IsOnline returns whether the device appears to be online.
	IsOnline() bool
}

// AlwaysOnlineProbe is a ConnectivityProbe that always reports online.
type AlwaysOnlineProbe struct{}

var _ ConnectivityProbe = AlwaysOnlineProbe{}

// IsOnline implements ConnectivityProbe.
func (AlwaysOnlineProbe) IsOnline() bool {
	return true
}
