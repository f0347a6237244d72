package mocks

// ConnectivityProbe allows mocking a model.ConnectivityProbe.
type ConnectivityProbe struct {
	MockIsOnline func() bool
}

// IsOnline calls MockIsOnline.
func (p *ConnectivityProbe) IsOnline() bool {
	return p.MockIsOnline()
}
