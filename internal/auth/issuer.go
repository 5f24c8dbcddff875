package auth

import (
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
)

// AuthorizationRequest is what the browser needs to start a consent round trip
type AuthorizationRequest struct {
	URL   string `json:"authorization_url"`
	State string `json:"state"`
	Flow  Flow   `json:"flow"`
}

// Issuer builds provider authorization URLs carrying a fresh state.
type Issuer struct {
	provider core.IdentityProvider
	metrics  core.Recorder
}

func NewIssuer(provider core.IdentityProvider, m core.Recorder) *Issuer {
	return &Issuer{provider: provider, metrics: m}
}

// Issue generates a state for flow and the matching consent URL.
// linkingSessionID is required for FlowAddAccount and rejected for FlowLogin.
func (i *Issuer) Issue(flow Flow, linkingSessionID string) (*AuthorizationRequest, error) {
	state, err := NewState(flow, linkingSessionID)
	if err != nil {
		return nil, err
	}
	i.metrics.RecordAuthorizationIssued(string(flow))
	return &AuthorizationRequest{
		URL:   i.provider.AuthCodeURL(state.Value),
		State: state.Value,
		Flow:  flow,
	}, nil
}
