package transport

import (
	"net/http"

	"hiive-relay/internal/credentials"
)

// credentialGuard watches every response from the remote host and deletes
// the stored credential when a 401 comes back, so the next attempt starts a
// fresh handshake. Safety net across all outbound calls, not part of any
// single delivery.
type credentialGuard struct {
	creds credentials.Store
	base  http.RoundTripper
}

func newCredentialGuard(creds credentials.Store, base http.RoundTripper) *credentialGuard {
	if base == nil {
		base = http.DefaultTransport
	}
	return &credentialGuard{creds: creds, base: base}
}

func (g *credentialGuard) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := g.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = g.creds.DeleteToken(req.Context())
	}
	return resp, nil
}
