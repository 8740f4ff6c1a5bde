package provider

import (
	"net/http"

	"golang.org/x/time/rate"
)

// PacedTransport wraps a RoundTripper with a token-bucket pace, a
// courtesy guard against bursting an upstream host that sits entirely
// below the sliding-window Limiter: the Limiter is the sole admission
// authority (a request the Limiter denies never reaches here), but
// once admitted, PacedTransport still smooths the outbound rate so a
// burst of freshly-admitted requests doesn't land on the wire in the
// same instant.
type PacedTransport struct {
	Base    http.RoundTripper
	Limiter *rate.Limiter
}

// NewPacedTransport builds a PacedTransport allowing qps requests per
// second with the given burst, layered over base (http.DefaultTransport
// when nil).
func NewPacedTransport(base http.RoundTripper, qps float64, burst int) *PacedTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if burst < 1 {
		burst = 1
	}
	return &PacedTransport{Base: base, Limiter: rate.NewLimiter(rate.Limit(qps), burst)}
}

// RoundTrip waits for the token bucket before delegating, honoring the
// request's own context so a caller's timeout still applies while
// paced.
func (t *PacedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.Limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.Base.RoundTrip(req)
}
