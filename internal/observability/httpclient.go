package observability

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
)

// NewHTTPClient returns an http.Client instrumented with otelhttp transport,
// with HTTP/2 enabled on the underlying transport when possible. Vendor
// inference calls are long-lived, latency-sensitive, and repeatedly hit the
// same host, which is exactly what HTTP/2 multiplexing is for.
func NewHTTPClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport.(*http.Transport).Clone()
	}
	if transport, ok := rt.(*http.Transport); ok {
		_ = http2.ConfigureTransport(transport)
	}
	base.Transport = otelhttp.NewTransport(rt)
	return base
}

// headerInjectingTransport sets a fixed set of headers on every request
// that doesn't already carry them, without mutating the caller's request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range t.headers {
		if cloned.Header.Get(k) == "" {
			cloned.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(cloned)
}

// WithHeaders returns a client that injects headers into every outgoing
// request that doesn't already set them, leaving base's own transport
// chain otherwise untouched.
func WithHeaders(base *http.Client, headers map[string]string) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	base.Transport = headerInjectingTransport{base: rt, headers: headers}
	return base
}
