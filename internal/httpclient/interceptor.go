package httpclient

import "net/http"

// Interceptor wraps the next round tripper in the chain.
type Interceptor interface {
	Intercept(next http.RoundTripper) http.RoundTripper
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(next http.RoundTripper) http.RoundTripper

func (f InterceptorFunc) Intercept(next http.RoundTripper) http.RoundTripper {
	return f(next)
}

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain wraps base so that interceptors[0] sees a request first and the
// last interceptor sits closest to the network.
func Chain(base http.RoundTripper, interceptors ...Interceptor) http.RoundTripper {
	rt := base
	for i := len(interceptors) - 1; i >= 0; i-- {
		rt = interceptors[i].Intercept(rt)
	}
	return rt
}

// UserAgent sets the User-Agent header on requests that do not carry one.
type UserAgent string

func (ua UserAgent) Intercept(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("User-Agent") != "" {
			return next.RoundTrip(req)
		}
		r := req.Clone(req.Context())
		r.Header.Set("User-Agent", string(ua))
		return next.RoundTrip(r)
	})
}
