package inspector

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mtlprog/chatboot/internal/httpclient"
)

// NetworkInterceptor records every exchange passing through the client.
type NetworkInterceptor struct {
	store   *Store
	metrics *metrics
	now     func() time.Time
}

// Intercept implements httpclient.Interceptor.
func (i *NetworkInterceptor) Intercept(next http.RoundTripper) http.RoundTripper {
	return httpclient.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		started := i.now()
		resp, err := next.RoundTrip(req)
		elapsed := i.now().Sub(started)

		event := Event{
			ID:             uuid.NewString(),
			StartedAt:      started,
			Method:         req.Method,
			URL:            req.URL.Redacted(),
			RequestHeaders: flattenHeaders(req.Header),
			Duration:       elapsed,
		}

		code := "error"
		if err != nil {
			event.Error = err.Error()
		} else {
			event.Status = resp.StatusCode
			event.ResponseSize = resp.ContentLength
			code = strconv.Itoa(resp.StatusCode)
		}

		i.store.Add(event)
		i.metrics.requests.WithLabelValues(req.Method, code).Inc()
		i.metrics.duration.WithLabelValues(req.Method).Observe(elapsed.Seconds())

		return resp, err
	})
}
