package logger

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Transport logs every request made through it at debug level.
type Transport struct {
	Transport http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt := t.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}

	start := time.Now()
	res, err := rt.RoundTrip(req)
	if err != nil {
		log.Debug().
			Str("method", req.Method).
			Str("url", req.URL.Redacted()).
			Err(err).
			Msg("http request failed")
		return nil, err
	}

	log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Int("status", res.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("http request")
	return res, nil
}
