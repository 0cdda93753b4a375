// Package testing holds fakes shared by package tests: a scriptable in-memory fleet and
// writers and transports that fail on demand.
package testing

import (
	"errors"
	"net/http"
)

// FailingWriter accepts OK writes and fails every write after that.
type FailingWriter struct {
	OK     int
	writes int
}

func (w *FailingWriter) Write(p []byte) (int, error) {
	if w.writes >= w.OK {
		return 0, errors.New("write failed")
	}
	w.writes++
	return len(p), nil
}

// FailingTransport is an [http.RoundTripper] whose requests never reach a server.
type FailingTransport struct {
	Err error
}

func (f FailingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, f.Err
}
