package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync/atomic"
)

// captureWriter buffers everything a downstream handler writes so the
// rewriter can inspect it before anything reaches the client.
type captureWriter struct {
	header      http.Header
	statusCode  int
	wroteHeader bool
	body        bytes.Buffer

	// handled is set once the translator has replaced the buffered output
	// with its own envelope.
	handled atomic.Bool
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{header: make(http.Header), statusCode: http.StatusOK}
}

func (cw *captureWriter) Header() http.Header {
	return cw.header
}

// WriteHeader records the first final status. Informational codes are not
// final and are dropped.
func (cw *captureWriter) WriteHeader(code int) {
	if cw.wroteHeader || code < http.StatusOK {
		return
	}
	cw.statusCode = code
	cw.wroteHeader = true
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}
	return cw.body.Write(b)
}

// reset drops everything written so far.
func (cw *captureWriter) reset() {
	clear(cw.header)
	cw.statusCode = http.StatusOK
	cw.wroteHeader = false
	cw.body.Reset()
}

type captureKey struct{}

func withCapture(ctx context.Context, cw *captureWriter) context.Context {
	return context.WithValue(ctx, captureKey{}, cw)
}

// claimResponse discards any partial output buffered for the request and
// flags it as handled, so the translator's envelope is the only body sent.
// Outside the rewriter it does nothing.
func claimResponse(ctx context.Context) {
	if cw, ok := ctx.Value(captureKey{}).(*captureWriter); ok {
		cw.reset()
		cw.handled.Store(true)
	}
}

// copyHeaders adds every header in src that dst does not already carry.
func copyHeaders(dst, src http.Header, skip ...string) {
	for key, values := range src {
		key = http.CanonicalHeaderKey(key)
		if contains(skip, key) || len(dst.Values(key)) > 0 {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

// bodyAllowed reports whether a response with status may carry a body.
func bodyAllowed(status int) bool {
	return status >= http.StatusOK && status != http.StatusNoContent && status != http.StatusNotModified
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
