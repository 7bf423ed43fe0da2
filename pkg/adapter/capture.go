package adapter

import (
	"bytes"
	"net/http"
)

// capture buffers everything a sub-application writes so it can be replayed
// onto the outward response once the entry point has returned.
type capture struct {
	header      http.Header
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func newCapture() *capture {
	return &capture{header: make(http.Header)}
}

func (c *capture) Header() http.Header { return c.header }

func (c *capture) WriteHeader(code int) {
	if c.wroteHeader {
		return
	}
	// 1xx responses are informational; the final status follows.
	if code >= 100 && code < 200 {
		return
	}
	c.status = code
	c.wroteHeader = true
}

func (c *capture) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	return c.body.Write(p)
}

// Flush is a no-op; the body is delivered in one piece.
func (c *capture) Flush() {}

func (c *capture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

// copyTo writes status, headers and body onto w verbatim.
func (c *capture) copyTo(w http.ResponseWriter) error {
	dst := w.Header()
	for k, vv := range c.header {
		dst[k] = append(dst[k], vv...)
	}
	w.WriteHeader(c.statusCode())
	if c.body.Len() == 0 {
		return nil
	}
	_, err := w.Write(c.body.Bytes())
	return err
}
