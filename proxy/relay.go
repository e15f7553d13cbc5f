package proxy

import (
	"bufio"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/lukekenny/mcp-rewrite-proxy/flowlog"
)

// maxEventSize bounds a single SSE line; upstream tool output can carry
// large JSON payloads on one data: line.
const maxEventSize = 10 * 1024 * 1024

// shouldStream reports whether the upstream response must be relayed
// incrementally. Server-sent event streams always stream. A response
// declaring neither a Content-Type nor a Content-Length is treated the
// same way: its extent is unknowable until the upstream closes, and
// buffering it would stall a long-lived stream. Such responses pick up
// the text/event-stream default in relayStream.
func shouldStream(resp *http.Response) bool {
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		return resp.ContentLength < 0
	}
	mediatype, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return strings.EqualFold(mediatype, "text/event-stream")
}

// relayBuffered reads the whole upstream body, logs it once, and mirrors
// status, headers and body to the client.
func (p *proxy) relayBuffered(w http.ResponseWriter, resp *http.Response, requestID string) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintf(w, "Failed to read upstream response: %s", err)
		return
	}

	p.flow.Packet(flowlog.UpstreamToProxy, requestID, string(body))

	copyResponseHeaders(w, resp)
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(body); err != nil {
		p.logerrorf(requestID, "error writing response: %v", err)
	}
}

// relayStream forwards an SSE body line by line. Each line is logged once
// on the upstream-to-proxy leg (subject to the truncation rule), then
// forwarded unmodified and flushed so events reach the client as they
// arrive. The proxy-to-client leg is deliberately not re-logged.
func (p *proxy) relayStream(w http.ResponseWriter, resp *http.Response, requestID string) {
	copyResponseHeaders(w, resp)
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/event-stream")
	}
	w.WriteHeader(resp.StatusCode)

	flusher, ok := w.(http.Flusher)
	// flusher may not be implemented by a ResponseWriter wrapper
	// simple copy
	if !ok {
		n, err := io.Copy(w, resp.Body)
		p.logf(requestID, "streamed %d bytes without flusher, error: %v", n, err)
		return
	}
	wf := &writeFlusher{w: w, f: flusher}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	for scanner.Scan() {
		line := scanner.Text() + "\n"

		p.flow.Packet(flowlog.UpstreamToProxy, requestID, line)

		if _, err := io.WriteString(wf, line); err != nil {
			p.logerrorf(requestID, "client write failed: %v", err)
			abort(w)
			return
		}
		wf.Flush()
	}
	if err := scanner.Err(); err != nil {
		p.logerrorf(requestID, "upstream stream ended with error: %v", err)
		abort(w)
	}
}

// writeFlusher serializes writes and flushes on a streaming response.
type writeFlusher struct {
	m sync.Mutex
	w io.Writer
	f http.Flusher
}

func (w *writeFlusher) Write(p []byte) (int, error) {
	w.m.Lock()
	defer w.m.Unlock()
	return w.w.Write(p)
}

func (w *writeFlusher) Flush() {
	w.m.Lock()
	defer w.m.Unlock()
	w.f.Flush()
}

// abort forcibly closes the client connection so that an incomplete
// streamed response is not mistaken for a finished one.
func abort(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}
