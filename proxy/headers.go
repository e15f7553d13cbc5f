package proxy

import "net/http"

// hopByHopHeaders must not be forwarded by an intermediary, per RFC 7230
// section 6.1. Keys are in canonical form.
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailers":            {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// stripHopByHop returns a copy of h with hop-by-hop headers removed.
func stripHopByHop(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		if _, hop := hopByHopHeaders[http.CanonicalHeaderKey(k)]; hop {
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	return out
}

// copyResponseHeaders mirrors the upstream response headers onto the
// client response, again dropping hop-by-hop headers.
func copyResponseHeaders(w http.ResponseWriter, resp *http.Response) {
	for k, v := range stripHopByHop(resp.Header) {
		w.Header()[k] = v
	}
}
