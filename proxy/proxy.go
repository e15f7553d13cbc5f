package proxy

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v3"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	nullLog "github.com/sirupsen/logrus/hooks/test"
	"github.com/taskcluster/httpbackoff/v3"
	"github.com/taskcluster/slugid-go/slugid"

	"github.com/lukekenny/mcp-rewrite-proxy/flowlog"
	"github.com/lukekenny/mcp-rewrite-proxy/jsonrpc"
)

// Config contains the run time parameters for the proxy.
type Config struct {
	// Upstream is the URL of the MCP server requests are forwarded to.
	Upstream string

	// Logger is used to log proxy events. A null logger is substituted
	// when nil.
	Logger *logrus.Logger

	// Flow logs the packets crossing the proxy. Built from Logger when nil.
	Flow *flowlog.Logger

	// RequestHeaders are set on every upstream request, replacing any
	// client-supplied value. DefaultRequestHeaders is used when nil.
	RequestHeaders map[string]string

	// OnShutdown is called once, from its own goroutine, when a shutdown
	// request is accepted. Nil disables the /shutdown endpoint's effect.
	OnShutdown func()

	// ValidatePackets enables JSON-RPC validation warnings on client
	// request bodies. Invalid packets are still forwarded.
	ValidatePackets bool
}

// DefaultRequestHeaders returns the MCP content negotiation headers
// injected on upstream requests when Config.RequestHeaders is nil.
func DefaultRequestHeaders() map[string]string {
	return map[string]string{
		"Accept":       "application/json, text/event-stream",
		"Content-Type": "application/json",
	}
}

// proxy forwards MCP traffic to a single upstream server. New instances
// are created using proxy.New().
type proxy struct {
	upstream *url.URL
	logger   *logrus.Logger
	flow     *flowlog.Logger
	headers  map[string]string
	client   *http.Client
	retry    *httpbackoff.Client
	validate bool
	router   *mux.Router

	// m covers onShutdown, which is cleared after the first trigger
	m          sync.Mutex
	onShutdown func()
}

// New creates a new proxy instance and wraps it as an http.Handler.
func New(conf Config) (http.Handler, error) {
	if conf.Upstream == "" {
		return nil, ErrMissingUpstream
	}
	upstream, err := url.Parse(conf.Upstream)
	if err != nil || upstream.Host == "" || (upstream.Scheme != "http" && upstream.Scheme != "https") {
		return nil, ErrInvalidUpstream
	}

	logger := conf.Logger
	if logger == nil {
		logger, _ = nullLog.NewNullLogger()
	}
	flow := conf.Flow
	if flow == nil {
		flow = flowlog.New(flowlog.Config{Log: logger})
	}
	headers := conf.RequestHeaders
	if headers == nil {
		headers = DefaultRequestHeaders()
	}

	p := &proxy{
		upstream: upstream,
		logger:   logger,
		flow:     flow,
		headers:  headers,
		validate: conf.ValidatePackets,
		client: &http.Client{
			Transport: &http.Transport{
				// SSE responses are long-lived, so only connection
				// establishment gets a deadline.
				DialContext:         (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			// do not follow redirects, and instead pass them back to the caller
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		retry:      &httpbackoff.Client{BackOffSettings: backoff.NewExponentialBackOff()},
		onShutdown: conf.OnShutdown,
	}

	router := mux.NewRouter()
	router.HandleFunc("/mcp", p.mcpHandler).Methods("POST", "GET", "DELETE")
	router.HandleFunc("/shutdown", p.shutdownHandler).Methods("POST")
	p.router = router

	return p, nil
}

// ServeHTTP implements http.Handler so that the proxy may be used as a
// handler in an http.Server.
func (p *proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.router.ServeHTTP(w, r)
}

// mcpHandler relays one MCP request to the upstream server.
func (p *proxy) mcpHandler(w http.ResponseWriter, r *http.Request) {
	requestID := slugid.Nice()

	body := []byte{}
	var err error
	if r.Body != nil {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(500)
			fmt.Fprintf(w, "Failed to read request body: %s", err)
			return
		}
	}

	p.flow.Packet(flowlog.ClientToProxy, requestID, string(body))

	if p.validate && r.Method == http.MethodPost && len(body) != 0 {
		if err := jsonrpc.Validate(body); err != nil {
			p.logerrorf(requestID, "client packet failed validation: %v", err)
		}
	}

	header := stripHopByHop(r.Header)
	for k, v := range p.headers {
		header.Set(k, v)
	}

	p.flow.Packet(flowlog.ProxyToUpstream, requestID, string(body))

	resp, err := p.roundTrip(r.Method, header, body)
	if err != nil {
		p.flow.Packet(flowlog.ErrorFlow, requestID, fmt.Sprintf("Proxy error contacting upstream:\n%v", err))
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "Upstream connection error")
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if shouldStream(resp) {
		p.relayStream(w, resp, requestID)
		return
	}
	p.relayBuffered(w, resp, requestID)
}

// roundTrip issues the upstream request. Requests carrying a body are
// issued exactly once: replaying a JSON-RPC call could duplicate its side
// effects. Body-less requests ride through the backoff client so transient
// network blips and upstream 5xx responses get retried.
func (p *proxy) roundTrip(method string, header http.Header, body []byte) (*http.Response, error) {
	call := func() (*http.Response, error, error) {
		req, err := http.NewRequest(method, p.upstream.String(), bytes.NewReader(body))
		if err != nil {
			return nil, nil, errors.Wrap(err, "constructing upstream request")
		}
		maps.Copy(req.Header, header)
		resp, err := p.client.Do(req)
		return resp, err, nil
	}

	if len(body) != 0 || method == http.MethodPost {
		resp, tempErr, permErr := call()
		if permErr != nil {
			return nil, permErr
		}
		return resp, tempErr
	}

	resp, _, err := p.retry.Retry(call)
	if err != nil {
		// non-2xx responses are not proxy failures; the status and body
		// are passed back to the client as-is
		if _, bad := err.(httpbackoff.BadHttpResponseCode); bad {
			return resp, nil
		}
		return nil, err
	}
	return resp, nil
}

// shutdownHandler accepts a shutdown request, replies, and fires the
// configured shutdown callback from a separate goroutine so the response
// is written before the server begins draining.
func (p *proxy) shutdownHandler(w http.ResponseWriter, r *http.Request) {
	p.m.Lock()
	trigger := p.onShutdown
	p.onShutdown = nil
	p.m.Unlock()

	fmt.Fprint(w, "Proxy shutting down...")

	if trigger != nil {
		p.logger.Info("shutdown requested")
		go trigger()
	}
}

// proxy logging utilities

func (p *proxy) logf(requestID string, format string, v ...interface{}) {
	p.logger.WithFields(logrus.Fields{
		"request-id": requestID,
	}).Printf(format, v...)
}

func (p *proxy) logerrorf(requestID string, format string, v ...interface{}) {
	p.logger.WithFields(logrus.Fields{
		"request-id": requestID,
	}).Errorf(format, v...)
}
