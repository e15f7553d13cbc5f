// Package flowlog logs the packets crossing the rewrite proxy. Each leg of
// the flow between the MCP client (A), the proxy (B) and the upstream MCP
// server (C) has a direction label and a fixed ANSI color so a packet trace
// can be read at a glance:
//
//	client (A) ----> [ proxy (B) ] ----> upstream (C)
//
// Upstream packets are subject to a truncation rule before logging; see
// Truncate. The proxy-to-client leg is never logged, as it always carries
// the same bytes as the upstream-to-proxy leg.
package flowlog

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	nullLog "github.com/sirupsen/logrus/hooks/test"
)

// Direction identifies one leg of the packet flow.
type Direction int

const (
	// ClientToProxy is a request packet arriving from the MCP client.
	ClientToProxy Direction = iota

	// ProxyToUpstream is a request packet leaving for the upstream server.
	ProxyToUpstream

	// UpstreamToProxy is a response packet arriving from the upstream server.
	UpstreamToProxy

	// ProxyToClient is a response packet leaving for the client. Defined
	// for completeness; it is deliberately not logged to avoid duplicate
	// packet output.
	ProxyToClient

	// ErrorFlow marks a proxying failure rather than a forwarded packet.
	ErrorFlow
)

const (
	ansiReset   = "\033[0m"
	ansiGreen   = "\033[32m"
	ansiYellow  = "\033[33m"
	ansiMagenta = "\033[35m"
	ansiRed     = "\033[31m"
	ansiCyan    = "\033[36m"
)

// Label returns the direction label used in log output.
func (d Direction) Label() string {
	switch d {
	case ClientToProxy:
		return "A→B  Client → Proxy"
	case ProxyToUpstream:
		return "B→C  Proxy → Upstream"
	case UpstreamToProxy:
		return "C→B  Upstream → Proxy"
	case ProxyToClient:
		return "B→A  Proxy → Client"
	case ErrorFlow:
		return "ERROR"
	}
	return "unknown"
}

func (d Direction) color() string {
	switch d {
	case ClientToProxy:
		return ansiGreen
	case ProxyToUpstream:
		return ansiMagenta
	case UpstreamToProxy:
		return ansiYellow
	case ErrorFlow:
		return ansiRed
	}
	return ansiCyan
}

// Config contains the run time parameters for a Logger.
type Config struct {
	// Log receives the packet entries. A null logger is substituted when nil.
	Log *logrus.Logger

	// Color enables ANSI coloring of packet payload lines.
	Color bool

	// TruncateLimit is the visible-character limit applied to upstream
	// packets. DefaultTruncateLimit is used when zero.
	TruncateLimit int
}

// Logger writes packet blocks through a logrus logger. Packet blocks from
// concurrent requests are serialized so their lines do not interleave.
type Logger struct {
	m     sync.Mutex
	log   *logrus.Logger
	color bool
	limit int
}

// New creates a Logger from the given Config.
func New(conf Config) *Logger {
	logger := conf.Log
	if logger == nil {
		logger, _ = nullLog.NewNullLogger()
	}
	limit := conf.TruncateLimit
	if limit == 0 {
		limit = DefaultTruncateLimit
	}
	return &Logger{
		log:   logger,
		color: conf.Color,
		limit: limit,
	}
}

// Packet logs one payload block for the given direction. Upstream packets
// are truncated per the packet truncation rule; all other directions log
// the payload in full. ErrorFlow packets are logged at error level.
func (l *Logger) Packet(dir Direction, requestID string, payload string) {
	if dir == UpstreamToProxy {
		payload = Truncate(payload, l.limit)
	}
	if l.color {
		payload = colorize(payload, dir.color())
	}

	l.m.Lock()
	defer l.m.Unlock()
	entry := l.log.WithFields(logrus.Fields{
		"direction":  dir.Label(),
		"request-id": requestID,
	})
	if dir == ErrorFlow {
		entry.Error(payload)
		return
	}
	entry.Info(payload)
}

// colorize wraps every payload line in the given ANSI color so multi-line
// packets stay colored past embedded newlines.
func colorize(payload, color string) string {
	lines := strings.Split(payload, "\n")
	for i, line := range lines {
		lines[i] = color + line + ansiReset
	}
	return strings.Join(lines, "\n")
}
