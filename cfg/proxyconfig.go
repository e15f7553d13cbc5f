// Package cfg loads the proxy's YAML configuration file and holds the
// merged runtime configuration. See Usage for the file format.
package cfg

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/lukekenny/mcp-rewrite-proxy/flowlog"
)

// ProxyConfig defines the configuration for the rewrite proxy. See the
// usage string for field descriptions.
type ProxyConfig struct {
	UpstreamURL    string            `yaml:"upstreamUrl"`
	ListenHost     string            `yaml:"listenHost"`
	ListenPort     int               `yaml:"listenPort"`
	TruncateLimit  int               `yaml:"truncateLimit"`
	Color          *bool             `yaml:"color"`
	RequestHeaders map[string]string `yaml:"requestHeaders"`
}

// Usage returns a fragment of a usage message that describes the
// configuration file format.
func Usage() string {
	return `
Configuration is in the form of a YAML file with the following fields:

	upstreamUrl: (required unless given by flag or environment) URL of the
		upstream MCP server, e.g. http://172.16.10.51:8030/mcp

	listenHost: address to bind the listener to; all interfaces if empty

	listenPort: port to bind the listener to (default 9000)

	truncateLimit: visible-character limit for logged upstream packets
		(default 350); JSON packets are always logged in full

	color: set false to disable ANSI colors in packet logs

	requestHeaders: headers set on every upstream request, replacing any
		client-supplied value; defaults to the MCP content negotiation
		headers (Accept and Content-Type)
`
}

// Defaults returns a ProxyConfig populated with the proxy's defaults.
func Defaults() *ProxyConfig {
	return &ProxyConfig{
		ListenPort:    9000,
		TruncateLimit: flowlog.DefaultTruncateLimit,
	}
}

// Load reads a configuration file.
func Load(filename string) (*ProxyConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %v", filename)
	}
	var cfg ProxyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config file %v", filename)
	}
	return &cfg, nil
}

// Merge overlays the set fields of other onto c.
func (c *ProxyConfig) Merge(other *ProxyConfig) {
	if other.UpstreamURL != "" {
		c.UpstreamURL = other.UpstreamURL
	}
	if other.ListenHost != "" {
		c.ListenHost = other.ListenHost
	}
	if other.ListenPort != 0 {
		c.ListenPort = other.ListenPort
	}
	if other.TruncateLimit != 0 {
		c.TruncateLimit = other.TruncateLimit
	}
	if other.Color != nil {
		c.Color = other.Color
	}
	if other.RequestHeaders != nil {
		c.RequestHeaders = other.RequestHeaders
	}
}

// ListenAddress returns the host:port string to bind the listener to.
func (c *ProxyConfig) ListenAddress() string {
	return c.ListenHost + ":" + strconv.Itoa(c.ListenPort)
}

// ColorEnabled reports whether packet logs should use ANSI colors.
func (c *ProxyConfig) ColorEnabled() bool {
	return c.Color == nil || *c.Color
}
