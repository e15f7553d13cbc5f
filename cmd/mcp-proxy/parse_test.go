package main

import (
	"path"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProxyEnv(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "")
	t.Setenv("LISTEN_HOST", "")
	t.Setenv("LISTEN_PORT", "")
	t.Setenv("PROXY_CONFIG", "")
	t.Setenv("NO_COLOR", "")
}

func TestParseArgsDefaults(t *testing.T) {
	clearProxyEnv(t)

	conf, err := parseArgs([]string{"--upstream", "http://localhost:8030/mcp"})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8030/mcp", conf.UpstreamURL)
	assert.Equal(t, ":9000", conf.ListenAddress())
	assert.Equal(t, 350, conf.TruncateLimit)
	assert.True(t, conf.ColorEnabled())
}

func TestParseArgsFlags(t *testing.T) {
	clearProxyEnv(t)

	conf, err := parseArgs([]string{
		"--upstream", "http://localhost:8030/mcp",
		"--port", "9001",
		"--ip-address", "127.0.0.1",
		"--no-color",
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9001", conf.ListenAddress())
	assert.False(t, conf.ColorEnabled())
}

func TestParseArgsEnv(t *testing.T) {
	clearProxyEnv(t)
	t.Setenv("UPSTREAM_URL", "http://from-env:8030/mcp")
	t.Setenv("LISTEN_PORT", "9002")

	conf, err := parseArgs([]string{})
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:8030/mcp", conf.UpstreamURL)
	assert.Equal(t, ":9002", conf.ListenAddress())
}

func TestParseArgsFlagBeatsEnv(t *testing.T) {
	clearProxyEnv(t)
	t.Setenv("UPSTREAM_URL", "http://from-env:8030/mcp")

	conf, err := parseArgs([]string{"--upstream", "http://from-flag:8030/mcp"})
	require.NoError(t, err)

	assert.Equal(t, "http://from-flag:8030/mcp", conf.UpstreamURL)
}

func TestParseArgsConfigFile(t *testing.T) {
	clearProxyEnv(t)
	_, sourceFilename, _, _ := runtime.Caller(0)
	configFile := path.Join(path.Dir(sourceFilename), "..", "..", "cfg", "test-config.yml")

	conf, err := parseArgs([]string{"--config", configFile})
	require.NoError(t, err)

	assert.Equal(t, "http://172.16.10.51:8030/mcp", conf.UpstreamURL)
	assert.Equal(t, ":9100", conf.ListenAddress())
	assert.Equal(t, 200, conf.TruncateLimit)
}

func TestParseArgsRequiresUpstream(t *testing.T) {
	clearProxyEnv(t)

	_, err := parseArgs([]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPSTREAM_URL")
}

func TestParseArgsRejectsBadPort(t *testing.T) {
	clearProxyEnv(t)

	_, err := parseArgs([]string{"--upstream", "http://localhost:8030/mcp", "--port", "99999"})
	require.Error(t, err)

	_, err = parseArgs([]string{"--upstream", "http://localhost:8030/mcp", "--port", "abc"})
	require.Error(t, err)
}

func TestParseArgsRejectsBadAddress(t *testing.T) {
	clearProxyEnv(t)

	_, err := parseArgs([]string{"--upstream", "http://localhost:8030/mcp", "--ip-address", "not-an-ip"})
	require.Error(t, err)
}
