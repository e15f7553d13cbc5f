package main

import (
	"context"
	"fmt"
	"log/syslog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	docopt "github.com/docopt/docopt-go"
	raven "github.com/getsentry/raven-go"
	mozlog "github.com/mozilla-services/go-mozlogrus"
	log "github.com/sirupsen/logrus"
	lSyslog "github.com/sirupsen/logrus/hooks/syslog"

	"github.com/lukekenny/mcp-rewrite-proxy/cfg"
	"github.com/lukekenny/mcp-rewrite-proxy/flowlog"
	"github.com/lukekenny/mcp-rewrite-proxy/internal"
	"github.com/lukekenny/mcp-rewrite-proxy/proxy"
)

var (
	version  = internal.Version
	revision = "" // this is set during build with `-ldflags "-X main.revision=$(git rev-parse HEAD)"`
)

const usage = `MCP rewrite proxy. Sits between an HTTP Streamable MCP client and an
upstream MCP server, rewriting request headers and logging the full packet
flow in both directions. SSE responses stream through without buffering.

  Usage:
    mcp-proxy [options]
    mcp-proxy -h|--help
    mcp-proxy --version
    mcp-proxy --short-version

  Options:
    -h --help                  Show this help screen.
    --version                  Show the mcp-proxy version number.
    --short-version            Show only the semantic version.
    -u --upstream <url>        URL of the upstream MCP server.
    -p --port <port>           Port to bind the proxy server to (default 9000).
    -i --ip-address <address>  IPv4 or IPv6 address of network interface to bind
                               the listener to. If not provided, the listener
                               binds to all available network interfaces.
    -c --config <file>         Path to a YAML configuration file.
    --no-color                 Disable ANSI colors in packet logs.

  Environment:
    UPSTREAM_URL     URL of the upstream MCP server (flag takes precedence)
    LISTEN_PORT      port to bind to
    LISTEN_HOST      address to bind to
    PROXY_CONFIG     path to a YAML configuration file
    NO_COLOR         disable ANSI colors in packet logs when non-empty
    ENV              'production' enables mozlog formatting
    SYSLOG_ADDR      address to which to send syslog output (production only)
    SENTRY_DSN       report crashes to this Sentry project
`

// drainTimeout bounds how long in-flight streams may hold up shutdown.
const drainTimeout = 30 * time.Second

func main() {
	conf, err := parseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := newLogger()

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := raven.SetDSN(dsn); err != nil {
			logger.Warnf("could not configure sentry: %v", err)
		}
	}

	raven.CapturePanic(func() {
		if err := run(conf, logger); err != nil {
			logger.Fatalf("%v", err)
		}
	}, nil)
}

func run(conf *cfg.ProxyConfig, logger *log.Logger) error {
	flow := flowlog.New(flowlog.Config{
		Log:           logger,
		Color:         conf.ColorEnabled(),
		TruncateLimit: conf.TruncateLimit,
	})

	shutdown := make(chan struct{})
	handler, err := proxy.New(proxy.Config{
		Upstream:        conf.UpstreamURL,
		Logger:          logger,
		Flow:            flow,
		RequestHeaders:  conf.RequestHeaders,
		ValidatePackets: true,
		OnShutdown: func() {
			close(shutdown)
		},
	})
	if err != nil {
		return err
	}

	address := conf.ListenAddress()
	server := &http.Server{Addr: address, Handler: handler}

	errs := make(chan error, 1)
	go func() {
		logger.WithFields(log.Fields{
			"server-addr": address,
			"upstream":    conf.UpstreamURL,
		}).Info("starting mcp rewrite proxy")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errs:
		return err
	case s := <-sig:
		logger.Infof("received %v, shutting down", s)
	case <-shutdown:
		logger.Info("shutting down on http request")
	}

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}

// parseArgs merges command line arguments, environment variables and the
// optional configuration file into a ProxyConfig. Flags win over the
// environment, which wins over the file.
func parseArgs(argv []string) (*cfg.ProxyConfig, error) {
	fullversion := "mcp-proxy " + version
	if revision != "" {
		fullversion += " (git revision " + revision + ")"
	}
	arguments, err := docopt.ParseArgs(usage+cfg.Usage(), argv, fullversion)
	if err != nil {
		return nil, err
	}

	if arguments["--short-version"].(bool) {
		fmt.Println(version)
		os.Exit(0)
	}

	configFile := stringArg(arguments, "--config")
	if configFile == "" {
		configFile = os.Getenv("PROXY_CONFIG")
	}

	conf := cfg.Defaults()
	if configFile != "" {
		fileConf, err := cfg.Load(configFile)
		if err != nil {
			return nil, err
		}
		conf.Merge(fileConf)
	}

	if upstream := os.Getenv("UPSTREAM_URL"); upstream != "" {
		conf.UpstreamURL = upstream
	}
	if host := os.Getenv("LISTEN_HOST"); host != "" {
		conf.ListenHost = host
	}
	if port := os.Getenv("LISTEN_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("env var LISTEN_PORT is not a number (%v)", port)
		}
		conf.ListenPort = p
	}

	if upstream := stringArg(arguments, "--upstream"); upstream != "" {
		conf.UpstreamURL = upstream
	}
	if address := stringArg(arguments, "--ip-address"); address != "" {
		if net.ParseIP(address) == nil {
			return nil, fmt.Errorf("invalid IPv4/IPv6 address specified - cannot parse: %v", address)
		}
		conf.ListenHost = address
	}
	if portStr := stringArg(arguments, "--port"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("port is not a number (%v)", portStr)
		}
		conf.ListenPort = p
	}
	if noColor, _ := arguments["--no-color"].(bool); noColor || os.Getenv("NO_COLOR") != "" {
		disabled := false
		conf.Color = &disabled
	}

	if conf.ListenPort < 0 || conf.ListenPort > 65535 {
		return nil, fmt.Errorf("port %v is not in range [0,65535]", conf.ListenPort)
	}
	if conf.UpstreamURL == "" {
		return nil, fmt.Errorf("upstream URL must be passed via environment variable UPSTREAM_URL, command line option --upstream, or the configuration file")
	}

	return conf, nil
}

func stringArg(arguments docopt.Opts, key string) string {
	if v, ok := arguments[key].(string); ok {
		return v
	}
	return ""
}

func newLogger() *log.Logger {
	logger := log.New()

	if env := os.Getenv("ENV"); env == "production" {
		// add mozlog formatter
		logger.Formatter = &mozlog.MozLogFormatter{
			LoggerName: "mcp-proxy",
		}

		// add syslog hook if addr is provided
		syslogAddr := os.Getenv("SYSLOG_ADDR")
		if syslogAddr != "" {
			hook, err := lSyslog.NewSyslogHook("udp", syslogAddr, syslog.LOG_DEBUG, "mcp-proxy")
			if err != nil {
				panic(err)
			}
			logger.Hooks.Add(hook)
		}
	}
	return logger
}
