package internal

// Version is the semantic version of this build. Overridden at release
// time with `-ldflags "-X github.com/lukekenny/mcp-rewrite-proxy/internal.Version=..."`.
var Version = "1.0.0"
