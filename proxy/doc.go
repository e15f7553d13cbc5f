// Package proxy implements a rewrite proxy for HTTP Streamable MCP
// traffic. Requests arriving on /mcp are forwarded to a single upstream
// MCP server with hop-by-hop headers stripped and the MCP content
// negotiation headers injected; the upstream status code, headers and body
// pass back to the client unmodified.
//
// client ----> [ proxy ] ----> upstream MCP server
//
// Server-sent event responses are relayed line by line with a flush after
// every line, so streaming passes through without buffering. Every packet
// crossing the proxy is logged through a flowlog.Logger.
package proxy
