// Package netutil builds the outbound HTTP clients used to reach block
// explorers and JSON-RPC nodes.
//
// Clients connect directly by default. When a SOCKS5 proxy is configured
// (for example a local Tor daemon or an SSH tunnel), every connection is
// dialed through it so RPC providers only see the proxy's address.
package netutil
