// Package server exposes the HTTP surface: the channel-selection handshake,
// the dashboard websocket, health endpoints and Prometheus metrics.
package server
