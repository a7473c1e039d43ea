// Package forwarding implements the downstream analytics channel: a
// websocket that carries chat records, stream lifecycle records and metadata
// snapshots out, and processed-result records back in. Publishes run behind
// a circuit breaker so a dead backend cannot stall event handling.
package forwarding
