// Package orchestrator is the application layer. It owns the session
// lifecycle end to end: consuming a staged handshake when the dashboard
// websocket authenticates, opening the upstream and downstream channels,
// registering role-tiered subscriptions, and running the ordered teardown
// sequence. It is the only package that references multiple domain
// components.
package orchestrator
