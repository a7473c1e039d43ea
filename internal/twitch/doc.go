// Package twitch implements the upstream channel API and the event-source
// websocket connector against the Twitch Helix and EventSub APIs.
package twitch
