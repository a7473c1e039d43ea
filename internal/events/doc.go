// Package events routes decoded upstream notifications to their per-type
// handlers and runs the periodic metadata publisher for live streams. All
// handlers re-check the session registry before mutating state, so a frame
// that races with teardown is discarded instead of resurrecting a session.
package events
