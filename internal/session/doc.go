// Package session holds the per-user session state: the Session record, the
// process-wide Registry, the pending-initialization Staging store and the
// permission Gate.
//
// The Registry is the single source of truth for live sessions. All mutation
// of a Session happens through accessor methods that hold the session's
// mutex, so secondary-channel handlers and REST-triggered teardown can race
// safely.
package session
