package orchestrator

import "errors"

// Error taxonomy for the request path. All backend failures surface as one
// of these so callers can classify without knowing which backend ran.
var (
	// ErrBackendUnavailable: the chosen backend cannot be reached or
	// initialized at all (no on-device model, missing API key, network
	// down). Not retried automatically; the message is user-actionable.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrSessionCreation: session bootstrap failed. The manager resets its
	// single-flight state so the next call retries from scratch, but the
	// current call fails immediately.
	ErrSessionCreation = errors.New("session creation failed")

	// ErrRequestFailed: the backend took the session but one prompt call
	// failed. Local to a single queued request; the queue keeps going.
	ErrRequestFailed = errors.New("request failed")

	// ErrConfigUnavailable: a settings read failed. Never propagated from
	// the router, which degrades to local mode and short style instead.
	ErrConfigUnavailable = errors.New("configuration unavailable")
)
