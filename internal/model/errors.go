package model

import "errors"

// Error taxonomy shared by the bridge engine, the reconciler and the
// intake/indexer HTTP surfaces. Callers use errors.Is against these
// sentinels to drive retry policy; see internal/reconciler and
// internal/bridge.
var (
	// ErrValidation marks a caller-fault input error. Never retried.
	ErrValidation = errors.New("validation")
	// ErrNotReady marks a fiber that is not yet visible at the snapshot
	// layer. The orchestrator treats this as "skip this tick".
	ErrNotReady = errors.New("not ready")
	// ErrStateConflict marks an operation attempted against a fiber in
	// the wrong current state.
	ErrStateConflict = errors.New("state conflict")
	// ErrSequenceConflict marks a lost optimistic-concurrency race that
	// survived the reconciler's bounded retries.
	ErrSequenceConflict = errors.New("sequence conflict")
	// ErrSignatureRefused marks a signer-side rejection of the input.
	ErrSignatureRefused = errors.New("signature refused")
	// ErrNetwork marks a transport-level failure reaching the data or
	// snapshot layer.
	ErrNetwork = errors.New("network")
	// ErrUpstream marks a non-2xx response from the data or snapshot
	// layer that isn't one of the distinguished classes above.
	ErrUpstream = errors.New("upstream")

	// ErrSignatureVerificationFailed marks a proof that failed to verify
	// during signature aggregate verification (C1).
	ErrSignatureVerificationFailed = errors.New("signature verification failed")
	// ErrInvalidCanonicalForm marks a value that could not be
	// canonicalized (unsupported JSON shape, e.g. NaN).
	ErrInvalidCanonicalForm = errors.New("invalid canonical form")
	// ErrSignatureMalformed marks a proof whose signature bytes could
	// not be parsed as DER.
	ErrSignatureMalformed = errors.New("signature malformed")

	// ErrNotFound marks a missing fiber/rejection/record lookup.
	ErrNotFound = errors.New("not found")
)
