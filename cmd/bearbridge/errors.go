package main

import "errors"

// Bridge and capture error taxonomy. None of these are fatal: the bridge and
// the capture loop log and continue.
var (
	// ErrActorNotBound: a command arrived before the actor was bound.
	ErrActorNotBound = errors.New("actor not bound")

	// ErrTransportUnavailable: an event was emitted with no host handler registered.
	ErrTransportUnavailable = errors.New("no bridge transport registered")

	// ErrBridgeClosed: the daemon loop is gone and can no longer accept commands.
	ErrBridgeClosed = errors.New("bridge closed")

	// ErrAcquisition: no frame could be taken from the capture source.
	ErrAcquisition = errors.New("frame acquisition failed")

	// ErrAnalysis: the analysis service rejected or failed a call.
	ErrAnalysis = errors.New("frame analysis failed")

	// ErrPermissionDenied: the capture source is not accessible.
	ErrPermissionDenied = errors.New("capture permission denied")
)
