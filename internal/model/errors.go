package model

import "errors"

// Common errors used across the application
var (
	// Input errors
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrMalformedIdentity = errors.New("malformed identity")

	// Account errors
	ErrAccountNotFound  = errors.New("account not found")
	ErrIdentityMismatch = errors.New("document identity does not match account")

	// Peer errors
	ErrPeerUnreachable = errors.New("peer unreachable")

	// Session errors
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionAlreadyStarting = errors.New("session is already starting")
	ErrInvalidLobbyType       = errors.New("invalid lobby type")
	ErrInvalidChannel         = errors.New("invalid channel")
	ErrHandshakeTimeout       = errors.New("session start handshake timed out")
	ErrSessionStartRejected   = errors.New("game server rejected session start")

	// Storage errors
	ErrBackingStoreUnavailable = errors.New("backing store unavailable")
	ErrCorruptRecord           = errors.New("stored record is corrupt")
)
