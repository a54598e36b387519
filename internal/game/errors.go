package game

import "errors"

// Sentinel errors returned by engine and resolver operations. The transport
// layer maps these to structured failure payloads; a failed phase guard is a
// normal waiting status, not an error.
var (
	ErrInvalidParticipant  = errors.New("invalid participant")
	ErrMatchNotFound       = errors.New("match not found")
	ErrMatchFull           = errors.New("match is full")
	ErrMatchAlreadyStarted = errors.New("match already started")
	ErrUnknownParticipant  = errors.New("participant not part of this match")
	ErrInvalidMove         = errors.New("invalid move")
	ErrInvalidZone         = errors.New("invalid zone")
	ErrLockTimeout         = errors.New("timed out waiting for match lock")
)
