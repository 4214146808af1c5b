package slprotocol

import (
	"errors"
	"fmt"
)

// Sentinel errors for the driver.
var (
	// ErrClosed indicates the device handle was closed.
	ErrClosed = errors.New("device closed")

	// ErrIdentification indicates the device did not answer the
	// identification query with a well-formed line.
	ErrIdentification = errors.New("unrecognized identification reply")

	// ErrInitTimeout indicates discovery did not finish within LoginTimeout.
	ErrInitTimeout = errors.New("discovery did not complete")

	// ErrVolumeRange indicates a volume level outside [0.0, 1.0].
	ErrVolumeRange = errors.New("volume out of range")

	// ErrLineTooLong indicates an inbound line exceeded MaxLineLength.
	ErrLineTooLong = errors.New("line too long")

	// ErrNotConnected indicates a write was attempted on a connection that
	// went away between connecting and writing.
	ErrNotConnected = errors.New("not connected")
)

// ConnectionError represents a failure to establish or use the connection.
// Dial errors, timeouts and truncated handshakes all surface as this type.
type ConnectionError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("connection failed: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, cause error) error {
	return &ConnectionError{Message: message, Cause: cause}
}

// ListKind names one of the enumerated lists discovered at startup.
type ListKind int

const (
	// ListSources is the input source list.
	ListSources ListKind = iota
	// ListAudioModes is the audio processing mode list.
	ListAudioModes
	// ListVoicings is the voicing (sound mode) list.
	ListVoicings
)

// String returns the list name.
func (k ListKind) String() string {
	switch k {
	case ListSources:
		return "source"
	case ListAudioModes:
		return "audio mode"
	case ListVoicings:
		return "voicing"
	default:
		return "list"
	}
}

// LookupError is returned when a selection label is not in the current list.
type LookupError struct {
	List  ListKind
	Label string
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	return fmt.Sprintf("unknown %s '%s'", e.List, e.Label)
}
