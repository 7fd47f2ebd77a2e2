// Package common defines shared constants and sentinel errors used across
// the StormDrive storage core. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the addressed session, object, version or storage
	// key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means the operation is well-formed but the current state
	// rejects it: a bad status transition, a double finalize, a chunk
	// resubmitted with different bytes. Callers should inspect status
	// before retrying.
	ErrConflict = errors.New("conflict")

	// ErrInvalid means the request itself is malformed: index out of range,
	// oversized chunk, unsupported tag length, undecodable field.
	ErrInvalid = errors.New("invalid request")

	// ErrCorruption means persisted data failed an integrity check:
	// commitment hash mismatch, manifest hash mismatch, malformed frame,
	// an envelope that does not unwrap. Never downgraded to ErrNotFound.
	ErrCorruption = errors.New("data corruption")

	// ErrExpired marks a session past its expiry timestamp. It wraps
	// ErrConflict, so transports that only know the four base kinds map
	// it as a conflict while callers can still tell it apart.
	ErrExpired = fmt.Errorf("session expired: %w", ErrConflict)

	// ErrIncomplete is returned by finalize when the receipt set does not
	// exactly cover every chunk index. Wraps ErrConflict like ErrExpired.
	ErrIncomplete = fmt.Errorf("upload incomplete: %w", ErrConflict)

	// ErrInternal covers unexpected repository or storage failures.
	ErrInternal = errors.New("internal error")
)
