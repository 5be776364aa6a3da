package core

import "errors"

// Closed taxonomy of sentinel errors. Every failure surfaced by this package
// wraps one of these via fmt.Errorf("...: %w", ...) so callers can compare
// with errors.Is regardless of the added context.
var (
	// ErrParse is returned when a textual or wire representation cannot be
	// decoded at all (malformed identifier grammar, truncated buffer, ...).
	ErrParse = errors.New("parse error")

	// ErrInvalid is returned when a candidate value parses structurally but
	// fails a decode-time invariant of the value it is meant to become.
	ErrInvalid = errors.New("decode-time invariant violation")

	// ErrPreload is returned when a trigger's executable fails to preload
	// (WASM module fails to compile/validate).
	ErrPreload = errors.New("preload error")

	// ErrNotFound is returned when a lookup by id finds nothing.
	ErrNotFound = errors.New("not found")

	// ErrOverflow is returned when an arithmetic or counting operation would
	// exceed its representable range.
	ErrOverflow = errors.New("overflow")

	// ErrExecution is returned for a failure while applying an instruction
	// or executing a trigger's action against world state.
	ErrExecution = errors.New("execution error")

	// ErrStructural marks an invariant violation that should be unreachable
	// given the decode-time construction contract; seeing it means a
	// constructor let an invalid value through.
	ErrStructural = errors.New("structural invariant violation")

	// ErrRepeatsOverflow is the specific failure from modifying an
	// Indefinitely trigger's repeat count through Add or ModRepeats, or
	// incrementing Exactly past its representable range. Distinct from
	// ErrNotFound.
	ErrRepeatsOverflow = errors.New("repeats overflow")

	// ErrTriggerNotFound is returned by trigger-set lookups/mutations for an
	// unknown TriggerId. Kept distinct from ErrRepeatsOverflow so callers of
	// ModRepeats can tell "no such trigger" from "this trigger can't be
	// decremented further" without string matching.
	ErrTriggerNotFound = errors.New("trigger not found")
)
