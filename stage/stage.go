// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package stage holds the lifecycle vocabulary shared by the layout and
// render workers: the state machine states and the error type reported on
// the pipeline status channel.
package stage

import "fmt"

// State is a worker lifecycle state.
type State uint8

const (
	Uninitialized State = iota
	Initializing
	Ready
	Busy
	Failed
	Disposed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Busy:
		return "busy"
	case Failed:
		return "failed"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Error is a worker fault reported on the status channel. Fatal errors
// mean the stage stopped and moved to Failed; non-fatal errors describe a
// degraded condition the stage recovered from.
type Error struct {
	Stage string
	Err   error
	Fatal bool
}

func (e *Error) Error() string {
	kind := "recovered"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
