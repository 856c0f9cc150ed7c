// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package protocol

import (
	"github.com/gogpu/gridrender/internal/logging"
)

// Handler processes one decoded message.
type Handler func(Message)

// Dispatcher decodes incoming frames and routes them to per-tag handlers.
// Protocol errors (unknown discriminant, version mismatch, truncation) are
// logged and the frame is dropped; a panicking handler is likewise caught
// at the dispatch boundary so a single bad message never crashes a stage.
//
// Dispatcher is not safe for concurrent mutation; register all handlers
// before the stage loop starts.
type Dispatcher struct {
	name     string
	handlers map[Tag]Handler
}

// NewDispatcher creates a dispatcher. The name appears in log records to
// identify which channel dropped a frame.
func NewDispatcher(name string) *Dispatcher {
	return &Dispatcher{
		name:     name,
		handlers: make(map[Tag]Handler),
	}
}

// Handle registers the handler for a tag, replacing any previous one.
func (d *Dispatcher) Handle(t Tag, h Handler) {
	d.handlers[t] = h
}

// Dispatch decodes a raw buffer and invokes the matching handler.
// It never panics and never returns an error to the transport: every
// failure mode is a logged drop.
func (d *Dispatcher) Dispatch(buf []byte) {
	m, err := Decode(buf)
	if err != nil {
		logging.L().Warn("dropping undecodable frame",
			"channel", d.name, "len", len(buf), "err", err)
		return
	}

	h, ok := d.handlers[m.MessageTag()]
	if !ok {
		logging.L().Warn("no handler for message",
			"channel", d.name, "tag", m.MessageTag().String())
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logging.L().Warn("handler panicked",
				"channel", d.name, "tag", m.MessageTag().String(), "panic", r)
		}
	}()
	h(m)
}
