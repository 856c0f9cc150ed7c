// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package protocol

import (
	"errors"
	"sync/atomic"
)

// Frame errors.
var (
	// ErrFrameConsumed is returned when using a frame after its buffer was
	// transferred.
	ErrFrameConsumed = errors.New("protocol: frame already transferred")

	// ErrPortClosed is returned when sending on a closed port.
	ErrPortClosed = errors.New("protocol: port closed")
)

// Frame wraps a serialized message buffer with transfer-of-ownership
// semantics. Sending a frame through a Port moves the buffer to the
// receiver; the sender's reference is neutralized and any further access
// fails rather than silently aliasing transferred memory.
type Frame struct {
	buf []byte
}

// NewFrame wraps a byte buffer in a frame. The frame takes ownership of
// the slice; the caller must not retain it.
func NewFrame(buf []byte) *Frame {
	return &Frame{buf: buf}
}

// Bytes returns the frame's buffer, or nil if the frame was transferred.
func (f *Frame) Bytes() []byte {
	return f.buf
}

// Len returns the buffer length, or 0 after transfer.
func (f *Frame) Len() int {
	return len(f.buf)
}

// Take moves the buffer out of the frame, neutralizing it. A second Take
// (or any Bytes call after Take) observes an empty frame.
func (f *Frame) Take() ([]byte, error) {
	if f.buf == nil {
		return nil, ErrFrameConsumed
	}
	b := f.buf
	f.buf = nil
	return b, nil
}

// Port is one direction of a message channel between two stages. Delivery
// is FIFO in send order; no ordering holds across distinct ports. Sending
// transfers frame ownership to the receiving side.
type Port struct {
	ch     chan []byte
	closed atomic.Bool
}

// DefaultPortCapacity bounds in-flight frames per port. The pipeline has
// no explicit flow control; control messages are small and cell batches
// are bounded by the visible bucket count, so a modest buffer suffices.
const DefaultPortCapacity = 64

// NewPort creates a port with the given capacity (0 means
// DefaultPortCapacity).
func NewPort(capacity int) *Port {
	if capacity <= 0 {
		capacity = DefaultPortCapacity
	}
	return &Port{ch: make(chan []byte, capacity)}
}

// Send transfers the frame to the port. The frame is neutralized even if
// the send fails, honoring the no-touch-after-transfer contract.
func (p *Port) Send(f *Frame) error {
	buf, err := f.Take()
	if err != nil {
		return err
	}
	if p.closed.Load() {
		return ErrPortClosed
	}
	p.ch <- buf
	return nil
}

// Recv returns the channel of incoming buffers for select loops. The
// channel yields raw buffers; receivers wrap or decode as needed.
func (p *Port) Recv() <-chan []byte {
	return p.ch
}

// Close marks the port closed and closes the receive channel. Concurrent
// senders racing Close may panic on a closed channel; stages stop their
// send loops before tearing ports down.
func (p *Port) Close() {
	if p.closed.CompareAndSwap(false, true) {
		close(p.ch)
	}
}

// Mailbox is a single-slot, latest-wins channel for render batches. A slow
// consumer drops intermediate batches instead of queuing them: only the
// most recent state matters for a real-time visual pipeline.
type Mailbox struct {
	slot atomic.Pointer[[]byte]
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Put transfers the frame into the mailbox, replacing any unconsumed
// batch. Returns the number of batches dropped (0 or 1).
func (m *Mailbox) Put(f *Frame) (dropped int, err error) {
	buf, err := f.Take()
	if err != nil {
		return 0, err
	}
	if prev := m.slot.Swap(&buf); prev != nil {
		dropped = 1
	}
	return dropped, nil
}

// Get removes and returns the latest batch, or nil if none arrived since
// the last Get. Get never blocks.
func (m *Mailbox) Get() []byte {
	p := m.slot.Swap(nil)
	if p == nil {
		return nil
	}
	return *p
}
