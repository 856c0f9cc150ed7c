// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package protocol

import (
	"errors"
	"testing"
)

func TestFrameTransferNeutralizesSender(t *testing.T) {
	f := NewFrame([]byte{1, 2, 3})
	p := NewPort(1)

	if err := p.Send(f); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// The producer's handle is dead after transfer.
	if f.Bytes() != nil {
		t.Error("sender can still read the buffer after transfer")
	}
	if f.Len() != 0 {
		t.Error("sender still observes a length after transfer")
	}
	if _, err := f.Take(); !errors.Is(err, ErrFrameConsumed) {
		t.Errorf("second Take error = %v, want ErrFrameConsumed", err)
	}

	// The receiver got the bytes intact.
	got := <-p.Recv()
	if len(got) != 3 || got[0] != 1 {
		t.Errorf("receiver got %v", got)
	}
}

func TestPortFIFO(t *testing.T) {
	p := NewPort(8)
	for i := byte(0); i < 5; i++ {
		if err := p.Send(NewFrame([]byte{i})); err != nil {
			t.Fatal(err)
		}
	}
	for i := byte(0); i < 5; i++ {
		got := <-p.Recv()
		if got[0] != i {
			t.Fatalf("out of order: got %d at position %d", got[0], i)
		}
	}
}

func TestPortSendAfterClose(t *testing.T) {
	p := NewPort(1)
	p.Close()
	if err := p.Send(NewFrame([]byte{1})); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Send after Close = %v, want ErrPortClosed", err)
	}
}

func TestMailboxLatestWins(t *testing.T) {
	m := NewMailbox()

	if got := m.Get(); got != nil {
		t.Fatalf("empty mailbox returned %v", got)
	}

	if _, err := m.Put(NewFrame([]byte{1})); err != nil {
		t.Fatal(err)
	}
	dropped, err := m.Put(NewFrame([]byte{2}))
	if err != nil {
		t.Fatal(err)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}

	got := m.Get()
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("Get = %v, want [2]", got)
	}
	if m.Get() != nil {
		t.Error("second Get should return nil")
	}
}
