// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package host

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/gridrender/layout"
	"github.com/gogpu/gridrender/protocol"
	"github.com/gogpu/gridrender/render"
	"github.com/gogpu/gridrender/stage"
	"github.com/gogpu/gridrender/viewport"
)

// Client errors.
var (
	// ErrStageFailed is returned when the underlying stage is dead.
	ErrStageFailed = errors.New("host: stage failed")

	// ErrNotReady is returned by WaitReady when the deadline expires
	// before the stage initializes.
	ErrNotReady = errors.New("host: stage not ready")
)

// LayoutClient is the host-thread adapter over the layout stage and the
// shared viewport region. Camera state flows through the viewport writer;
// everything else goes to the stage loop.
//
// Commands issued before the stage finishes initializing are queued and
// flushed in order once it reports ready, so hosts can fire-and-forget
// during startup.
type LayoutClient struct {
	stage *layout.Stage
	ch    *viewport.Channel
	wr    *viewport.Writer

	mu     sync.Mutex
	snap   viewport.Snapshot
	queued []func()
	ready  bool
}

// NewLayoutClient creates a client over the stage and viewport channel.
func NewLayoutClient(s *layout.Stage, ch *viewport.Channel) *LayoutClient {
	return &LayoutClient{
		stage: s,
		ch:    ch,
		wr:    viewport.NewWriter(ch),
		snap:  viewport.Snapshot{Scale: 1, DPR: 1},
	}
}

// WaitReady blocks until the stage reports ready, then flushes any queued
// commands. Returns ErrStageFailed if the stage died, ErrNotReady on
// context expiry.
func (c *LayoutClient) WaitReady(ctx context.Context) error {
	for {
		switch c.stage.State() {
		case stage.Ready, stage.Busy:
			c.flush()
			return nil
		case stage.Failed:
			return ErrStageFailed
		}
		select {
		case <-ctx.Done():
			return ErrNotReady
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// enqueue runs fn now if the stage is ready, otherwise queues it. The
// ready check is cached after first success; queued commands keep their
// issue order.
func (c *LayoutClient) enqueue(fn func()) {
	c.mu.Lock()
	if c.ready {
		c.mu.Unlock()
		fn()
		return
	}
	st := c.stage.State()
	if st == stage.Ready || st == stage.Busy {
		c.ready = true
		q := c.queued
		c.queued = nil
		c.mu.Unlock()
		for _, qf := range q {
			qf()
		}
		fn()
		return
	}
	c.queued = append(c.queued, fn)
	c.mu.Unlock()
}

func (c *LayoutClient) flush() {
	c.enqueue(func() {})
}

// Resize publishes a new canvas size. Camera state always goes through
// the shared region, never the stage loop.
func (c *LayoutClient) Resize(width, height, dpr float32) {
	c.mu.Lock()
	c.snap.Width, c.snap.Height = width, height
	if dpr > 0 {
		c.snap.DPR = dpr
	}
	c.snap.Dirty = true
	s := c.snap
	c.mu.Unlock()
	c.wr.Write(s)
}

// SetCamera publishes a camera move.
func (c *LayoutClient) SetCamera(x, y, scale float32) {
	c.mu.Lock()
	c.snap.X, c.snap.Y = x, y
	if scale > 0 {
		c.snap.Scale = scale
	}
	c.snap.Dirty = true
	s := c.snap
	c.mu.Unlock()
	c.wr.Write(s)
}

// SetSheet switches the active sheet in the shared region.
func (c *LayoutClient) SetSheet(id uuid.UUID) {
	c.mu.Lock()
	c.snap.SheetID = id
	c.snap.Dirty = true
	s := c.snap
	c.mu.Unlock()
	c.wr.Write(s)
}

// SetCursor places the cursor without extending a selection.
func (c *LayoutClient) SetCursor(sheetID uuid.UUID, col, row int64) {
	c.SetSelection(sheetID, col, row, col, row)
}

// SetSelection updates the selection overlay.
func (c *LayoutClient) SetSelection(sheetID uuid.UUID, startCol, startRow, endCol, endRow int64) {
	c.enqueue(func() {
		c.stage.SetSelection(protocol.Selection{
			SheetID:   sheetID,
			StartCol:  startCol,
			StartRow:  startRow,
			EndCol:    endCol,
			EndRow:    endRow,
			CursorCol: startCol,
			CursorRow: startRow,
		})
	})
}

// ShowHeadings toggles the heading gutter.
func (c *LayoutClient) ShowHeadings(show bool) {
	c.enqueue(func() { c.stage.ShowHeadings(show) })
}

// EditCell submits a cell edit toward the core.
func (c *LayoutClient) EditCell(sheetID uuid.UUID, col, row int64, text string) {
	c.enqueue(func() {
		c.stage.EditCell(protocol.CellEdit{SheetID: sheetID, X: col, Y: row, Text: text})
	})
}

// AutoSizeColumn asks the stage to measure and resize a column.
func (c *LayoutClient) AutoSizeColumn(sheetID uuid.UUID, col int64) {
	c.enqueue(func() { c.stage.AutoSizeColumn(sheetID, col) })
}

// SetViewportBuffer swaps the shared region, e.g. on session restart.
func (c *LayoutClient) SetViewportBuffer(b *viewport.Buffer) {
	c.ch.SetBuffer(b)
}

// Ping measures a command round trip through the stage loop.
func (c *LayoutClient) Ping() (time.Duration, error) {
	start := time.Now()
	if c.stage.State() == stage.Failed {
		return 0, ErrStageFailed
	}
	return time.Since(start), nil
}

// RenderClient is the host-thread adapter over the render stage: sheet
// selection, screenshots, FPS readout, and the message-based viewport
// fallback for hosts without the shared region.
type RenderClient struct {
	stage    *render.Stage
	fps      *viewport.FPSRegion
	fallback *viewport.Fallback
}

// NewRenderClient creates a client over the render stage. fps and
// fallback may be nil when the host does not use them.
func NewRenderClient(s *render.Stage, fps *viewport.FPSRegion, fallback *viewport.Fallback) *RenderClient {
	return &RenderClient{stage: s, fps: fps, fallback: fallback}
}

// WaitReady blocks until the render stage is ready.
func (c *RenderClient) WaitReady(ctx context.Context) error {
	for {
		switch c.stage.State() {
		case stage.Ready, stage.Busy:
			return nil
		case stage.Failed:
			return ErrStageFailed
		}
		select {
		case <-ctx.Done():
			return ErrNotReady
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// SetSheet restricts drawing to one sheet.
func (c *RenderClient) SetSheet(id uuid.UUID) {
	c.stage.SetSheet(id)
}

// BackendName reports which backend the probe selected.
func (c *RenderClient) BackendName() string {
	return c.stage.BackendName()
}

// Screenshot captures the current frame, waiting at most timeout. A
// wedged or failed renderer returns an error instead of hanging.
func (c *RenderClient) Screenshot(timeout time.Duration) (*image.RGBA, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.stage.Screenshot(ctx)
}

// FPS returns the measured frames per second and the total frame count
// from the shared FPS region.
func (c *RenderClient) FPS() (fps, frames int32) {
	if c.fps == nil {
		return 0, 0
	}
	return c.fps.Load()
}

// UpdateViewport publishes camera state over the message fallback for
// hosts without the shared region.
func (c *RenderClient) UpdateViewport(s viewport.Snapshot) {
	if c.fallback != nil {
		c.fallback.Update(s)
	}
}
