// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package layout is the middle stage of the pipeline. Once per tick it
// reads the shared viewport, requests cell data for newly visible hash
// buckets from the core, shapes the text of loaded buckets, and publishes
// a render batch to the renderer's mailbox. It holds no authoritative
// data: everything here is a cache rebuildable from core messages.
package layout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/gridrender/fontatlas"
	"github.com/gogpu/gridrender/grid"
	"github.com/gogpu/gridrender/internal/logging"
	"github.com/gogpu/gridrender/protocol"
	"github.com/gogpu/gridrender/stage"
	"github.com/gogpu/gridrender/viewport"
)

// DefaultTickInterval coalesces viewport and data changes to roughly the
// display rate; ticks with nothing to do are cheap.
const DefaultTickInterval = 16 * time.Millisecond

// Options configures the layout stage.
type Options struct {
	// Families are the font families to load (nil means the built-ins).
	Families []fontatlas.Family

	// Atlas configures atlas rasterization.
	Atlas fontatlas.Options

	// TickInterval is the coalescing tick period (0 means
	// DefaultTickInterval).
	TickInterval time.Duration

	// RequestTimeout is the pending bucket re-request timeout (0 means
	// grid.DefaultRequestTimeout).
	RequestTimeout time.Duration

	// EngineInit, when set, runs concurrently with font loading during
	// initialization. Its failure is fatal to the stage; hosts use it to
	// bind stage-external resources.
	EngineInit func(context.Context) error
}

// Conn is the layout stage's link to the core.
type Conn struct {
	// Out carries layout-to-core messages.
	Out *protocol.Port

	// In carries core-to-layout messages.
	In *protocol.Port
}

type bucketData struct {
	cells []protocol.Cell
	fills []protocol.Fill
}

type sheetCache struct {
	offsets *grid.SheetOffsets
	pending *grid.PendingSet
	buckets map[protocol.HashPos]bucketData
}

// Stage is the layout worker. Construct with New, drive with Run in its
// own goroutine. Exported mutators are safe to call from the host side.
type Stage struct {
	opts   Options
	vp     viewport.Source
	core   Conn
	out    *protocol.Mailbox
	status chan<- *stage.Error
	disp   *protocol.Dispatcher

	atlas  *fontatlas.Atlas
	shaper *fontatlas.Shaper

	state        stage.State
	sheets       map[uuid.UUID]*sheetCache
	active       uuid.UUID
	selection    *protocol.Selection
	showHeadings bool
	dirty        bool

	statec chan chan stage.State // state queries into the loop
	cmds   chan func()           // host commands executed on the loop
}

// New creates a layout stage reading camera state from vp, exchanging
// messages with the core over conn, and publishing batches to out.
// Errors are reported on status (may be nil).
func New(vp viewport.Source, conn Conn, out *protocol.Mailbox, status chan<- *stage.Error, opts Options) *Stage {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Families == nil {
		opts.Families = fontatlas.DefaultFamilies()
	}
	s := &Stage{
		opts:         opts,
		vp:           vp,
		core:         conn,
		out:          out,
		status:       status,
		sheets:       make(map[uuid.UUID]*sheetCache),
		showHeadings: true,
		statec:       make(chan chan stage.State),
		cmds:         make(chan func(), 16),
	}
	s.disp = s.buildDispatcher()
	return s
}

func (s *Stage) buildDispatcher() *protocol.Dispatcher {
	d := protocol.NewDispatcher("layout")
	d.Handle(protocol.TagSheetInfo, func(m protocol.Message) {
		s.cacheFor(m.(protocol.SheetInfo).SheetID)
	})
	d.Handle(protocol.TagSheetOffsets, func(m protocol.Message) {
		s.handleOffsets(m.(protocol.SheetOffsets))
	})
	d.Handle(protocol.TagHashCells, func(m protocol.Message) {
		s.handleHashCells(m.(protocol.HashCells))
	})
	d.Handle(protocol.TagDirtyHashes, func(m protocol.Message) {
		s.handleDirtyHashes(m.(protocol.DirtyHashes))
	})
	d.Handle(protocol.TagSelection, func(m protocol.Message) {
		sel := m.(protocol.Selection)
		s.selection = &sel
		s.dirty = true
	})
	d.Handle(protocol.TagClearSheet, func(m protocol.Message) {
		s.handleClearSheet(m.(protocol.ClearSheet))
	})
	d.Handle(protocol.TagSheetDeleted, func(m protocol.Message) {
		delete(s.sheets, m.(protocol.SheetDeleted).SheetID)
		s.dirty = true
	})
	return d
}

// Run initializes the stage and processes messages and ticks until the
// context is canceled. A failed initialization reports a fatal error and
// returns; a panicking tick is contained and reported as non-fatal.
func (s *Stage) Run(ctx context.Context) {
	s.state = stage.Initializing
	if err := s.initialize(ctx); err != nil {
		s.state = stage.Failed
		s.report(&stage.Error{Stage: "layout", Err: err, Fatal: true})
		// Drain state queries so host calls do not hang against a dead
		// stage.
		for {
			select {
			case <-ctx.Done():
				return
			case q := <-s.statec:
				q <- stage.Failed
			case <-s.cmds:
			}
		}
	}
	s.state = stage.Ready
	s.sendToCore(protocol.Ready{Stage: protocol.StageLayout})

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()
	in := s.core.In.Recv()
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-s.statec:
			q <- s.state
		case cmd := <-s.cmds:
			cmd()
		case buf, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			s.disp.Dispatch(buf)
		case <-ticker.C:
			s.tick(time.Now())
		}
	}
}

// initialize loads fonts and runs the optional engine hook concurrently.
// Font loading is already fail-soft per family inside fontatlas; only a
// fully unusable font set or an engine failure is fatal here.
func (s *Stage) initialize(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		atlas, err := fontatlas.Load(s.opts.Families, s.opts.Atlas)
		if err != nil {
			return fmt.Errorf("layout: font init: %w", err)
		}
		s.atlas = atlas
		s.shaper = fontatlas.NewShaper(atlas)
		return nil
	})
	if s.opts.EngineInit != nil {
		g.Go(func() error {
			if err := s.opts.EngineInit(gctx); err != nil {
				return fmt.Errorf("layout: engine init: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// State reports the current lifecycle state. Safe from any goroutine; it
// round-trips through the stage loop. Before the loop starts servicing
// queries the stage is still initializing, so a timed-out query reports
// Initializing rather than Failed; a failed stage keeps answering queries
// from its drain loop.
func (s *Stage) State() stage.State {
	q := make(chan stage.State, 1)
	select {
	case s.statec <- q:
		return <-q
	case <-time.After(time.Second):
		return stage.Initializing
	}
}

// do schedules fn on the stage loop. Used by host-facing mutators.
func (s *Stage) do(fn func()) {
	select {
	case s.cmds <- fn:
	default:
		logging.L().Warn("layout command queue full, dropping command")
	}
}

// SetSelection updates cursor and selection overlay state.
func (s *Stage) SetSelection(sel protocol.Selection) {
	s.do(func() {
		s.selection = &sel
		s.dirty = true
	})
}

// ShowHeadings records whether the host composites the heading gutter
// over the canvas and invalidates the current batch. The request window
// is unaffected: the gutter overlays content, it does not shrink it.
func (s *Stage) ShowHeadings(show bool) {
	s.do(func() {
		s.showHeadings = show
		s.dirty = true
	})
}

// AutoSizeColumn measures the loaded cells of a column and sends the
// resulting width to the core as a ColumnResize. Only loaded buckets
// contribute; the core answers with updated offsets for all consumers.
func (s *Stage) AutoSizeColumn(sheetID uuid.UUID, col int64) {
	s.do(func() {
		c, ok := s.sheets[sheetID]
		if !ok {
			return
		}
		width := s.measureColumn(c, col)
		if width <= 0 {
			return
		}
		s.sendToCore(protocol.ColumnResize{SheetID: sheetID, Column: col, Width: width})
	})
}

// EditCell forwards a cell edit from the host toward the core.
func (s *Stage) EditCell(edit protocol.CellEdit) {
	s.do(func() {
		s.sendToCore(edit)
	})
}

func (s *Stage) cacheFor(id uuid.UUID) *sheetCache {
	c, ok := s.sheets[id]
	if !ok {
		c = &sheetCache{
			offsets: grid.NewSheetOffsets(),
			pending: grid.NewPendingSet(s.opts.RequestTimeout),
			buckets: make(map[protocol.HashPos]bucketData),
		}
		s.sheets[id] = c
	}
	return c
}

func (s *Stage) handleOffsets(m protocol.SheetOffsets) {
	c := s.cacheFor(m.SheetID)
	c.offsets.Apply(m)
	// Bucket membership depends on offsets; drop everything and reload.
	c.pending.Reset()
	clear(c.buckets)
	s.dirty = true
}

func (s *Stage) handleHashCells(m protocol.HashCells) {
	c := s.cacheFor(m.SheetID)
	c.buckets[m.Hash] = bucketData{cells: m.Cells, fills: m.Fills}
	c.pending.Satisfy(m.Hash)
	s.dirty = true
}

func (s *Stage) handleDirtyHashes(m protocol.DirtyHashes) {
	c := s.cacheFor(m.SheetID)
	for _, h := range m.Hashes {
		c.pending.Invalidate(h)
		delete(c.buckets, h)
	}
	s.dirty = true
}

func (s *Stage) handleClearSheet(m protocol.ClearSheet) {
	c := s.cacheFor(m.SheetID)
	c.pending.Reset()
	clear(c.buckets)
	s.dirty = true
}

// tick is one coalesced work unit: viewport sync, bucket requests, and
// batch production when anything changed. A panic inside a tick is
// contained so one bad cell cannot take the stage down.
func (s *Stage) tick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.state = stage.Ready
			s.report(&stage.Error{Stage: "layout", Err: fmt.Errorf("tick panic: %v", r)})
		}
	}()

	snap, _ := s.vp.Read()
	if snap.Width <= 0 || snap.Height <= 0 {
		return
	}
	if snap.SheetID != s.active {
		s.active = snap.SheetID
		s.dirty = true
	}
	c := s.cacheFor(snap.SheetID)

	visible := grid.VisibleTiles(snap.VisibleBounds())
	if req := c.pending.Update(visible, now); len(req) > 0 {
		s.sendToCore(protocol.ViewportChanged{SheetID: snap.SheetID, Hashes: req})
	}

	if !s.dirty {
		return
	}
	s.state = stage.Busy
	buf := s.buildBatch(snap.SheetID, c)
	if dropped, err := s.out.Put(protocol.NewFrame(buf)); err == nil && dropped > 0 {
		logging.L().Debug("renderer behind, dropped intermediate batch")
	}
	s.dirty = false
	s.state = stage.Ready
}

func (s *Stage) sendToCore(m protocol.Message) {
	f, err := protocol.Encode(m)
	if err != nil {
		logging.L().Error("encode failed", "tag", m.MessageTag().String(), "err", err)
		return
	}
	if err := s.core.Out.Send(f); err != nil {
		logging.L().Warn("send to core failed", "err", err)
	}
}

func (s *Stage) report(e *stage.Error) {
	logging.L().Error("layout stage error", "err", e.Err, "fatal", e.Fatal)
	if s.status == nil {
		return
	}
	select {
	case s.status <- e:
	default:
	}
}
