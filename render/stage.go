// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render is the final stage of the pipeline: it owns the drawing
// backend, ingests render batches from the layout stage's mailbox, syncs
// the camera from the shared viewport every frame, and skips frames when
// nothing changed. It never shapes text; glyphs arrive pre-positioned and
// reference atlas pages the stage uploaded at startup.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/gridrender/backend"
	"github.com/gogpu/gridrender/batch"
	"github.com/gogpu/gridrender/fontatlas"
	"github.com/gogpu/gridrender/internal/logging"
	"github.com/gogpu/gridrender/protocol"
	"github.com/gogpu/gridrender/stage"
	"github.com/gogpu/gridrender/viewport"
)

// DefaultFrameInterval paces the frame loop at roughly the display rate.
const DefaultFrameInterval = 16 * time.Millisecond

// ErrScreenshot is returned when the backend cannot produce pixels.
var ErrScreenshot = errors.New("render: screenshot failed")

// Options configures the render stage.
type Options struct {
	// FrameInterval is the frame pacing period (0 means
	// DefaultFrameInterval).
	FrameInterval time.Duration

	// BackendName forces a specific backend instead of probing in
	// priority order. Useful for tests.
	BackendName string

	// Families are the font families to load for atlas pages (nil means
	// the built-ins). Must match the layout stage's list; page UIDs are
	// derived from load order.
	Families []fontatlas.Family

	// Atlas configures atlas rasterization; must match the layout stage.
	Atlas fontatlas.Options
}

// Conn is the render stage's link to the core.
type Conn struct {
	// Out carries render-to-core messages.
	Out *protocol.Port

	// In carries core-to-render messages.
	In *protocol.Port
}

// Stage is the render worker. Construct with New, drive with Run in its
// own goroutine.
type Stage struct {
	opts   Options
	vp     viewport.Source
	core   Conn
	in     *protocol.Mailbox
	fps    *viewport.FPSRegion
	status chan<- *stage.Error
	disp   *protocol.Dispatcher

	backend backend.Backend
	atlas   *fontatlas.Atlas

	state       stage.State
	cur         batch.Batch
	haveBatch   bool
	needsDraw   bool
	activeSheet uuid.UUID
	failedPages map[uint32]bool
	devW, devH  int

	windowStart  time.Time
	windowFrames int32

	drawn   atomic.Int64
	skipped atomic.Int64

	statec chan chan stage.State
	cmds   chan func()
}

// New creates a render stage reading camera state from vp, receiving
// batches on in, exchanging messages with the core over conn, and
// publishing frame counters to fps (may be nil). Errors are reported on
// status (may be nil).
func New(vp viewport.Source, conn Conn, in *protocol.Mailbox, fps *viewport.FPSRegion, status chan<- *stage.Error, opts Options) *Stage {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	if opts.Families == nil {
		opts.Families = fontatlas.DefaultFamilies()
	}
	s := &Stage{
		opts:        opts,
		vp:          vp,
		core:        conn,
		in:          in,
		fps:         fps,
		status:      status,
		failedPages: make(map[uint32]bool),
		statec:      make(chan chan stage.State),
		cmds:        make(chan func(), 16),
	}
	s.disp = s.buildDispatcher()
	return s
}

func (s *Stage) buildDispatcher() *protocol.Dispatcher {
	d := protocol.NewDispatcher("render")
	drop := func(protocol.Message) {}
	// The renderer draws whatever the layout stage batched; core
	// broadcasts are acknowledged but carry no render-side state beyond
	// sheet removal.
	for _, t := range []protocol.Tag{
		protocol.TagSheetInfo, protocol.TagSheetOffsets, protocol.TagDirtyHashes,
		protocol.TagHashCells, protocol.TagSelection, protocol.TagInitSheet,
	} {
		d.Handle(t, drop)
	}
	d.Handle(protocol.TagSheetDeleted, func(m protocol.Message) {
		s.dropSheet(m.(protocol.SheetDeleted).SheetID)
	})
	d.Handle(protocol.TagClearSheet, func(m protocol.Message) {
		s.dropSheet(m.(protocol.ClearSheet).SheetID)
	})
	return d
}

func (s *Stage) dropSheet(id uuid.UUID) {
	if s.haveBatch && s.cur.SheetID == id {
		s.cur = batch.Batch{}
		s.haveBatch = false
		s.needsDraw = true
	}
}

// Run initializes the backend and atlas, then paces frames until the
// context is canceled. Backend selection failure is fatal; per-frame
// panics are contained.
func (s *Stage) Run(ctx context.Context) {
	s.state = stage.Initializing
	if err := s.initialize(ctx); err != nil {
		s.state = stage.Failed
		s.report(&stage.Error{Stage: "render", Err: err, Fatal: true})
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
	s.sendToCore(protocol.Ready{Stage: protocol.StageRender})
	logging.L().Info("render stage ready", "backend", s.backend.Name())

	ticker := time.NewTicker(s.opts.FrameInterval)
	defer ticker.Stop()
	in := s.core.In.Recv()
	for {
		select {
		case <-ctx.Done():
			s.dispose()
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
			s.frame(time.Now())
		}
	}
}

// initialize probes the backend and loads the atlas concurrently, then
// uploads the pages. An unusable font set degrades to placeholder text;
// only a missing backend is fatal.
func (s *Stage) initialize(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var b backend.Backend
		if s.opts.BackendName != "" {
			b = backend.Get(s.opts.BackendName)
			if b == nil {
				return fmt.Errorf("render: backend %q not registered", s.opts.BackendName)
			}
			if err := b.Init(1, 1); err != nil {
				return fmt.Errorf("render: backend init: %w", err)
			}
		} else {
			var err error
			b, err = backend.Probe(1, 1)
			if err != nil {
				return fmt.Errorf("render: %w", err)
			}
		}
		s.backend = b
		return nil
	})
	g.Go(func() error {
		atlas, err := fontatlas.Load(s.opts.Families, s.opts.Atlas)
		if err != nil {
			logging.L().Warn("render atlas unavailable, text will draw as placeholders", "err", err)
			return nil
		}
		s.atlas = atlas
		return nil
	})
	if err := g.Wait(); err != nil {
		if s.backend != nil {
			s.backend.Close()
			s.backend = nil
		}
		return err
	}
	s.uploadPages()
	return nil
}

// uploadPages pushes every atlas page to the backend. A failed page is
// remembered; its glyphs draw as placeholders instead of aborting frames.
func (s *Stage) uploadPages() {
	if s.atlas == nil {
		return
	}
	for _, p := range s.atlas.Pages() {
		if err := s.backend.UploadTexture(p.UID, p.Img); err != nil {
			logging.L().Warn("atlas page upload failed, using placeholders",
				"page", p.UID, "err", err)
			s.failedPages[p.UID] = true
		}
	}
}

// frame is one paced unit of work: viewport sync, batch ingest, then
// either a draw or an idle skip. Skipped frames do not advance the frame
// counter, which is what lets the host detect an idle renderer.
func (s *Stage) frame(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.state = stage.Ready
			s.report(&stage.Error{Stage: "render", Err: fmt.Errorf("frame panic: %v", r)})
		}
	}()

	snap, changed := s.vp.Read()
	if snap.Width <= 0 || snap.Height <= 0 {
		return
	}
	if changed || snap.Dirty {
		s.needsDraw = true
		if mc, ok := s.vp.(interface{ MarkClean() }); ok && snap.Dirty {
			mc.MarkClean()
			snap.Dirty = false
		}
	}

	if buf := s.in.Get(); buf != nil {
		b, err := batch.Decode(buf)
		switch {
		case err != nil:
			logging.L().Warn("dropping undecodable batch", "err", err)
		case s.activeSheet != uuid.Nil && b.SheetID != s.activeSheet:
			logging.L().Debug("dropping batch for inactive sheet", "sheet", b.SheetID)
		default:
			s.cur = b
			s.haveBatch = true
			s.needsDraw = true
		}
	}

	if !s.needsDraw {
		s.skipped.Add(1)
		return
	}

	s.state = stage.Busy
	defer func() { s.state = stage.Ready }()

	// Resize before drawing so the frame comes out at the new size.
	dw := int(snap.Width * snap.DPR)
	dh := int(snap.Height * snap.DPR)
	if dw != s.devW || dh != s.devH {
		if err := s.backend.Resize(dw, dh); err != nil {
			s.report(&stage.Error{Stage: "render", Err: err})
			return
		}
		s.devW, s.devH = dw, dh
	}

	quads := s.cur.Quads
	if len(s.failedPages) > 0 {
		quads = substitutePlaceholders(quads, s.failedPages)
	}
	if err := s.backend.Draw(snap, quads); err != nil {
		s.report(&stage.Error{Stage: "render", Err: err})
		return
	}
	s.needsDraw = false
	s.drawn.Add(1)
	s.tickFPS(now)
}

func (s *Stage) tickFPS(now time.Time) {
	if s.fps != nil {
		s.fps.AddFrame()
	}
	if s.windowStart.IsZero() {
		s.windowStart = now
	}
	s.windowFrames++
	if elapsed := now.Sub(s.windowStart); elapsed >= time.Second {
		if s.fps != nil {
			s.fps.StoreFPS(int32(float64(s.windowFrames) / elapsed.Seconds()))
		}
		s.windowStart = now
		s.windowFrames = 0
	}
}

// substitutePlaceholders rewrites glyph quads whose page failed to upload
// so they draw as placeholder boxes.
func substitutePlaceholders(quads []batch.Quad, failed map[uint32]bool) []batch.Quad {
	out := make([]batch.Quad, len(quads))
	copy(out, quads)
	for i := range out {
		if out[i].Kind == batch.KindGlyph && failed[out[i].Page] {
			out[i].Kind = batch.KindPlaceholder
		}
	}
	return out
}

func (s *Stage) dispose() {
	s.state = stage.Disposed
	if s.backend != nil {
		s.backend.Close()
		s.backend = nil
	}
}

// State reports the current lifecycle state, round-tripped through the
// stage loop. A timed-out query reports Initializing; a failed stage
// keeps answering queries from its drain loop.
func (s *Stage) State() stage.State {
	q := make(chan stage.State, 1)
	select {
	case s.statec <- q:
		return <-q
	case <-time.After(time.Second):
		return stage.Initializing
	}
}

func (s *Stage) do(fn func()) {
	select {
	case s.cmds <- fn:
	default:
		logging.L().Warn("render command queue full, dropping command")
	}
}

// SetSheet restricts batch ingest to one sheet. The zero UUID accepts
// batches for any sheet.
func (s *Stage) SetSheet(id uuid.UUID) {
	s.do(func() {
		s.activeSheet = id
		s.needsDraw = true
	})
}

// BackendName returns the selected backend's name, or "" before
// initialization completes.
func (s *Stage) BackendName() string {
	res := make(chan string, 1)
	s.do(func() {
		if s.backend != nil {
			res <- s.backend.Name()
			return
		}
		res <- ""
	})
	select {
	case name := <-res:
		return name
	case <-time.After(time.Second):
		return ""
	}
}

// Screenshot captures the current target contents. The context bounds the
// wait so a wedged frame loop rejects instead of hanging the caller.
func (s *Stage) Screenshot(ctx context.Context) (*image.RGBA, error) {
	type result struct {
		img *image.RGBA
		err error
	}
	res := make(chan result, 1)
	s.do(func() {
		img, err := s.backend.ReadPixels()
		res <- result{img, err}
	})
	select {
	case r := <-res:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrScreenshot, r.err)
		}
		return r.img, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DrawnFrames returns the number of frames actually drawn. Test hook.
func (s *Stage) DrawnFrames() int64 { return s.drawn.Load() }

// SkippedFrames returns the number of idle-skipped frames. Test hook.
func (s *Stage) SkippedFrames() int64 { return s.skipped.Load() }

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
	logging.L().Error("render stage error", "err", e.Err, "fatal", e.Fatal)
	if s.status == nil {
		return
	}
	select {
	case s.status <- e:
	default:
	}
}
