// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package sheetcore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/gridrender/internal/logging"
	"github.com/gogpu/gridrender/protocol"
)

// Conn is one bidirectional link between the core and a consumer stage.
type Conn struct {
	// Out carries core-to-stage messages.
	Out *protocol.Port

	// In carries stage-to-core messages.
	In *protocol.Port
}

// Stage is the core worker. It serves bucket requests from the layout and
// render links and broadcasts mutations to both. Host-side mutators
// (AddSheet, SetCell, ...) are safe to call from any goroutine.
type Stage struct {
	layout Conn
	render Conn

	layoutDisp *protocol.Dispatcher
	renderDisp *protocol.Dispatcher

	mu          sync.Mutex
	sheets      map[uuid.UUID]*Sheet
	layoutReady bool
	renderReady bool
}

// New creates a core stage over the two stage links.
func New(layout, render Conn) *Stage {
	s := &Stage{
		layout: layout,
		render: render,
		sheets: make(map[uuid.UUID]*Sheet),
	}
	s.layoutDisp = s.buildDispatcher("core/layout", layout)
	s.renderDisp = s.buildDispatcher("core/render", render)
	return s
}

func (s *Stage) buildDispatcher(name string, conn Conn) *protocol.Dispatcher {
	d := protocol.NewDispatcher(name)
	d.Handle(protocol.TagReady, func(m protocol.Message) {
		s.handleReady(conn, m.(protocol.Ready))
	})
	d.Handle(protocol.TagViewportChanged, func(m protocol.Message) {
		s.handleViewportChanged(conn, m.(protocol.ViewportChanged))
	})
	d.Handle(protocol.TagCellEdit, func(m protocol.Message) {
		s.handleCellEdit(m.(protocol.CellEdit))
	})
	d.Handle(protocol.TagColumnResize, func(m protocol.Message) {
		s.handleColumnResize(m.(protocol.ColumnResize))
	})
	d.Handle(protocol.TagRowResize, func(m protocol.Message) {
		s.handleRowResize(m.(protocol.RowResize))
	})
	return d
}

// Run processes incoming messages until the context is canceled or both
// links close. It is the stage's worker loop; run it in its own goroutine.
func (s *Stage) Run(ctx context.Context) {
	layoutIn := s.layout.In.Recv()
	renderIn := s.render.In.Recv()
	for layoutIn != nil || renderIn != nil {
		select {
		case <-ctx.Done():
			return
		case buf, ok := <-layoutIn:
			if !ok {
				layoutIn = nil
				continue
			}
			s.layoutDisp.Dispatch(buf)
		case buf, ok := <-renderIn:
			if !ok {
				renderIn = nil
				continue
			}
			s.renderDisp.Dispatch(buf)
		}
	}
}

// handleReady replays the current sheet set to a stage that finished
// initializing, so stages started after sheets were added still converge.
func (s *Stage) handleReady(conn Conn, m protocol.Ready) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m.Stage {
	case protocol.StageLayout:
		s.layoutReady = true
	case protocol.StageRender:
		s.renderReady = true
	}
	logging.L().Info("stage ready", "stage", m.Stage)

	for _, sh := range s.sheets {
		s.send(conn, protocol.SheetInfo{SheetID: sh.ID, Name: sh.Name, Order: sh.Order, Color: sh.Color})
		cols, rows := sh.offsets.Runs()
		if len(cols) > 0 || len(rows) > 0 {
			s.send(conn, protocol.SheetOffsets{SheetID: sh.ID, Columns: cols, Rows: rows})
		}
	}
}

// handleViewportChanged answers each requested bucket with one HashCells
// message on the requesting link. Unknown sheets are logged and skipped;
// the requester's pending entry times out and re-requests.
func (s *Stage) handleViewportChanged(conn Conn, m protocol.ViewportChanged) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.sheets[m.SheetID]
	if !ok {
		logging.L().Warn("bucket request for unknown sheet", "sheet", m.SheetID)
		return
	}
	for _, h := range m.Hashes {
		cells, fills := sh.bucketContents(h)
		s.send(conn, protocol.HashCells{SheetID: m.SheetID, Hash: h, Cells: cells, Fills: fills})
	}
}

func (s *Stage) handleCellEdit(m protocol.CellEdit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.sheets[m.SheetID]
	if !ok {
		return
	}
	prev, had := sh.cells[cellKey{m.X, m.Y}]
	cell := protocol.Cell{X: m.X, Y: m.Y, Text: m.Text}
	if had {
		prev.Text = m.Text
		cell = prev
	}
	dirty := sh.setCell(cell)
	s.broadcast(protocol.DirtyHashes{SheetID: m.SheetID, Hashes: dirty})
}

func (s *Stage) handleColumnResize(m protocol.ColumnResize) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.sheets[m.SheetID]
	if !ok {
		return
	}
	sh.offsets.SetColumnWidth(m.Column, float64(m.Width))
	cols, rows := sh.offsets.Runs()
	s.broadcast(protocol.SheetOffsets{SheetID: m.SheetID, Columns: cols, Rows: rows})
}

func (s *Stage) handleRowResize(m protocol.RowResize) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.sheets[m.SheetID]
	if !ok {
		return
	}
	sh.offsets.SetRowHeight(m.Row, float64(m.Height))
	cols, rows := sh.offsets.Runs()
	s.broadcast(protocol.SheetOffsets{SheetID: m.SheetID, Columns: cols, Rows: rows})
}

// AddSheet registers a sheet and announces it to both stages.
func (s *Stage) AddSheet(info protocol.SheetInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sheets[info.SheetID]; exists {
		logging.L().Warn("duplicate sheet ignored", "sheet", info.SheetID)
		return
	}
	s.sheets[info.SheetID] = newSheet(info)
	s.broadcast(info)
}

// DeleteSheet removes a sheet and tells both stages to drop it.
func (s *Stage) DeleteSheet(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sheets[id]; !ok {
		return
	}
	delete(s.sheets, id)
	s.broadcast(protocol.SheetDeleted{SheetID: id})
}

// ClearSheet drops all cells and fills of a sheet, keeping its offsets.
func (s *Stage) ClearSheet(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.sheets[id]
	if !ok {
		return
	}
	sh.clear()
	s.broadcast(protocol.ClearSheet{SheetID: id})
}

// SetCell stores a formatted cell and marks its bucket dirty. An empty
// text deletes the cell.
func (s *Stage) SetCell(id uuid.UUID, c protocol.Cell) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.sheets[id]
	if !ok {
		return
	}
	dirty := sh.setCell(c)
	s.broadcast(protocol.DirtyHashes{SheetID: id, Hashes: dirty})
}

// SetFill stores a background fill and marks its buckets dirty. A fill
// with zero width or height deletes the fill at that start cell.
func (s *Stage) SetFill(id uuid.UUID, f protocol.Fill) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.sheets[id]
	if !ok {
		return
	}
	dirty := sh.setFill(f)
	s.broadcast(protocol.DirtyHashes{SheetID: id, Hashes: dirty})
}

// SetSelection pushes cursor and selection state to both stages.
func (s *Stage) SetSelection(sel protocol.Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcast(sel)
}

// Cell returns the stored cell at a position, for host inspection.
func (s *Stage) Cell(id uuid.UUID, x, y int64) (protocol.Cell, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.sheets[id]
	if !ok {
		return protocol.Cell{}, false
	}
	c, ok := sh.cells[cellKey{x, y}]
	return c, ok
}

// broadcast encodes the message once per link; frames are single-owner.
func (s *Stage) broadcast(m protocol.Message) {
	s.send(s.layout, m)
	s.send(s.render, m)
}

func (s *Stage) send(conn Conn, m protocol.Message) {
	f, err := protocol.Encode(m)
	if err != nil {
		logging.L().Error("encode failed", "tag", m.MessageTag().String(), "err", err)
		return
	}
	if err := conn.Out.Send(f); err != nil {
		logging.L().Warn("send failed", "tag", m.MessageTag().String(), "err", err)
	}
}
