// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gridrender implements a three-stage rendering pipeline for
// spreadsheet grids.
//
// The pipeline consists of three isolated workers, each running in its own
// goroutine with no shared heap state beyond one explicitly shared region:
//
//   - sheetcore: the authoritative cell store. It answers spatial hash
//     requests with binary-encoded cell data and pushes dirty-region
//     notifications when cells change.
//   - layout: turns visible cell text into positioned glyph quads using
//     loaded font atlases, and emits one transferable render batch per tick
//     when something changed.
//   - render: owns the drawing surface. It ingests the most recent batch,
//     reads the shared viewport region directly so pure camera motion
//     redraws without waiting on layout, and skips idle frames.
//
// Stages communicate over FIFO ports carrying tagged binary frames
// (package protocol) and a single-slot latest-wins mailbox for render
// batches. Camera state flows through a lock-free ping-pong shared buffer
// (package viewport) written only by the host thread.
//
// Use Pipeline to construct and wire the stages:
//
//	p := gridrender.NewPipeline(gridrender.PipelineOptions{})
//	p.Start(ctx)
//	defer p.Close()
//	layout, render := p.Clients()
//
// By default gridrender produces no log output; call [SetLogger] to enable
// structured logging.
package gridrender
