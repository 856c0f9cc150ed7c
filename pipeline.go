// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gridrender

import (
	"context"
	"sync"

	"github.com/gogpu/gridrender/host"
	"github.com/gogpu/gridrender/layout"
	"github.com/gogpu/gridrender/protocol"
	"github.com/gogpu/gridrender/render"
	"github.com/gogpu/gridrender/sheetcore"
	"github.com/gogpu/gridrender/stage"
	"github.com/gogpu/gridrender/viewport"

	// Register the GPU backend; probing falls back to software when it
	// cannot initialize.
	_ "github.com/gogpu/gridrender/backend/wgpu"
)

// PipelineOptions configures pipeline construction. The zero value is
// usable.
type PipelineOptions struct {
	// Layout configures the layout stage.
	Layout layout.Options

	// Render configures the render stage.
	Render render.Options

	// PortCapacity bounds in-flight frames per port (0 means
	// protocol.DefaultPortCapacity).
	PortCapacity int
}

// Pipeline assembles the three stage workers with their ports, the shared
// viewport region and the FPS region. All dependencies are explicit; two
// pipelines in one process do not share anything.
//
//	p := gridrender.NewPipeline(gridrender.PipelineOptions{})
//	p.Start(ctx)
//	defer p.Close()
type Pipeline struct {
	Core   *sheetcore.Stage
	Layout *layout.Stage
	Render *render.Stage

	// Viewport is the camera channel; the host writes through a
	// LayoutClient or its own viewport.Writer.
	Viewport *viewport.Channel

	// FPS is the shared frame counter region written by the renderer.
	FPS *viewport.FPSRegion

	// Status receives stage errors. The channel is buffered; unread
	// errors beyond the buffer are dropped after being logged.
	Status <-chan *stage.Error

	status  chan *stage.Error
	mailbox *protocol.Mailbox
	ports   []*protocol.Port

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPipeline wires the stages. Nothing runs until Start.
func NewPipeline(opts PipelineOptions) *Pipeline {
	ch := viewport.NewChannel(viewport.NewBuffer())
	fps := viewport.NewFPSRegion()
	status := make(chan *stage.Error, 16)
	mailbox := protocol.NewMailbox()

	coreToLayout := protocol.NewPort(opts.PortCapacity)
	layoutToCore := protocol.NewPort(opts.PortCapacity)
	coreToRender := protocol.NewPort(opts.PortCapacity)
	renderToCore := protocol.NewPort(opts.PortCapacity)

	core := sheetcore.New(
		sheetcore.Conn{Out: coreToLayout, In: layoutToCore},
		sheetcore.Conn{Out: coreToRender, In: renderToCore},
	)
	lay := layout.New(
		viewport.NewReader(ch),
		layout.Conn{Out: layoutToCore, In: coreToLayout},
		mailbox, status, opts.Layout,
	)
	ren := render.New(
		viewport.NewReader(ch),
		render.Conn{Out: renderToCore, In: coreToRender},
		mailbox, fps, status, opts.Render,
	)

	return &Pipeline{
		Core:     core,
		Layout:   lay,
		Render:   ren,
		Viewport: ch,
		FPS:      fps,
		Status:   status,
		status:   status,
		mailbox:  mailbox,
		ports:    []*protocol.Port{coreToLayout, layoutToCore, coreToRender, renderToCore},
	}
}

// Start launches the three stage workers. They stop when ctx is canceled
// or Close is called.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(3)
	go func() {
		defer p.wg.Done()
		p.Core.Run(ctx)
	}()
	go func() {
		defer p.wg.Done()
		p.Layout.Run(ctx)
	}()
	go func() {
		defer p.wg.Done()
		p.Render.Run(ctx)
	}()
}

// Clients returns host-thread adapters bound to this pipeline.
func (p *Pipeline) Clients() (*host.LayoutClient, *host.RenderClient) {
	return host.NewLayoutClient(p.Layout, p.Viewport),
		host.NewRenderClient(p.Render, p.FPS, nil)
}

// Close stops the workers and tears down the ports. Safe to call once
// after Start.
func (p *Pipeline) Close() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	for _, port := range p.ports {
		port.Close()
	}
}
