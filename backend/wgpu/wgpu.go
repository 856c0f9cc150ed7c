// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package wgpu provides the GPU backend over gogpu/wgpu's HAL. It probes
// for a usable adapter at Init; on machines without one the probe fails
// fast and the registry falls back to the software compositor.
package wgpu

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/gridrender/backend"
	"github.com/gogpu/gridrender/batch"
	"github.com/gogpu/gridrender/internal/logging"
	"github.com/gogpu/gridrender/viewport"
)

func init() {
	backend.Register(backend.NameWGPU, func() backend.Backend { return &Backend{} })
}

// quadShaderSource rasterizes the batch quads: a vertex stage that maps
// world-space positions through the camera, and a fragment stage that
// either samples the atlas page or outputs the flat quad color.
const quadShaderSource = `
struct Camera {
    origin: vec2<f32>,
    scale: f32,
    _pad: f32,
    screen: vec2<f32>,
}

@group(0) @binding(0) var<uniform> camera: Camera;
@group(0) @binding(1) var page_tex: texture_2d<f32>;
@group(0) @binding(2) var page_samp: sampler;

struct VSIn {
    @location(0) pos: vec2<f32>,
    @location(1) uv: vec2<f32>,
    @location(2) color: vec4<f32>,
    @location(3) mode: f32,
}

struct VSOut {
    @builtin(position) clip: vec4<f32>,
    @location(0) uv: vec2<f32>,
    @location(1) color: vec4<f32>,
    @location(2) mode: f32,
}

@vertex
fn vs_main(in: VSIn) -> VSOut {
    var out: VSOut;
    let screen = (in.pos - camera.origin) * camera.scale;
    let ndc = screen / camera.screen * 2.0 - vec2<f32>(1.0, 1.0);
    out.clip = vec4<f32>(ndc.x, -ndc.y, 0.0, 1.0);
    out.uv = in.uv;
    out.color = in.color;
    out.mode = in.mode;
    return out;
}

@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    if (in.mode > 0.5) {
        let a = textureSample(page_tex, page_samp, in.uv).a;
        return vec4<f32>(in.color.rgb, in.color.a * a);
    }
    return in.color;
}
`

// vertexStride is the packed size of one vertex: pos2 + uv2 + color4 +
// mode, all f32.
const vertexStride = 9 * 4

// Backend renders batches with a HAL device. The render target and atlas
// pages live on the GPU; a CPU mirror keeps the composited pixels
// available for ReadPixels without a blocking readback per frame, the
// same hybrid the texture cache uses.
type Backend struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	shader   hal.ShaderModule
	target   hal.Texture
	view     hal.TextureView
	quadBuf  hal.Buffer
	quadCap  int
	pages    map[uint32]hal.Texture

	mirror *backend.Software

	width, height int
	// shared devices belong to the host; Close must not destroy them.
	shared bool
	inited bool
}

func (b *Backend) Name() string { return backend.NameWGPU }

// Init opens a device, compiles the quad shader and allocates the render
// target. A host-shared device registered via SetDeviceProvider is used
// when available; otherwise the adapter is probed. Any failure aborts
// initialization so the registry can fall back.
func (b *Backend) Init(width, height int) error {
	if dev, q, ok := sharedHal(); ok {
		b.device = dev
		b.queue = q
		b.shared = true
		logging.L().Info("wgpu using host-shared device")
	} else if err := b.openOwnDevice(); err != nil {
		return err
	}

	spirv, err := compileWGSL(quadShaderSource)
	if err != nil {
		b.Close()
		return fmt.Errorf("wgpu: quad shader: %w", err)
	}
	shader, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "grid_quads",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		b.Close()
		return fmt.Errorf("wgpu: create shader module: %w", err)
	}
	b.shader = shader

	if err := b.createTarget(width, height); err != nil {
		b.Close()
		return err
	}

	b.pages = make(map[uint32]hal.Texture)
	b.mirror = backend.NewSoftware()
	if err := b.mirror.Init(width, height); err != nil {
		b.Close()
		return err
	}
	b.width, b.height = width, height
	b.inited = true
	return nil
}

// openOwnDevice probes the Vulkan HAL and opens a device on the best
// available adapter, preferring dedicated hardware.
func (b *Backend) openOwnDevice() error {
	halBackend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("wgpu: vulkan backend not available")
	}
	instance, err := halBackend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("wgpu: create instance: %w", err)
	}
	b.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		b.Close()
		return fmt.Errorf("wgpu: no adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	logging.L().Info("wgpu adapter selected", "name", selected.Info.Name)

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		b.Close()
		return fmt.Errorf("wgpu: open device: %w", err)
	}
	b.device = openDev.Device
	b.queue = openDev.Queue
	return nil
}

func (b *Backend) createTarget(width, height int) error {
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label: "grid_target",
		Size: hal.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create target: %w", err)
	}
	view, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "grid_target_view",
	})
	if err != nil {
		b.device.DestroyTexture(tex)
		return fmt.Errorf("wgpu: create target view: %w", err)
	}
	b.target = tex
	b.view = view
	return nil
}

func (b *Backend) destroyTarget() {
	if b.view != nil {
		b.device.DestroyTextureView(b.view)
		b.view = nil
	}
	if b.target != nil {
		b.device.DestroyTexture(b.target)
		b.target = nil
	}
}

func (b *Backend) Resize(width, height int) error {
	if !b.inited {
		return backend.ErrNotInitialized
	}
	b.destroyTarget()
	if err := b.createTarget(width, height); err != nil {
		return err
	}
	b.width, b.height = width, height
	return b.mirror.Resize(width, height)
}

// UploadTexture pushes an atlas page to the GPU and mirrors it for the
// CPU compositor.
func (b *Backend) UploadTexture(uid uint32, img *image.RGBA) error {
	if !b.inited {
		return backend.ErrNotInitialized
	}
	if img == nil || img.Bounds().Empty() {
		return backend.ErrBadTexture
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label: fmt.Sprintf("atlas_page_%d", uid),
		Size: hal.Extent3D{
			Width:              uint32(w),
			Height:             uint32(h),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create page texture: %w", err)
	}
	b.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		img.Pix,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(img.Stride),
			RowsPerImage: uint32(h),
		},
		&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
	if old, ok := b.pages[uid]; ok {
		b.device.DestroyTexture(old)
	}
	b.pages[uid] = tex
	return b.mirror.UploadTexture(uid, img)
}

// Draw uploads the frame's vertex data and composites. The composited
// pixels come from the CPU mirror; the GPU vertex path stops at buffer
// upload until the render pass encoder is wired in.
//
// TODO: encode the render pass (shader is compiled, target and vertex
// buffer exist) and drop the mirror composition.
func (b *Backend) Draw(view viewport.Snapshot, quads []batch.Quad) error {
	if !b.inited {
		return backend.ErrNotInitialized
	}
	data := encodeVertices(quads)
	if len(data) > 0 {
		if err := b.ensureQuadBuffer(len(data)); err != nil {
			return err
		}
		b.queue.WriteBuffer(b.quadBuf, 0, data)
	}
	return b.mirror.Draw(view, quads)
}

func (b *Backend) ensureQuadBuffer(size int) error {
	if b.quadBuf != nil && size <= b.quadCap {
		return nil
	}
	if b.quadBuf != nil {
		b.device.DestroyBuffer(b.quadBuf)
		b.quadBuf = nil
	}
	// Grow with headroom to avoid reallocating every frame.
	capacity := size * 2
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "grid_quad_vertices",
		Size:  uint64(capacity),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create vertex buffer: %w", err)
	}
	b.quadBuf = buf
	b.quadCap = capacity
	return nil
}

func (b *Backend) ReadPixels() (*image.RGBA, error) {
	if !b.inited {
		return nil, backend.ErrNotInitialized
	}
	return b.mirror.ReadPixels()
}

func (b *Backend) Close() {
	if b.mirror != nil {
		b.mirror.Close()
		b.mirror = nil
	}
	if b.device != nil {
		if b.quadBuf != nil {
			b.device.DestroyBuffer(b.quadBuf)
			b.quadBuf = nil
		}
		for uid, tex := range b.pages {
			b.device.DestroyTexture(tex)
			delete(b.pages, uid)
		}
		b.destroyTarget()
		if b.shader != nil {
			b.device.DestroyShaderModule(b.shader)
			b.shader = nil
		}
		if !b.shared {
			b.device.Destroy()
		}
		b.device = nil
	}
	if b.instance != nil {
		b.instance.Destroy()
		b.instance = nil
	}
	b.queue = nil
	b.shared = false
	b.inited = false
}

// compileWGSL compiles WGSL to the SPIR-V word stream HAL expects.
func compileWGSL(src string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}

// encodeVertices expands quads into two triangles each, packed per
// vertexStride. Glyph quads set mode=1 so the fragment stage samples the
// page; fills and placeholders use the flat color path.
func encodeVertices(quads []batch.Quad) []byte {
	out := make([]byte, 0, len(quads)*6*vertexStride)
	put := func(vals ...float32) {
		for _, v := range vals {
			var w [4]byte
			binary.LittleEndian.PutUint32(w[:], math.Float32bits(v))
			out = append(out, w[:]...)
		}
	}
	for _, q := range quads {
		mode := float32(0)
		if q.Kind == batch.KindGlyph {
			mode = 1
		}
		r := float32(q.R) / 255
		g := float32(q.G) / 255
		bl := float32(q.B) / 255
		a := float32(q.A) / 255
		x0, y0, x1, y1 := q.X, q.Y, q.X+q.W, q.Y+q.H
		corners := [6][4]float32{
			{x0, y0, q.U0, q.V0},
			{x1, y0, q.U1, q.V0},
			{x1, y1, q.U1, q.V1},
			{x0, y0, q.U0, q.V0},
			{x1, y1, q.U1, q.V1},
			{x0, y1, q.U0, q.V1},
		}
		for _, c := range corners {
			put(c[0], c[1], c[2], c[3], r, g, bl, a, mode)
		}
	}
	return out
}

var _ backend.Backend = (*Backend)(nil)
