// Package malgoadapter implements the internal/graph interfaces on top of
// github.com/gen2brain/malgo (miniaudio bindings) — the same library the
// teacher's internal/audio package used for capture and playback devices.
//
// malgo is a local-device API, not a graph runtime: it has no concept of a
// dynamic registry push-event or a named "virtual sink" a stream can target
// by serial the way PipeWire does. This adapter bridges the gap:
//   - Core.NewStream backs a Stream with a persistent malgo.Device; capture
//     streams bind to the default input, playback streams resolve
//     NodeProps.TargetID through the registry to bind to the specific
//     physical output device the engine selected.
//   - Registry emulates push events by polling malgo's device enumeration
//     on the loop thread (Core.Iterate) and diffing against the previously
//     observed set, synthesizing Added/Removed RegistryEvents. Each
//     device's "serial" is a deterministic google/uuid-derived value of its
//     name so it stays stable across polls and process restarts. Because it
//     is derived from the name, a renamed device is reported as a removal
//     plus an addition with a new serial.
package malgoadapter

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"

	"github.com/jurkovic-nikola/OpenLinkHub/internal/graph"
)

// sinkNamespace seeds the deterministic per-device serial derivation; any
// fixed UUID works, it only has to be stable across process restarts so the
// same physical device keeps the same serial.
var sinkNamespace = uuid.MustParse("6f6e4c68-6f70-656e-6c69-6e6b68756221")

// serialForDevice derives a stable uint32 serial from a device's name by
// hashing the name into a UUIDv5 and folding it down to 32 bits. Names, not
// miniaudio's own device ids, are used because miniaudio reassigns ids
// across enumerations on some backends while the name stays put.
func serialForDevice(name string) uint32 {
	id := uuid.NewSHA1(sinkNamespace, []byte(name))
	b := id[:]
	return binary.BigEndian.Uint32(b[:4]) | 1 // never 0; 0 means "no target" (spec.md §3)
}

// Core is the malgo-backed graph.Core implementation.
type Core struct {
	ctx *malgo.AllocatedContext

	mu       sync.Mutex
	registry *pollingRegistry
}

// New returns an unconnected Core. Connect must be called before use.
func New() *Core {
	return &Core{}
}

// Probe performs a one-shot context init/uninit to verify an audio backend
// is reachable, mirroring the original engine's pipewire_available() check,
// without creating any stream or registry state.
func (c *Core) Probe(ctx context.Context) error {
	probeCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("audio backend unavailable: %w", err)
	}
	_ = probeCtx.Uninit()
	probeCtx.Free()
	return nil
}

// Connect establishes the persistent malgo context used for the lifetime
// of a Start/Stop cycle.
func (c *Core) Connect(ctx context.Context) error {
	allocated, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}
	c.ctx = allocated
	c.registry = newPollingRegistry(allocated)
	return nil
}

// Disconnect releases the persistent malgo context.
func (c *Core) Disconnect() {
	if c.registry != nil {
		c.registry.Close()
		c.registry = nil
	}
	if c.ctx != nil {
		_ = c.ctx.Uninit()
		c.ctx.Free()
		c.ctx = nil
	}
}

// NewStream returns a Stream bound to this core's context.
func (c *Core) NewStream(callbacks graph.StreamCallbacks) (graph.Stream, error) {
	if c.ctx == nil {
		return nil, fmt.Errorf("malgoadapter: core not connected")
	}
	return &Stream{ctx: c.ctx, callbacks: callbacks, registry: c.registry}, nil
}

// Registry returns the polling registry bound to this core.
func (c *Core) Registry() graph.Registry {
	return c.registry
}

// Iterate pumps the polling registry's device diff and sleeps up to
// timeoutMs; miniaudio has no blocking "iterate" call of its own, so this
// is where the registry's poll cadence is driven from the loop thread.
func (c *Core) Iterate(timeoutMs uint32) {
	if c.registry != nil {
		c.registry.poll()
	}
	time.Sleep(time.Duration(timeoutMs) * time.Millisecond)
}

// Stream is the malgo-backed graph.Stream implementation. One instance
// backs either a capture or a playback stream, never both.
type Stream struct {
	ctx       *malgo.AllocatedContext
	callbacks graph.StreamCallbacks
	registry  *pollingRegistry

	device *malgo.Device
	state  graph.StreamState

	channels uint32
	resamp   *resampler // set only if the negotiated device rate differs from the requested rate
}

// Connect initializes and starts a malgo device for the given direction.
// props.TargetID, if set, is the decimal serial malgoadapter assigned the
// target device; it is resolved back through the registry to a
// malgo.DeviceID and pinned onto the device config, so playback actually
// binds to the selected physical output instead of the system default.
// An empty or unresolvable TargetID falls back to the default device.
func (s *Stream) Connect(ctx context.Context, dir graph.Direction, rate, channels uint32, props graph.NodeProps) error {
	s.channels = channels

	var deviceType malgo.DeviceType
	if dir == graph.DirectionInput {
		deviceType = malgo.Capture
	} else {
		deviceType = malgo.Playback
	}

	cfg := malgo.DefaultDeviceConfig(deviceType)
	cfg.SampleRate = rate
	if dir == graph.DirectionInput {
		cfg.Capture.Format = malgo.FormatF32
		cfg.Capture.Channels = channels
	} else {
		cfg.Playback.Format = malgo.FormatF32
		cfg.Playback.Channels = channels
	}

	if props.TargetID != "" && s.registry != nil {
		if serial, err := strconv.ParseUint(props.TargetID, 10, 32); err == nil {
			if devID, ok := s.registry.deviceIDForSerial(uint32(serial)); ok {
				if dir == graph.DirectionInput {
					cfg.Capture.DeviceID = devID.Pointer()
				} else {
					cfg.Playback.DeviceID = devID.Pointer()
				}
			}
		}
	}

	stride := channels * 4

	onData := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		if s.callbacks.Process == nil {
			return
		}

		if dir == graph.DirectionInput {
			buf := graph.Buffer{
				Data:    bytesToFloat32(pInputSamples),
				Stride:  stride,
				Offset:  0,
				Size:    framecount,
				MaxSize: framecount,
			}
			s.callbacks.Process(&buf)
			return
		}

		// Ask the engine for enough frames to cover the output buffer at
		// the engine's own rate; resample afterward if the device
		// negotiated a different rate than requested.
		requestFrames := framecount
		if s.resamp != nil {
			requestFrames = uint32(float64(framecount) / s.resamp.ratio)
			if requestFrames == 0 {
				requestFrames = 1
			}
		}

		buf := graph.Buffer{
			Data:    make([]float32, requestFrames*channels),
			Stride:  stride,
			Offset:  0,
			Size:    0,
			MaxSize: requestFrames,
		}
		s.callbacks.Process(&buf)

		out := buf.Data[:buf.Size*channels]
		if s.resamp != nil {
			out = s.resamp.resample(out)
		}
		if uint32(len(out)) > framecount*channels {
			out = out[:framecount*channels]
		}
		float32ToBytes(out, pOutputSample)
	}

	device, err := malgo.InitDevice(s.ctx.Context, cfg, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		return fmt.Errorf("malgoadapter: failed to init device: %w", err)
	}

	if dir == graph.DirectionOutput {
		if deviceRate := device.SampleRate(); deviceRate != 0 && deviceRate != rate {
			s.resamp = newResampler(int(rate), int(deviceRate), int(channels))
		}
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("malgoadapter: failed to start device: %w", err)
	}

	s.device = device
	s.setState(graph.StreamStateStreaming)
	return nil
}

func (s *Stream) setState(n graph.StreamState) {
	old := s.state
	s.state = n
	if s.callbacks.StateChanged != nil && old != n {
		s.callbacks.StateChanged(old, n)
	}
}

// TriggerProcess is a no-op on malgo: miniaudio pulls playback devices on
// its own clock rather than being trigger-driven by the capture side, so
// there is nothing to pulse here. The ring buffer bridging capture and
// playback still applies unchanged.
func (s *Stream) TriggerProcess() {}

// State reports the stream's current lifecycle state.
func (s *Stream) State() graph.StreamState {
	return s.state
}

// Disconnect stops and releases the malgo device.
func (s *Stream) Disconnect() {
	if s.device != nil {
		s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	s.setState(graph.StreamStateUnconnected)
}

func bytesToFloat32(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

func float32ToBytes(samples []float32, dst []byte) {
	for i, v := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}
