// Package engine implements the virtual ten-band equalizer's controller: the
// configure -> start -> run -> stop lifecycle, the capture and playback
// audio-thread callbacks, and the control-thread-safe gain/target surface.
// It is deliberately independent of any concrete audio-graph runtime; it
// only ever talks to the internal/graph interfaces, so the same controller
// runs against internal/graph/malgoadapter or a test double unchanged.
package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/jurkovic-nikola/OpenLinkHub/internal/eq"
	"github.com/jurkovic-nikola/OpenLinkHub/internal/graph"
	"github.com/jurkovic-nikola/OpenLinkHub/internal/ring"
	"github.com/jurkovic-nikola/OpenLinkHub/internal/sinkreg"
)

const requiredChannels = eq.Channels

// discoverySyncMaxIterations bounds how long Start waits for the initial
// sink discovery round trip to settle, matching the original engine's fixed
// retry budget rather than blocking indefinitely on a runtime that never
// reports done.
const discoverySyncMaxIterations = 100

// discoveryPollMS is the poll interval used only while waiting on the
// initial discovery sync, independent of the configured steady-state
// Config.PollMS.
const discoveryPollMS = 10

// nodeGroup is the shared node-group/link-group identity both the capture
// (virtual sink) and playback nodes declare to the runtime (spec.md §6.3).
const nodeGroup = "openlinkhub-audio"

type engineState int32

const (
	stateFresh engineState = iota
	stateConfigured
	stateRunning
	stateStopped
)

// streamBox lets the audio thread read the current playback stream through
// a single atomic pointer load, independent of however the loop thread
// replaces it during a reconnect.
type streamBox struct {
	s graph.Stream
}

// Engine is the equalizer controller. The zero value is not usable; build
// one with New.
type Engine struct {
	newCore func() graph.Core

	mu    sync.Mutex // guards cfg, state transitions, bandGainDB
	cfg   Config
	state atomic.Int32

	bandGainDB [eq.Bands]float64 // control-thread only; feeds pub.Rebuild

	masterGainBits atomic.Uint32 // float32 bits, read lock-free by the capture thread
	pub            *eq.Publisher
	capState       [eq.Channels][eq.Bands]eq.State // audio-thread only

	ring *ring.Ring

	core      graph.Core
	capStream graph.Stream
	pbBox     atomic.Pointer[streamBox] // current playback stream, nil box means capture-only

	sinks    *sinkreg.Registry
	curMu    sync.Mutex
	current  sinkreg.Sink
	hasCur   bool
	selfName string

	targetSerial  atomic.Uint32 // 0 means "no explicit preference, pick first available"
	reconnect     atomic.Bool
	stopRequested atomic.Bool

	errMu   sync.Mutex
	lastErr string
}

// New returns an unconfigured Engine. newCore is called once per Start to
// obtain the graph.Core to drive; production callers pass
// malgoadapter.New, tests pass a fake.
func New(newCore func() graph.Core) *Engine {
	return &Engine{newCore: newCore}
}

// Configure validates cfg and prepares the engine's buffers. Only legal
// from the Fresh or Stopped state.
func (e *Engine) Configure(cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := engineState(e.state.Load())
	if st != stateFresh && st != stateStopped {
		return fmt.Errorf("%w: configure requires fresh or stopped state", ErrState)
	}
	if err := cfg.validate(); err != nil {
		e.fail(err)
		return err
	}
	cfg.RingFrames = clampRingFrames(cfg.RingFrames)
	if cfg.SelfName == "" {
		cfg.SelfName = "openlinkhub-eq"
	}

	e.cfg = cfg
	e.pub = eq.NewPublisher(float64(cfg.Rate))
	for b := range e.bandGainDB {
		e.bandGainDB[b] = 0
	}
	e.masterGainBits.Store(math.Float32bits(1)) // dB 0 -> linear 1.0, unity passthrough
	for ch := range e.capState {
		for b := range e.capState[ch] {
			e.capState[ch][b].Reset()
		}
	}
	e.ring = ring.New(cfg.RingFrames, cfg.Channels)
	e.sinks = sinkreg.New()
	e.selfName = cfg.SelfName
	e.targetSerial.Store(0)
	e.pbBox.Store(nil)
	e.hasCur = false

	e.state.Store(int32(stateConfigured))
	return nil
}

// Start connects to the audio-graph runtime, opens the capture stream, runs
// the initial sink discovery, and then blocks running the event loop until
// ctx is done or Stop is called. It returns nil on a clean Stop-triggered
// shutdown.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if engineState(e.state.Load()) != stateConfigured {
		e.mu.Unlock()
		return fmt.Errorf("%w: start requires configured state", ErrState)
	}
	cfg := e.cfg
	e.mu.Unlock()

	core := e.newCore()
	if err := core.Probe(ctx); err != nil {
		e.fail(err)
		return fmt.Errorf("%w: %v", ErrNoGraph, err)
	}
	if err := core.Connect(ctx); err != nil {
		e.fail(err)
		return fmt.Errorf("%w: %v", ErrNoGraph, err)
	}
	e.core = core
	defer core.Disconnect()

	capStream, err := core.NewStream(graph.StreamCallbacks{Process: e.onCapture})
	if err != nil {
		e.fail(err)
		return fmt.Errorf("%w: %v", ErrNoGraph, err)
	}
	// The capture stream pulls audio in (graph.DirectionInput) but is
	// presented to the runtime as the virtual sink apps route audio to,
	// per spec.md §6.3 — its declared class is audio sink, not source.
	capProps := graph.NodeProps{
		Name:        cfg.SelfName,
		Description: cfg.SelfName + " virtual device",
		MediaClass:  "Audio/Sink",
		MediaType:   "Audio",
		Role:        "DSP",
		NodeGroup:   nodeGroup,
		LinkGroup:   nodeGroup,
		Rate:        cfg.Rate,
		Latency:     cfg.Latency,
		MaxLatency:  cfg.MaxLatency,
		LockQuantum: true,
	}
	if err := capStream.Connect(ctx, graph.DirectionInput, cfg.Rate, cfg.Channels, capProps); err != nil {
		e.fail(err)
		return fmt.Errorf("%w: %v", ErrNoGraph, err)
	}
	e.capStream = capStream
	defer capStream.Disconnect()

	e.state.Store(int32(stateRunning))
	e.stopRequested.Store(false)

	if err := e.waitForInitialDiscovery(ctx); err != nil {
		e.fail(err)
	}
	e.reconnect.Store(true)

	for !e.stopRequested.Load() {
		select {
		case <-ctx.Done():
			e.stopRequested.Store(true)
			continue
		default:
		}

		core.Iterate(cfg.PollMS)
		e.drainRegistryEvents()

		if e.reconnect.CompareAndSwap(true, false) {
			e.performReconnect(ctx)
		}
	}

	if box := e.pbBox.Swap(nil); box != nil && box.s != nil {
		box.s.Disconnect()
	}
	e.state.Store(int32(stateStopped))
	return nil
}

// Stop requests the running event loop to exit. It is safe to call from any
// thread and is a no-op if the engine is not running.
func (e *Engine) Stop() {
	e.stopRequested.Store(true)
}

// Running reports whether the event loop is currently active.
func (e *Engine) Running() bool {
	return engineState(e.state.Load()) == stateRunning
}

func (e *Engine) waitForInitialDiscovery(ctx context.Context) error {
	registry := e.core.Registry()
	seq, err := registry.Sync(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	for i := 0; i < discoverySyncMaxIterations; i++ {
		e.core.Iterate(discoveryPollMS)
		e.drainRegistryEvents()
		if registry.Done(seq) {
			return nil
		}
	}
	return ErrDiscovery
}

func (e *Engine) drainRegistryEvents() {
	registry := e.core.Registry()
	ch, err := registry.Subscribe(context.Background())
	if err != nil {
		return
	}
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			e.applyRegistryEvent(ev)
		default:
			return
		}
	}
}

func (e *Engine) applyRegistryEvent(ev graph.RegistryEvent) {
	switch ev.Kind {
	case graph.RegistryEventAdded:
		serial := parseSerial(ev.Props["object.serial"])
		sink := sinkreg.Sink{
			ID:     ev.ID,
			Serial: serial,
			Name:   ev.Props["node.name"],
			Desc:   ev.Props["node.description"],
		}
		if e.sinks.Add(sink) {
			e.curMu.Lock()
			noTarget := !e.hasCur
			e.curMu.Unlock()
			if noTarget {
				e.reconnect.Store(true)
			}
		}
	case graph.RegistryEventRemoved:
		removedSerial, ok := e.sinks.Remove(ev.ID)
		if !ok {
			return
		}
		e.curMu.Lock()
		isActive := e.hasCur && e.current.Serial == removedSerial
		e.curMu.Unlock()
		if isActive {
			e.reconnect.Store(true)
		}
	}
}

func parseSerial(s string) uint32 {
	var v uint32
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return v
		}
		v = v*10 + uint32(c-'0')
	}
	return v
}

// formatSerial renders a sink's serial as the decimal string malgoadapter's
// Stream.Connect expects in NodeProps.TargetID (spec.md §6.3: "target-object
// = selected sink serial (as string)").
func formatSerial(serial uint32) string {
	if serial == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for serial > 0 {
		i--
		buf[i] = byte('0' + serial%10)
		serial /= 10
	}
	return string(buf[i:])
}

// performReconnect tears down any existing playback stream and connects a
// new one to the currently desired target, or leaves the engine
// capture-only if no sink is available. Runs only on the loop thread.
func (e *Engine) performReconnect(ctx context.Context) {
	if box := e.pbBox.Swap(nil); box != nil && box.s != nil {
		box.s.Disconnect()
	}
	e.curMu.Lock()
	e.hasCur = false
	e.curMu.Unlock()

	e.mu.Lock()
	cfg := e.cfg
	e.mu.Unlock()

	desired := e.targetSerial.Load()
	var sink sinkreg.Sink
	var ok bool
	switch {
	case desired != 0:
		sink, ok = e.sinks.BySerial(desired)
	case cfg.PreferredSinkName != "":
		sink, ok = e.sinks.ByIdentity(cfg.PreferredSinkName, cfg.PreferredSinkDesc)
		if !ok {
			sink, ok = e.sinks.First()
		}
	default:
		sink, ok = e.sinks.First()
	}
	if !ok {
		return
	}

	stream, err := e.core.NewStream(graph.StreamCallbacks{Process: e.onPlayback})
	if err != nil {
		e.fail(err)
		return
	}
	props := graph.NodeProps{
		Name:          cfg.SelfName + "-playback",
		Description:   cfg.SelfName + " playback",
		MediaType:     "Audio",
		Category:      "Playback",
		Role:          "Music",
		NodeGroup:     nodeGroup,
		LinkGroup:     nodeGroup,
		Rate:          cfg.Rate,
		Latency:       cfg.Latency,
		MaxLatency:    cfg.MaxLatency,
		TargetID:      formatSerial(sink.Serial),
		Autoconnect:   true,
		DontReconnect: true,
		Trigger:       true,
		MapBuffers:    true,
		RTProcess:     true,
	}
	if err := stream.Connect(ctx, graph.DirectionOutput, cfg.Rate, cfg.Channels, props); err != nil {
		e.fail(err)
		return
	}

	e.pbBox.Store(&streamBox{s: stream})
	e.curMu.Lock()
	e.current = sink
	e.hasCur = true
	e.curMu.Unlock()
}

func (e *Engine) fail(err error) {
	e.errMu.Lock()
	e.lastErr = err.Error()
	e.errMu.Unlock()
}

// LastError returns the most recently recorded failure, or "" if none.
func (e *Engine) LastError() string {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.lastErr
}

// DroppedFrames returns the cumulative number of capture frames silently
// dropped because the ring buffer was full.
func (e *Engine) DroppedFrames() uint64 {
	e.mu.Lock()
	r := e.ring
	e.mu.Unlock()
	if r == nil {
		return 0
	}
	return r.Dropped()
}

// SetBand sets band b's gain in dB and republishes the coefficient table.
// Safe to call from any control thread; never called from the audio thread.
func (e *Engine) SetBand(band int, gainDB float64) error {
	if band < 0 || band >= eq.Bands {
		return fmt.Errorf("%w: %d", ErrBandIndex, band)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pub == nil {
		return fmt.Errorf("%w: not configured", ErrState)
	}
	e.bandGainDB[band] = gainDB
	rate := float64(e.cfg.Rate)
	e.pub.Rebuild(rate, func(b int) float64 { return e.bandGainDB[b] })
	return nil
}

// SetMaster sets the overall input gain in dB, converted to the linear
// multiplier the capture thread actually applies, and stored for lock-free
// read on every block.
func (e *Engine) SetMaster(gainDB float64) {
	linear := math.Pow(10, gainDB/20)
	e.masterGainBits.Store(math.Float32bits(float32(linear)))
}

// SetTarget requests the playback stream reconnect to the sink with the
// given serial on the next loop iteration. The serial must already be
// present in the sink registry; serial 0 and any serial the registry
// doesn't know about are rejected with no mutation of the current target.
func (e *Engine) SetTarget(serial uint32) error {
	if e.sinks == nil {
		return fmt.Errorf("%w: not configured", ErrState)
	}
	if serial == 0 {
		return fmt.Errorf("%w: serial 0", ErrUnknownSink)
	}
	if _, ok := e.sinks.BySerial(serial); !ok {
		return fmt.Errorf("%w: serial %d", ErrUnknownSink, serial)
	}
	e.targetSerial.Store(serial)
	e.reconnect.Store(true)
	return nil
}

// SinkCount returns the number of currently known downstream sinks.
func (e *Engine) SinkCount() int {
	if e.sinks == nil {
		return 0
	}
	return e.sinks.Count()
}

// SinkName returns the name of the sink at index i.
func (e *Engine) SinkName(i int) (string, bool) {
	s, ok := e.describeSink(i)
	return s.Name, ok
}

// SinkDesc returns the description of the sink at index i.
func (e *Engine) SinkDesc(i int) (string, bool) {
	s, ok := e.describeSink(i)
	return s.Desc, ok
}

// SinkSerial returns the stable serial of the sink at index i.
func (e *Engine) SinkSerial(i int) (uint32, bool) {
	s, ok := e.describeSink(i)
	return s.Serial, ok
}

func (e *Engine) describeSink(i int) (sinkreg.Sink, bool) {
	if e.sinks == nil {
		return sinkreg.Sink{}, false
	}
	return e.sinks.Describe(i)
}

// CurrentSinkSerial returns the serial of the sink the playback stream is
// currently connected to, or 0 if the engine is capture-only.
func (e *Engine) CurrentSinkSerial() uint32 {
	e.curMu.Lock()
	defer e.curMu.Unlock()
	if !e.hasCur {
		return 0
	}
	return e.current.Serial
}

// CurrentSinkName returns the name of the currently connected sink.
func (e *Engine) CurrentSinkName() (string, bool) {
	e.curMu.Lock()
	defer e.curMu.Unlock()
	return e.current.Name, e.hasCur
}

// CurrentSinkDesc returns the description of the currently connected sink.
func (e *Engine) CurrentSinkDesc() (string, bool) {
	e.curMu.Lock()
	defer e.curMu.Unlock()
	return e.current.Desc, e.hasCur
}

// SelfSinkName returns the name this engine advertises its own capture node
// under, so a caller can recognize and skip it while enumerating sinks.
func (e *Engine) SelfSinkName() string {
	return e.selfName
}
