// Package graph defines the interface the engine controller requires from
// an audio-graph runtime (spec.md §6.2). The runtime itself — stream
// creation, buffer negotiation, registry/event dispatch, format builders —
// is an external collaborator out of this module's scope; this package is
// only the seam. internal/graph/malgoadapter supplies one concrete, best
// effort implementation.
package graph

import "context"

// Direction is the data direction of a Stream.
type Direction int

const (
	// DirectionInput is a capture stream: the runtime hands frames to it.
	DirectionInput Direction = iota
	// DirectionOutput is a playback stream: it hands frames to the runtime.
	DirectionOutput
)

// NodeProps is the property bag the runtime uses to present a node in the
// graph (spec.md §6.3). internal/graph/malgoadapter reads only TargetID;
// miniaudio has no property bags, so the other fields are not presented to
// the device.
type NodeProps struct {
	Name        string
	Description string
	MediaClass  string // e.g. "Audio/Sink"
	MediaType   string // e.g. "Audio"
	Category    string // e.g. "Playback"
	Role        string // e.g. "DSP", "Music"
	NodeGroup   string
	LinkGroup   string
	Rate        uint32
	Latency     string
	MaxLatency  string
	TargetID    string // target-object, set only on playback streams
	LockQuantum bool
	Autoconnect bool
	DontReconnect bool
	Trigger     bool
	MapBuffers  bool
	RTProcess   bool
}

// Buffer is one dequeued audio buffer: interleaved float32 data plus the
// chunk metadata the capture/playback callbacks need (spec.md §4.5/§4.6).
type Buffer struct {
	Data   []float32 // full underlying storage
	Stride uint32    // bytes per frame (channels * 4), used only to mirror the C buffer contract
	Offset uint32    // frame offset into Data where valid samples start
	Size   uint32    // frames currently valid (capture) or requested (playback, before fill)
	MaxSize uint32   // maximum frames Data can hold
}

// StreamState mirrors the runtime's stream lifecycle states relevant to
// the engine (spec.md §4.7: "playback stream... in the streaming state").
type StreamState int

const (
	StreamStateUnconnected StreamState = iota
	StreamStateConnecting
	StreamStateStreaming
	StreamStateError
)

// StreamCallbacks are invoked on the audio thread. Process is called once
// per buffer cycle; StateChanged is called on stream state transitions.
// Implementations of Stream must guarantee Process is never called
// concurrently with itself.
type StreamCallbacks struct {
	Process      func(buf *Buffer)
	StateChanged func(old, new StreamState)
}

// Stream is one capture or playback stream.
type Stream interface {
	// Connect connects the stream to the runtime with the given direction,
	// sample rate, and channel count.
	Connect(ctx context.Context, dir Direction, rate, channels uint32, props NodeProps) error
	// TriggerProcess requests one output processing cycle; used by the
	// capture callback to pulse a trigger-driven playback stream.
	TriggerProcess()
	// State reports the stream's current lifecycle state.
	State() StreamState
	// Disconnect and release the stream's runtime resources.
	Disconnect()
}

// RegistryEventKind distinguishes the two event kinds the registry core
// dispatches (spec.md §4.4).
type RegistryEventKind int

const (
	RegistryEventAdded RegistryEventKind = iota
	RegistryEventRemoved
)

// RegistryEvent carries one registry add/remove notification.
type RegistryEvent struct {
	Kind  RegistryEventKind
	ID    uint32
	Props map[string]string // only populated for Added; must include an object-serial for audio sinks
}

// Registry is the discovery source for downstream sinks.
type Registry interface {
	// Subscribe returns the channel RegistryEvents are delivered on. The
	// implementations in this module return the same channel on every call
	// and do not close it, neither on ctx done nor on Close.
	Subscribe(ctx context.Context) (<-chan RegistryEvent, error)
	// Sync requests a round trip to the runtime core and returns a
	// sequence number; Done reports whether that sequence's "done" event
	// has been observed yet (spec.md §4.7 discovery synchronization).
	Sync(ctx context.Context) (seq uint32, err error)
	Done(seq uint32) bool
	// Close releases registry resources.
	Close()
}

// Core is the connection to the audio-graph runtime: context/core
// connect-disconnect, stream/registry factories, and the event loop.
type Core interface {
	// Probe performs a one-shot connect/disconnect to check runtime
	// availability without creating any persistent state (spec.md §4.7:
	// "probe graph-runtime availability").
	Probe(ctx context.Context) error
	// Connect establishes the persistent connection used for the
	// lifetime of a Start/Stop cycle.
	Connect(ctx context.Context) error
	// Disconnect tears down the persistent connection.
	Disconnect()
	// NewStream creates a stream bound to this core; direction/props are
	// supplied on Connect.
	NewStream(callbacks StreamCallbacks) (Stream, error)
	// Registry returns the registry bound to this core.
	Registry() Registry
	// Iterate pumps the runtime's event loop for up to timeoutMs
	// milliseconds. Only ever called from the loop thread.
	Iterate(timeoutMs uint32)
}
