package engine

import (
	"context"
	"sync"

	"github.com/jurkovic-nikola/OpenLinkHub/internal/graph"
)

// fakeCore is a deterministic, in-memory graph.Core test double: it keeps
// an explicit list of sinks the test can add or remove, delivering the
// corresponding RegistryEvents the same way malgoadapter's polling registry
// would, without touching any real audio device.
type fakeCore struct {
	mu      sync.Mutex
	nextID  uint32
	sinks   map[uint32]fakeSink // id -> sink
	events  chan graph.RegistryEvent
	streams []*fakeStream

	probeErr   error
	connectErr error
}

type fakeSink struct {
	serial uint32
	name   string
	desc   string
}

func newFakeCore() *fakeCore {
	return &fakeCore{
		sinks:  make(map[uint32]fakeSink),
		events: make(chan graph.RegistryEvent, 64),
	}
}

// addSink queues an Added event the engine's next drain will observe.
func (c *fakeCore) addSink(serial uint32, name, desc string) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.sinks[id] = fakeSink{serial: serial, name: name, desc: desc}
	c.events <- graph.RegistryEvent{
		Kind: graph.RegistryEventAdded,
		ID:   id,
		Props: map[string]string{
			"object.serial":    itoaTest(serial),
			"node.name":        name,
			"node.description": desc,
		},
	}
	return id
}

// removeSink queues a Removed event for the given id.
func (c *fakeCore) removeSink(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sinks, id)
	c.events <- graph.RegistryEvent{Kind: graph.RegistryEventRemoved, ID: id}
}

func itoaTest(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func (c *fakeCore) Probe(ctx context.Context) error   { return c.probeErr }
func (c *fakeCore) Connect(ctx context.Context) error { return c.connectErr }
func (c *fakeCore) Disconnect()                       {}

func (c *fakeCore) NewStream(callbacks graph.StreamCallbacks) (graph.Stream, error) {
	s := &fakeStream{callbacks: callbacks}
	c.mu.Lock()
	c.streams = append(c.streams, s)
	c.mu.Unlock()
	return s, nil
}

func (c *fakeCore) Registry() graph.Registry { return c }
func (c *fakeCore) Iterate(timeoutMs uint32) {}

func (c *fakeCore) Subscribe(ctx context.Context) (<-chan graph.RegistryEvent, error) {
	return c.events, nil
}
func (c *fakeCore) Sync(ctx context.Context) (uint32, error) { return 1, nil }
func (c *fakeCore) Done(seq uint32) bool                     { return true }
func (c *fakeCore) Close()                                   {}

// fakeStream is a graph.Stream that never touches real hardware; tests
// drive its Process callback directly to simulate audio-thread activity.
type fakeStream struct {
	callbacks graph.StreamCallbacks
	dir       graph.Direction
	state     graph.StreamState
	props     graph.NodeProps
}

func (s *fakeStream) Connect(ctx context.Context, dir graph.Direction, rate, channels uint32, props graph.NodeProps) error {
	s.dir = dir
	s.props = props
	s.state = graph.StreamStateStreaming
	return nil
}

func (s *fakeStream) TriggerProcess() {
	if s.callbacks.Process == nil {
		return
	}
	buf := graph.Buffer{Data: make([]float32, 64), Size: 0, MaxSize: 16}
	s.callbacks.Process(&buf)
}

func (s *fakeStream) State() graph.StreamState { return s.state }
func (s *fakeStream) Disconnect()               { s.state = graph.StreamStateUnconnected }
