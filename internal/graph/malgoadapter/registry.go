package malgoadapter

import (
	"bytes"
	"context"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/jurkovic-nikola/OpenLinkHub/internal/graph"
)

// pollingRegistry emulates a push-based graph.Registry by diffing
// successive malgo.Context.Devices(Playback) enumerations. poll is called
// only from the loop thread (via Core.Iterate). The known set, the sync
// state and the closed flag are guarded by mu the same way internal/sinkreg
// guards its table — a short critical section, never held across blocking
// work; Subscribe only returns the event channel and takes no lock.
type pollingRegistry struct {
	ctx *malgo.AllocatedContext

	mu      sync.Mutex
	known   map[uint32]deviceIdentity // id -> identity, for diffing
	nextID  uint32
	events  chan graph.RegistryEvent
	closed  bool
	syncSeq uint32
	done    map[uint32]bool
}

type deviceIdentity struct {
	id     uint32
	serial uint32
	name   string
	devID  malgo.DeviceID // miniaudio's own device identifier, needed to target this device by DeviceConfig.Playback.DeviceID
}

func newPollingRegistry(ctx *malgo.AllocatedContext) *pollingRegistry {
	return &pollingRegistry{
		ctx:    ctx,
		known:  make(map[uint32]deviceIdentity),
		events: make(chan graph.RegistryEvent, 32),
		done:   make(map[uint32]bool),
	}
}

// Subscribe returns the event channel; events are produced only by poll.
func (r *pollingRegistry) Subscribe(ctx context.Context) (<-chan graph.RegistryEvent, error) {
	return r.events, nil
}

// Sync requests a round trip; since polling is synchronous with no real
// core, the "done" event for the returned sequence is always immediately
// available on the next Done call — there is no genuine asynchronous core
// round trip to wait for with a local-device backend.
func (r *pollingRegistry) Sync(ctx context.Context) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncSeq++
	seq := r.syncSeq
	r.done[seq] = true
	return seq, nil
}

// Done reports whether the given sequence's round trip has completed.
func (r *pollingRegistry) Done(seq uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done[seq]
}

// Close marks the registry closed; further poll calls are no-ops.
func (r *pollingRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// poll enumerates playback devices and emits Added/Removed events for any
// identity that appeared or disappeared since the previous poll. Runs on
// the loop thread only.
func (r *pollingRegistry) poll() {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}

	infos, err := r.ctx.Devices(malgo.Playback)
	if err != nil {
		return
	}

	seenInfos := make(map[uint32]malgo.DeviceInfo, len(infos))
	for _, info := range infos {
		name := deviceName(info)
		if name == "" {
			continue
		}
		seenInfos[serialForDevice(name)] = info
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for serial, info := range seenInfos {
		if _, ok := r.known[serial]; ok {
			continue
		}
		name := deviceName(info)
		r.nextID++
		id := deviceIdentity{id: r.nextID, serial: serial, name: name, devID: info.ID}
		props := map[string]string{
			"object.serial":    itoa(serial),
			"node.name":        name,
			"node.description": name,
			"media.class":      "Audio/Sink",
		}
		if r.emit(graph.RegistryEvent{Kind: graph.RegistryEventAdded, ID: id.id, Props: props}) {
			r.known[serial] = id
		}
	}

	for serial, id := range r.known {
		if _, ok := seenInfos[serial]; !ok {
			if r.emit(graph.RegistryEvent{Kind: graph.RegistryEventRemoved, ID: id.id}) {
				delete(r.known, serial)
			}
		}
	}
}

// deviceIDForSerial resolves a sink's stable serial to the miniaudio device
// identifier needed to target it explicitly, if it's still known.
func (r *pollingRegistry) deviceIDForSerial(serial uint32) (malgo.DeviceID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.known[serial]
	if !ok {
		return malgo.DeviceID{}, false
	}
	return id.devID, true
}

// emit reports whether ev was queued. poll only updates the known set for
// queued events, so an event dropped on a full channel is produced again
// by the next poll's diff.
func (r *pollingRegistry) emit(ev graph.RegistryEvent) bool {
	select {
	case r.events <- ev:
		return true
	default:
		return false
	}
}

func deviceName(info malgo.DeviceInfo) string {
	n := bytes.IndexByte(info.Name[:], 0)
	if n < 0 {
		n = len(info.Name)
	}
	return string(info.Name[:n])
}

func itoa(v uint32) string {
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
