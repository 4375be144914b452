package broker

import (
	"sync"

	"github.com/zkintents/taralli/pkg/systems"
)

// broadcastCapacity is the capacity of each subscriber's inbound channel
// (spec.md §4.F: "capacity C, config, default small, e.g. 16"); it is a
// fixed constant, not read from config.
const broadcastCapacity = 16

// subscriberChan is one subscriber's inbound queue, shared by every
// SystemId in its mask.
type subscriberChan chan []byte

// Hub fans out serialized streaming-wire-form records to WebSocket
// subscribers, keyed by SystemId bit. Each SystemId keeps a set of
// subscribers; a subscriber joining with mask m is added to the set of every
// SystemId whose bit is set in m, all pointing at its one inbound channel.
// Grounded on spec.md §4.F's subscription manager description.
type Hub struct {
	mu   sync.Mutex
	subs map[systems.SystemId]map[*Subscription]subscriberChan
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	h := &Hub{subs: make(map[systems.SystemId]map[*Subscription]subscriberChan)}
	for _, id := range systems.All() {
		h.subs[id] = make(map[*Subscription]subscriberChan)
	}
	return h
}

// Subscription is a single WebSocket session's handle into the Hub: one
// merged inbound channel fed by every SystemId channel in its mask.
type Subscription struct {
	mask    uint32
	inbound chan []byte
	hub     *Hub
}

// Subscribe joins the hub with the given subscription mask, returning a
// handle whose Messages() channel receives every future broadcast on a bit
// set in mask.
func (h *Hub) Subscribe(mask uint32) *Subscription {
	sub := &Subscription{mask: mask, inbound: make(chan []byte, broadcastCapacity), hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range systems.All() {
		if mask&id.Bit() == 0 {
			continue
		}
		h.subs[id][sub] = sub.inbound
	}
	return sub
}

// Messages returns the subscription's merged inbound channel.
func (s *Subscription) Messages() <-chan []byte { return s.inbound }

// Close detaches the subscription from every channel it joined. Idempotent
// is not guaranteed; callers must call it exactly once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	for _, id := range systems.All() {
		delete(s.hub.subs[id], s)
	}
	close(s.inbound)
}

// Broadcast fans payload out to every subscriber of id, atomically with
// respect to concurrent Subscribe/Close calls. A full subscriber channel is
// skipped rather than blocking the producer (spec.md §4.F: "bounded; on
// overflow, slow subscribers ... MUST NOT block producers"); the dropped
// frame leaves that subscriber with a gap. Returns the subscriber count
// observed at broadcast time.
func (h *Hub) Broadcast(id systems.SystemId, payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	chans := h.subs[id]
	for _, ch := range chans {
		select {
		case ch <- payload:
		default:
		}
	}
	return len(chans)
}
