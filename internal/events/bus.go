// Package events provides the typed, in-process publish/subscribe bus
// used by the Tier Engine and Interaction Coordinator to deliver
// totally-ordered event streams to subscribers.
//
// Adapted from the generic subscriber/dispatch shape of a serial-port
// multiplexer: a mutex-protected subscriber map keyed by a random id,
// Subscribe returning the channel plus an unregister handle, and a
// broadcast that skips (never blocks on) a slow subscriber.
package events

import (
	"sync"

	"github.com/billyribeiro-ux/vizcore/internal/monitoring"
	"github.com/google/uuid"
)

// Kind identifies the category of an emitted Event, per the engine
// specification's event schema.
type Kind string

const (
	KindTierSwitch           Kind = "TierSwitch"
	KindLODChange            Kind = "LODChange"
	KindPerformanceViolation Kind = "PerformanceViolation"
	KindError                Kind = "Error"
	KindHoverChanged         Kind = "HoverChanged"
	KindHoverCleared         Kind = "HoverCleared"
	KindZoomIntent           Kind = "ZoomIntent"
	KindZoomReset            Kind = "ZoomReset"
)

// Event is the envelope delivered to every subscriber: a type tag, a
// timestamp, and an opaque payload whose concrete type depends on Kind
// (TierSwitchPayload, LODChangePayload, ViolationPayload, or error for
// KindError).
type Event struct {
	Type      Kind
	TimeNanos int64
	Payload   interface{}
}

// TierSwitchReason explains why the Tier Engine changed tiers.
type TierSwitchReason string

const (
	ReasonDensity     TierSwitchReason = "density"
	ReasonPerformance TierSwitchReason = "performance"
	ReasonManual      TierSwitchReason = "manual"
	ReasonFallback    TierSwitchReason = "fallback"
)

// TierSwitchPayload is the payload of a KindTierSwitch event.
type TierSwitchPayload struct {
	From          string
	To            string
	Reason        TierSwitchReason
	Density       float64
	AvgFrameTime  float64
}

// LODChangePayload is the payload of a KindLODChange event.
type LODChangePayload struct {
	SeriesID   string
	Level      int
	Compression float64
}

// ViolationPayload is the payload of a KindPerformanceViolation event.
type ViolationPayload struct {
	ConsecutiveDrops int
	AvgFrameTimeMS   float64
}

// HoverChangedPayload is the payload of a KindHoverChanged event,
// emitted when the Interaction Coordinator's settled hover identity
// differs from its previous one.
type HoverChangedPayload struct {
	SeriesID string
	PointID  string
	PixelX   float64
	PixelY   float64
}

// ZoomIntentPayload is the payload of a KindZoomIntent event, emitted
// by the Interaction Coordinator's debounced Wheel handler.
type ZoomIntentPayload struct {
	Factor  float64
	AnchorX float64
	AnchorY float64
}

// Unregister drops a subscription. Calling it more than once, or
// after the Bus has been closed, is a no-op.
type Unregister func()

// Bus is a mutex-protected fan-out of Event to any number of
// subscribers. A handler fault during dispatch must never reach the
// Bus caller (spec.md §4.4/§7.5) — Bus itself only ever delivers onto
// channels; the engine is responsible for recovering from a panicking
// handler goroutine, which Subscribe's helper (SubscribeFunc) does.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]chan Event
	closed      bool
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]chan Event)}
}

// Subscribe registers a new subscriber and returns its delivery
// channel plus an Unregister handle. The channel has a small buffer so
// a burst of events (e.g. TierSwitch immediately followed by the first
// render's LODChange) doesn't force synchronous handoff.
func (b *Bus) Subscribe() (<-chan Event, Unregister) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan Event, 16)
	if !b.closed {
		b.subscribers[id] = ch
	} else {
		close(ch)
	}
	return ch, func() { b.unsubscribe(id) }
}

// SubscribeFunc registers handler to be invoked for every event,
// running it on a dedicated goroutine and recovering any panic into a
// log line rather than letting it propagate — spec.md §7.5 "Subscriber
// fault: an event handler throws. Caught, logged... never propagated."
func (b *Bus) SubscribeFunc(handler func(Event)) Unregister {
	ch, unreg := b.Subscribe()
	go func() {
		for ev := range ch {
			safeInvoke(handler, ev)
		}
	}()
	return unreg
}

func safeInvoke(handler func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.Logf("events: subscriber handler panicked: %v", r)
		}
	}()
	handler(ev)
}

// unsubscribe removes and closes a subscriber's channel.
func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Publish delivers ev to every current subscriber. A subscriber whose
// channel is full is skipped for this event rather than blocking the
// publisher — the engine must never stall waiting on a slow observer.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close unsubscribes and closes every subscriber channel. Publish
// after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}

// SubscriberCount reports the number of live subscribers; used by
// tests and the event bridge's diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
