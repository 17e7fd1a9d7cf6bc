package async

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sphero-protocol/sphero-go/pkg/log"
	"github.com/sphero-protocol/sphero-go/pkg/wire"
)

// DefaultQueueSize is the dispatch queue capacity used when Config leaves
// QueueSize unset. Sensor streaming at 50 Hz fills at most a handful of
// slots between dispatcher wakeups.
const DefaultQueueSize = 64

// Listener receives async packets for a subscribed event code. Listeners
// run on the router's dispatcher goroutine; blocking ones hold up other
// listeners but never the read loop.
type Listener func(pkt *wire.Packet)

// Config holds the settings of a Router.
type Config struct {
	// QueueSize is the dispatch queue capacity. Defaults to
	// DefaultQueueSize.
	QueueSize int

	// ConnectionID and RobotName label diagnostic log events. Optional.
	ConnectionID string
	RobotName    string

	// Logger records dropped packets and listener panics. Optional.
	Logger log.Logger
}

// Subscription identifies one registered listener so it can be removed.
type Subscription struct {
	id   uint64
	kind wire.AsyncID
	all  bool
	fn   Listener
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() uint64 {
	return s.id
}

// Kind returns the event code the subscription listens for. It is only
// meaningful for kind-specific subscriptions.
func (s *Subscription) Kind() wire.AsyncID {
	return s.kind
}

type queueItem struct {
	gen uint64
	pkt *wire.Packet
}

// Router dispatches async packets to listeners by event code. Listeners
// for one code fire in registration order. Packets whose code has no
// listener fall back to the catch-all subscriptions, and are dropped
// with a diagnostic record when there is none.
type Router struct {
	config Config

	mu        sync.RWMutex
	listeners map[wire.AsyncID][]*Subscription
	catchAll  []*Subscription

	queue chan queueItem

	// gen stamps queued packets; DropPending bumps it so the dispatcher
	// skips everything enqueued before the flush.
	gen     atomic.Uint64
	dropped atomic.Uint64

	closed  atomic.Bool
	closeCh chan struct{}
	done    chan struct{}
}

// NewRouter creates a router and starts its dispatcher goroutine.
func NewRouter(config Config) *Router {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	r := &Router{
		config:    config,
		listeners: make(map[wire.AsyncID][]*Subscription),
		queue:     make(chan queueItem, config.QueueSize),
		closeCh:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	go r.run()
	return r
}

// Subscribe registers a listener for one event code and returns its
// subscription handle.
func (r *Router) Subscribe(kind wire.AsyncID, fn Listener) *Subscription {
	sub := &Subscription{id: nextSubscriptionID(), kind: kind, fn: fn}
	r.mu.Lock()
	r.listeners[kind] = append(r.listeners[kind], sub)
	r.mu.Unlock()
	return sub
}

// SubscribeAll registers a catch-all listener. It receives every packet
// whose event code has no specific listener registered.
func (r *Router) SubscribeAll(fn Listener) *Subscription {
	sub := &Subscription{id: nextSubscriptionID(), all: true, fn: fn}
	r.mu.Lock()
	r.catchAll = append(r.catchAll, sub)
	r.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription. Removing one that is already gone
// is a no-op.
func (r *Router) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.all {
		r.catchAll = removeSubscription(r.catchAll, sub.id)
		return
	}
	subs := removeSubscription(r.listeners[sub.kind], sub.id)
	if len(subs) == 0 {
		delete(r.listeners, sub.kind)
	} else {
		r.listeners[sub.kind] = subs
	}
}

// Count returns the number of registered subscriptions, catch-alls
// included.
func (r *Router) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.catchAll)
	for _, subs := range r.listeners {
		n += len(subs)
	}
	return n
}

// Dispatch queues an async packet for delivery. It never blocks: when
// the queue is full or the router is closed the packet is dropped and
// counted.
func (r *Router) Dispatch(pkt *wire.Packet) {
	if r.closed.Load() {
		return
	}
	select {
	case r.queue <- queueItem{gen: r.gen.Load(), pkt: pkt}:
	default:
		r.dropped.Add(1)
		r.logDropped(pkt, "dispatch queue full")
	}
}

// DropPending discards every packet queued but not yet delivered. The
// connection owner calls it during disconnect teardown. A delivery
// already in a listener is not interrupted.
func (r *Router) DropPending() {
	r.gen.Add(1)
}

// Dropped returns the number of packets dropped because the queue was
// full or no listener was registered.
func (r *Router) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops the dispatcher goroutine and waits for it to exit. Packets
// dispatched after Close are dropped silently.
func (r *Router) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	close(r.closeCh)
	<-r.done
}

func (r *Router) run() {
	defer close(r.done)
	for {
		select {
		case it := <-r.queue:
			if it.gen != r.gen.Load() {
				continue
			}
			r.deliver(it.pkt)
		case <-r.closeCh:
			return
		}
	}
}

func (r *Router) deliver(pkt *wire.Packet) {
	kind := pkt.AsyncID()

	r.mu.RLock()
	subs := append([]*Subscription(nil), r.listeners[kind]...)
	all := append([]*Subscription(nil), r.catchAll...)
	r.mu.RUnlock()

	if len(subs) > 0 {
		for _, sub := range subs {
			r.invoke(sub, pkt)
		}
		return
	}
	if len(all) > 0 {
		for _, sub := range all {
			r.invoke(sub, pkt)
		}
		return
	}
	r.dropped.Add(1)
	r.logDropped(pkt, "no listener registered")
}

// invoke runs one listener, containing panics so a faulty callback
// cannot kill the dispatcher.
func (r *Router) invoke(sub *Subscription, pkt *wire.Packet) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logEvent(fmt.Sprintf("listener panic: %v", rec),
				fmt.Sprintf("subscription %d, event %s", sub.id, pkt.AsyncID()))
		}
	}()
	sub.fn(pkt)
}

func (r *Router) logDropped(pkt *wire.Packet, reason string) {
	r.logEvent("async packet dropped",
		fmt.Sprintf("event %s: %s", pkt.AsyncID(), reason))
}

func (r *Router) logEvent(message, context string) {
	if r.config.Logger == nil {
		return
	}
	r.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: r.config.ConnectionID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerPacket,
		Category:     log.CategoryError,
		RobotName:    r.config.RobotName,
		Error: &log.ErrorEventData{
			Layer:   log.LayerPacket,
			Message: message,
			Context: context,
		},
	})
}

func removeSubscription(subs []*Subscription, id uint64) []*Subscription {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

var subscriptionCounter atomic.Uint64

// nextSubscriptionID returns the next unique subscription ID.
func nextSubscriptionID() uint64 {
	return subscriptionCounter.Add(1)
}
