// Package worldbus implements the per-world event bus and the
// per-agent/per-world subscribers that react to it:
// auto-mention post-processing, the per-agent response handler, and
// chat-title auto-generation.
//
// Grounded on the teacher's internal/agent/event_emitter.go sequencing
// idiom (monotonic event stamping dispatched to a sink), generalized
// from a single-sink emitter into multiple named channels each with
// their own subscriber list — the same subscriberList shape as
// internal/shellproc/registry.go's change-notification hook.
package worldbus

import (
	"sync"

	"github.com/yysun/agent-world-sub001/internal/activity"
	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

// Channel names a world bus topic.
type Channel string

const (
	ChannelMessage       Channel = "message"
	ChannelSSE           Channel = "sse"
	ChannelTool          Channel = "tool"
	ChannelSystem        Channel = "system"
	ChannelWorldActivity Channel = "world-activity"
	ChannelProcessing    Channel = "processing"
	ChannelIdle          Channel = "idle"
	ChannelWorld         Channel = "world"
)

// Listener receives every event published on a channel it is
// subscribed to.
type Listener func(payload any)

// unsubscribe detaches a previously-added listener.
type unsubscribe func()

// channelSubs is a mutex-guarded listener list for one channel.
type channelSubs struct {
	mu   sync.Mutex
	next int
	subs map[int]Listener
}

func newChannelSubs() *channelSubs {
	return &channelSubs{subs: make(map[int]Listener)}
}

func (c *channelSubs) add(l Listener) unsubscribe {
	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = l
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *channelSubs) publish(payload any) {
	c.mu.Lock()
	listeners := make([]Listener, 0, len(c.subs))
	for _, l := range c.subs {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()
	for _, l := range listeners {
		l(payload)
	}
}

func (c *channelSubs) removeAll() {
	c.mu.Lock()
	c.subs = make(map[int]Listener)
	c.mu.Unlock()
}

// Bus is one world's event emitter: a fixed set of named channels, each
// independently subscribable. A Bus is recreated (never mutated in
// place) whenever a world subscription is refreshed, so that listeners
// attached to a stale Bus never observe events from the new one.
type Bus struct {
	channels map[Channel]*channelSubs
}

// New creates a Bus with every channel initialized.
func New() *Bus {
	b := &Bus{channels: make(map[Channel]*channelSubs)}
	for _, ch := range []Channel{
		ChannelMessage, ChannelSSE, ChannelTool, ChannelSystem,
		ChannelWorldActivity, ChannelProcessing, ChannelIdle, ChannelWorld,
	} {
		b.channels[ch] = newChannelSubs()
	}
	return b
}

// On subscribes l to channel ch, returning an unsubscribe func.
func (b *Bus) On(ch Channel, l Listener) unsubscribe {
	cs, ok := b.channels[ch]
	if !ok {
		cs = newChannelSubs()
		b.channels[ch] = cs
	}
	return cs.add(l)
}

// Emit publishes payload to every listener subscribed to ch.
func (b *Bus) Emit(ch Channel, payload any) {
	if cs, ok := b.channels[ch]; ok {
		cs.publish(payload)
	}
}

// RemoveAllListeners detaches every listener on every channel, mirroring
// an EventEmitter.removeAllListeners() call in the teardown path.
func (b *Bus) RemoveAllListeners() {
	for _, cs := range b.channels {
		cs.removeAll()
	}
}

// PublishActivity implements activity.Publisher by forwarding onto the
// world-activity channel, and additionally onto the dedicated
// processing/idle channels depending on the event's state.
func (b *Bus) PublishActivity(e activity.Event) {
	b.Emit(ChannelWorldActivity, e)
	if e.State == activity.StateProcessing {
		b.Emit(ChannelProcessing, e)
	} else {
		b.Emit(ChannelIdle, e)
	}
}

// PublishSSE implements dispatch.SSEPublisher by forwarding onto the
// sse channel. worldID is accepted for interface conformance and is not
// used: each Bus serves one world, so it only ever emits for that world.
func (b *Bus) PublishSSE(worldID string, event orchmodel.WorldSSEEvent) {
	b.Emit(ChannelSSE, event)
}

// PublishMessage implements dispatch.MessagePublisher by forwarding
// onto the message channel.
func (b *Bus) PublishMessage(worldID string, event orchmodel.WorldMessageEvent) {
	b.Emit(ChannelMessage, event)
}
