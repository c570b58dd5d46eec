// Package worldlifecycle implements world subscription lifecycle:
// attaching a client to a world's event bus, and tearing down or
// refreshing that attachment.
//
// Grounded on the teacher's internal/agent loop/executor composition
// style (narrow constructor functions wiring independently-built
// collaborators), generalized here to (re)build a worldbus.Bus and
// reattach every agent handler to it — corrected to return errors from
// Refresh/Destroy instead of panicking on a double-destroy.
package worldlifecycle

import (
	"errors"
	"sync"

	"github.com/yysun/agent-world-sub001/internal/orchmodel"
	"github.com/yysun/agent-world-sub001/internal/worldbus"
)

// ErrAlreadyDestroyed is returned by any Subscription method called
// after Destroy has already run.
var ErrAlreadyDestroyed = errors.New("worldlifecycle: subscription already destroyed")

// Client receives forwarded world bus events and log lines.
type Client interface {
	OnWorldEvent(eventType string, payload any)
	OnLog(line string)
}

// Loader reloads a world and its agents from storage, used by Refresh.
type Loader interface {
	LoadWorld(worldID string) (*orchmodel.World, []*orchmodel.Agent, error)
}

// AttachFunc builds and wires every per-agent/world-level subscriber
// onto a fresh bus for the given world/agents, returning the
// unsubscribe functions to call on teardown. Supplied by the caller
// (internal/orchmanager) since it alone knows how to construct
// dispatch.Loop/Provider/Registry per agent.
type AttachFunc func(bus *worldbus.Bus, world *orchmodel.World, agents []*orchmodel.Agent) []func()

// Subscription is a live attachment of a Client to one world's bus.
// Every method is safe for concurrent use.
type Subscription struct {
	mu         sync.Mutex
	worldID    string
	client     Client
	loader     Loader
	attach     AttachFunc
	bus        *worldbus.Bus
	unsubs     []func()
	busUnsub   []func()
	destroyed  bool
	world      *orchmodel.World
	agents     []*orchmodel.Agent
}

// Start attaches client to world's bus: subscribes every agent handler
// (through attach) and forwards bus events to client.OnWorldEvent. No
// log stream is forwarded; client.OnLog receives only the line Destroy
// writes.
func Start(world *orchmodel.World, agents []*orchmodel.Agent, client Client, loader Loader, attach AttachFunc) *Subscription {
	s := &Subscription{
		worldID: world.ID,
		client:  client,
		loader:  loader,
		attach:  attach,
		world:   world,
		agents:  agents,
	}
	s.wire()
	return s
}

func (s *Subscription) wire() {
	bus := worldbus.New()
	s.bus = bus

	forward := func(eventType string) func(any) {
		return func(payload any) {
			s.client.OnWorldEvent(eventType, payload)
		}
	}
	var busUnsub []func()
	for _, ch := range []worldbus.Channel{
		worldbus.ChannelMessage, worldbus.ChannelSSE, worldbus.ChannelTool,
		worldbus.ChannelSystem, worldbus.ChannelWorldActivity,
		worldbus.ChannelProcessing, worldbus.ChannelIdle, worldbus.ChannelWorld,
	} {
		unsub := bus.On(ch, forward(string(ch)))
		busUnsub = append(busUnsub, func() { unsub() })
	}
	s.busUnsub = busUnsub

	if s.attach != nil {
		s.unsubs = s.attach(bus, s.world, s.agents)
	}
}

// Unsubscribe detaches this subscription's listeners without tearing
// down the underlying agents, matching the teacher's "soft stop"
// distinction between unsubscribe and destroy.
func (s *Subscription) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrAlreadyDestroyed
	}
	for _, u := range s.busUnsub {
		u()
	}
	s.busUnsub = nil
	return nil
}

// Destroy detaches all listeners, clears the bus entirely, and drops
// the agents map.
func (s *Subscription) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrAlreadyDestroyed
	}
	for _, u := range s.unsubs {
		u()
	}
	for _, u := range s.busUnsub {
		u()
	}
	s.bus.RemoveAllListeners()
	s.unsubs = nil
	s.busUnsub = nil
	s.agents = nil
	s.destroyed = true
	s.client.OnLog("world " + s.worldID + " subscription destroyed")
	return nil
}

// Refresh destroys the current attachment, reloads the world from
// storage, and re-attaches — recreating the Bus so that events from the
// old instance never reach the client afterward (an invariant).
func (s *Subscription) Refresh() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrAlreadyDestroyed
	}
	for _, u := range s.unsubs {
		u()
	}
	for _, u := range s.busUnsub {
		u()
	}
	s.bus.RemoveAllListeners()
	s.unsubs = nil
	s.busUnsub = nil
	s.mu.Unlock()

	world, agents, err := s.loader.LoadWorld(s.worldID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrAlreadyDestroyed
	}
	s.world = world
	s.agents = agents
	s.wire()
	return nil
}
