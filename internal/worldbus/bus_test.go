package worldbus

import (
	"sync"
	"testing"

	"github.com/yysun/agent-world-sub001/internal/activity"
	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

func TestBus_OnEmit(t *testing.T) {
	bus := New()

	var received []any
	var mu sync.Mutex
	bus.On(ChannelMessage, func(payload any) {
		mu.Lock()
		received = append(received, payload)
		mu.Unlock()
	})

	bus.Emit(ChannelMessage, "hello")
	bus.Emit(ChannelMessage, "world")

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("received = %d events, want 2", len(received))
	}
	if received[0] != "hello" || received[1] != "world" {
		t.Errorf("received = %v", received)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()

	count := 0
	unsub := bus.On(ChannelSystem, func(payload any) {
		count++
	})

	bus.Emit(ChannelSystem, "one")
	unsub()
	bus.Emit(ChannelSystem, "two")

	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestBus_ChannelIsolation(t *testing.T) {
	bus := New()

	var sseCount, toolCount int
	bus.On(ChannelSSE, func(payload any) { sseCount++ })
	bus.On(ChannelTool, func(payload any) { toolCount++ })

	bus.Emit(ChannelSSE, "x")

	if sseCount != 1 {
		t.Errorf("sseCount = %d, want 1", sseCount)
	}
	if toolCount != 0 {
		t.Errorf("toolCount = %d, want 0 (no cross-talk between channels)", toolCount)
	}
}

func TestBus_RemoveAllListeners(t *testing.T) {
	bus := New()

	count := 0
	bus.On(ChannelWorld, func(payload any) { count++ })
	bus.On(ChannelIdle, func(payload any) { count++ })

	bus.RemoveAllListeners()
	bus.Emit(ChannelWorld, "x")
	bus.Emit(ChannelIdle, "y")

	if count != 0 {
		t.Errorf("count = %d, want 0 after RemoveAllListeners", count)
	}
}

func TestBus_PublishActivityRoutesByState(t *testing.T) {
	bus := New()

	var processingSeen, idleSeen, activitySeen int
	bus.On(ChannelProcessing, func(payload any) { processingSeen++ })
	bus.On(ChannelIdle, func(payload any) { idleSeen++ })
	bus.On(ChannelWorldActivity, func(payload any) { activitySeen++ })

	bus.PublishActivity(activity.Event{State: activity.StateProcessing})
	bus.PublishActivity(activity.Event{State: activity.StateIdle})

	if processingSeen != 1 {
		t.Errorf("processingSeen = %d, want 1", processingSeen)
	}
	if idleSeen != 1 {
		t.Errorf("idleSeen = %d, want 1", idleSeen)
	}
	if activitySeen != 2 {
		t.Errorf("activitySeen = %d, want 2 (every activity event)", activitySeen)
	}
}

func TestBus_PublishSSEAndMessage(t *testing.T) {
	bus := New()

	var sseEvents []orchmodel.WorldSSEEvent
	var msgEvents []orchmodel.WorldMessageEvent
	bus.On(ChannelSSE, func(payload any) {
		sseEvents = append(sseEvents, payload.(orchmodel.WorldSSEEvent))
	})
	bus.On(ChannelMessage, func(payload any) {
		msgEvents = append(msgEvents, payload.(orchmodel.WorldMessageEvent))
	})

	bus.PublishSSE("world-1", orchmodel.WorldSSEEvent{Type: orchmodel.SSEChunk})
	bus.PublishMessage("world-1", orchmodel.WorldMessageEvent{Content: "hi"})

	if len(sseEvents) != 1 || sseEvents[0].Type != orchmodel.SSEChunk {
		t.Errorf("sseEvents = %v", sseEvents)
	}
	if len(msgEvents) != 1 || msgEvents[0].Content != "hi" {
		t.Errorf("msgEvents = %v", msgEvents)
	}
}

func TestBus_ConcurrentSubscribeAndEmit(t *testing.T) {
	bus := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := bus.On(ChannelTool, func(payload any) {})
			bus.Emit(ChannelTool, "x")
			unsub()
		}()
	}
	wg.Wait()
}
