package worldbus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yysun/agent-world-sub001/internal/dispatch"
	"github.com/yysun/agent-world-sub001/internal/ids"
	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

// turnLimitMarker is the literal content an agent skips when deciding
// whether to respond, and the prefix of the notice it publishes once
// its own call budget is exhausted.
const turnLimitMarker = "Turn limit reached"

// AgentHandlerDeps bundles everything a per-agent handler needs to
// react to "message" channel events, grounded on the teacher's pattern
// of passing narrow collaborator interfaces into agent.EventEmitter
// rather than a god object.
type AgentHandlerDeps struct {
	World     *orchmodel.World
	Agent     *orchmodel.Agent
	Bus       *Bus
	Loop      *dispatch.Loop
	Registry  dispatch.ToolRegistry
	Provider  dispatch.Provider
	Persister dispatch.Persister
}

// AgentHandler subscribes deps.Agent to deps.Bus's message channel and
// implements its per-agent response policy. The returned
// unsubscribe detaches the listener (used when a world's agents map is
// torn down on refresh/destroy).
func AgentHandler(deps AgentHandlerDeps) unsubscribe {
	return deps.Bus.On(ChannelMessage, func(payload any) {
		evt, ok := payload.(orchmodel.WorldMessageEvent)
		if !ok {
			return
		}
		handleIncomingMessage(context.Background(), deps, evt)
	})
}

func handleIncomingMessage(ctx context.Context, deps AgentHandlerDeps, evt orchmodel.WorldMessageEvent) {
	agent := deps.Agent
	world := deps.World

	// 1. ignore events the agent itself sent.
	if strings.EqualFold(evt.Sender, agent.ID) {
		return
	}

	senderType := ids.DetermineSenderType(evt.Sender)

	// 2. human/world senders reset the call budget.
	if senderType == ids.SenderHuman || senderType == ids.SenderWorld {
		agent.LLMCallCount = 0
		if deps.Persister != nil {
			_ = deps.Persister.PersistAgentCallCount(world.ID, agent.ID, 0, agent.LastLLMCall)
		}
	}

	if !shouldAgentRespond(deps, evt, senderType) {
		return
	}

	// 4. save the incoming message to memory.
	agent.Memory = append(agent.Memory, orchmodel.AgentMessage{
		Role:      orchmodel.RoleUser,
		Content:   evt.Content,
		Sender:    evt.Sender,
		CreatedAt: evt.Timestamp,
		ChatID:    world.CurrentChatID,
	})
	if deps.Persister != nil {
		_ = deps.Persister.PersistAgentMemory(world.ID, agent.ID, agent.Memory)
	}

	// dispatch the LLM loop; agent.Memory is first cut to its last 10
	// entries, which bounds the history the loop works from.
	trimmed := lastN(agent.Memory, 10)
	agent.Memory = trimmed

	if deps.Loop == nil || deps.Provider == nil {
		return
	}
	if _, err := deps.Loop.Run(ctx, world, agent, deps.Registry, deps.Provider, world.CurrentChatID, evt.Sender); err != nil {
		deps.Bus.Emit(ChannelSystem, fmt.Sprintf("agent %s dispatch error: %v", agent.ID, err))
	}
}

func lastN(msgs []orchmodel.AgentMessage, n int) []orchmodel.AgentMessage {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// shouldAgentRespond decides whether an agent should react to an
// incoming message based on sender type and mention position.
func shouldAgentRespond(deps AgentHandlerDeps, evt orchmodel.WorldMessageEvent, senderType ids.SenderType) bool {
	agent := deps.Agent
	world := deps.World

	if strings.Contains(evt.Content, turnLimitMarker) {
		return false
	}

	if world.TurnLimit > 0 && agent.LLMCallCount >= world.TurnLimit {
		notice := fmt.Sprintf("@human %s (%d LLM calls). Please take control of the conversation.", turnLimitMarker, agent.LLMCallCount)
		deps.Bus.PublishMessage(world.ID, orchmodel.WorldMessageEvent{
			Content: notice, Sender: agent.ID, Timestamp: time.Now(),
		})
		return false
	}

	if senderType == ids.SenderSystem {
		return false
	}
	if senderType == ids.SenderWorld {
		return true
	}

	anyMentions := ids.ExtractMentions(evt.Content)
	beginMentions := ids.ExtractParagraphBeginningMentions(evt.Content)

	if senderType == ids.SenderHuman {
		if len(beginMentions) == 0 && len(anyMentions) == 0 {
			return true
		}
		if len(beginMentions) == 0 && len(anyMentions) > 0 {
			return false
		}
		return containsFold(beginMentions, agent.ID)
	}

	// agent senders
	return containsFold(beginMentions, agent.ID)
}

func containsFold(set []string, target string) bool {
	for _, s := range set {
		if strings.EqualFold(s, target) {
			return true
		}
	}
	return false
}
