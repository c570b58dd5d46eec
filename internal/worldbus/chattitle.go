package worldbus

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

const maxChatTitleLength = 100

// TitleProvider generates a short title from conversation content,
// invoked with the world's configured chat-LLM. No type in this module
// implements it; the caller supplies one.
type TitleProvider interface {
	GenerateTitle(ctx context.Context, history []orchmodel.AgentMessage, newContent string) (string, error)
}

// ChatStore persists the renamed chat and loads its history, routing
// through the StorageAPI.
type ChatStore interface {
	LoadChatHistory(worldID, chatID string) ([]orchmodel.AgentMessage, error)
	RenameChat(worldID, chatID, name string) error
}

// ChatTitleDeps bundles the collaborators for the world-level
// chat-title subscriber.
type ChatTitleDeps struct {
	World    *orchmodel.World
	Bus      *Bus
	Titler   TitleProvider
	Store    ChatStore
	CurrentChat func() *orchmodel.Chat
}

// ChatTitleSubscriber attaches a "message" listener that renames the
// current chat the first time a message arrives while it is untitled.
func ChatTitleSubscriber(deps ChatTitleDeps) unsubscribe {
	return deps.Bus.On(ChannelMessage, func(payload any) {
		evt, ok := payload.(orchmodel.WorldMessageEvent)
		if !ok {
			return
		}
		chat := deps.CurrentChat()
		if chat == nil || !chat.Untitled {
			return
		}
		history, err := deps.Store.LoadChatHistory(deps.World.ID, chat.ID)
		if err != nil {
			return
		}
		title, err := deps.Titler.GenerateTitle(context.Background(), history, evt.Content)
		if err != nil || strings.TrimSpace(title) == "" {
			return
		}
		normalized := normalizeChatTitle(title)
		if err := deps.Store.RenameChat(deps.World.ID, chat.ID, normalized); err != nil {
			return
		}
		chat.Name = normalized
		chat.Untitled = false
		chat.UpdatedAt = time.Now()
		deps.Bus.Emit(ChannelSystem, ChatTitleUpdatedEvent{
			WorldID: deps.World.ID, ChatID: chat.ID, Title: normalized,
		})
	})
}

// ChatTitleUpdatedEvent is published on the system channel once a
// chat's auto-generated title is persisted.
type ChatTitleUpdatedEvent struct {
	WorldID string
	ChatID  string
	Title   string
}

var (
	wrappingQuotes  = regexp.MustCompile(`^["'“”‘’]+|["'“”‘’]+$`)
	collapseSpaces  = regexp.MustCompile(`\s+`)
)

// normalizeChatTitle strips wrapping quotes, collapses internal
// whitespace, and truncates to 100 characters including a trailing
// "…" marker when cut.
func normalizeChatTitle(title string) string {
	t := strings.TrimSpace(title)
	t = wrappingQuotes.ReplaceAllString(t, "")
	t = collapseSpaces.ReplaceAllString(t, " ")
	t = strings.TrimSpace(t)
	if len(t) <= maxChatTitleLength {
		return t
	}
	runes := []rune(t)
	if len(runes) <= maxChatTitleLength {
		return t
	}
	cut := maxChatTitleLength - 1
	if cut < 0 {
		cut = 0
	}
	return strings.TrimRight(string(runes[:cut]), " ") + "…"
}
