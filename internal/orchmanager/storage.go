// Package orchmanager implements the manager facade:
// CRUD over worlds/agents/chats, the agent-creation slot-claim map, and
// per-chat message-processing cancellation — the single entry point
// exposed to callers (CLI/server).
//
// Grounded on the teacher's internal/gateway service-facade layering
// (a thin struct delegating to a storage interface plus in-memory
// bookkeeping maps), with CRUD operations named after the orchestration
// domain rather than the teacher's REST-resource naming.
package orchmanager

import (
	"time"

	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

// StorageAPI is the persistence boundary: plain data in, plain data
// out, no runtime objects. The Manager takes a concrete backend from its
// caller; internal/orchstorage.Store is the file-backed implementation.
type StorageAPI interface {
	SaveWorld(world orchmodel.World) error
	LoadWorld(worldID string) (orchmodel.World, error)
	ListWorlds() ([]orchmodel.World, error)
	DeleteWorld(worldID string) error
	WorldExists(worldID string) (bool, error)

	SaveAgent(worldID string, agent orchmodel.Agent) error
	SaveAgentConfig(worldID string, agent orchmodel.Agent) error
	SaveAgentMemory(worldID, agentID string, memory []orchmodel.AgentMessage) error
	LoadAgent(worldID, agentID string) (orchmodel.Agent, error)
	ListAgents(worldID string) ([]orchmodel.Agent, error)
	DeleteAgent(worldID, agentID string) error

	SaveChatData(worldID string, chat orchmodel.Chat) error
	LoadChatData(worldID, chatID string) (orchmodel.Chat, error)
	UpdateChatData(worldID, chatID string, fields map[string]any) error
	ListChats(worldID string) ([]orchmodel.Chat, error)
	DeleteChatData(worldID, chatID string) error

	SaveWorldChat(worldID string, snapshot orchmodel.WorldChat) error
	LoadWorldChat(worldID, chatID string) (orchmodel.WorldChat, error)
	RestoreFromWorldChat(worldID string, snapshot orchmodel.WorldChat) error

	ValidateIntegrity(worldID string) error
	RepairData(worldID string) error
	ArchiveMemory(worldID, agentID string) error
}

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time
