package orchmanager

import (
	"errors"
	"fmt"
	"sync"

	"github.com/yysun/agent-world-sub001/internal/ids"
	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

var (
	// ErrWorldProcessing is returned by CreateAgent when the target
	// world is currently processing and the caller did not set
	// AllowWhileProcessing.
	ErrWorldProcessing = errors.New("orchmanager: world is currently processing")

	// ErrAgentIDTaken is returned by CreateAgent when another creation
	// has already claimed (worldID, kebabName) and has not released it.
	ErrAgentIDTaken = errors.New("orchmanager: agent id already claimed in this world")

	// ErrNotFound is returned when a requested world/agent/chat does
	// not exist.
	ErrNotFound = errors.New("orchmanager: not found")
)

// CreateAgentParams is the caller-supplied agent definition.
type CreateAgentParams struct {
	Name         string
	Type         string
	Provider     orchmodel.Provider
	Model        string
	SystemPrompt string
	Temperature  *float64
	MaxTokens    *int
	AutoReply    bool
}

// CreateAgentOptions lets an in-flight create_agent tool call bypass
// the processing guard and the slot claim it already holds.
type CreateAgentOptions struct {
	AllowWhileProcessing bool
	SlotAlreadyClaimed   bool
}

// Manager is the facade exposed to callers (CLI/server). All methods
// are safe for concurrent use; persistence is delegated to storage.
type Manager struct {
	storage StorageAPI

	mu          sync.Mutex
	worlds      map[string]*orchmodel.World
	claimedSlot map[string]bool // key: worldID + "\x00" + kebabName
}

// New constructs a Manager backed by storage.
func New(storage StorageAPI) *Manager {
	return &Manager{
		storage:     storage,
		worlds:      make(map[string]*orchmodel.World),
		claimedSlot: make(map[string]bool),
	}
}

// --- Worlds ---

func (m *Manager) CreateWorld(world orchmodel.World) error {
	if err := m.storage.SaveWorld(world); err != nil {
		return fmt.Errorf("orchmanager: create world: %w", err)
	}
	m.mu.Lock()
	w := world
	m.worlds[world.ID] = &w
	m.mu.Unlock()
	return nil
}

func (m *Manager) GetWorld(worldID string) (orchmodel.World, error) {
	world, err := m.storage.LoadWorld(worldID)
	if err != nil {
		return orchmodel.World{}, fmt.Errorf("%w: %s", ErrNotFound, worldID)
	}
	return world, nil
}

func (m *Manager) UpdateWorld(world orchmodel.World) error {
	if err := m.storage.SaveWorld(world); err != nil {
		return fmt.Errorf("orchmanager: update world: %w", err)
	}
	m.mu.Lock()
	if existing, ok := m.worlds[world.ID]; ok {
		*existing = world
	} else {
		w := world
		m.worlds[world.ID] = &w
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) DeleteWorld(worldID string) error {
	if err := m.storage.DeleteWorld(worldID); err != nil {
		return fmt.Errorf("orchmanager: delete world: %w", err)
	}
	m.mu.Lock()
	delete(m.worlds, worldID)
	m.mu.Unlock()
	return nil
}

func (m *Manager) ListWorlds() ([]orchmodel.World, error) {
	return m.storage.ListWorlds()
}

// worldSnapshot returns the manager's in-memory tracking record for a
// world's processing state, falling back to storage if it hasn't been
// touched since process start.
func (m *Manager) worldSnapshot(worldID string) (*orchmodel.World, error) {
	m.mu.Lock()
	w, ok := m.worlds[worldID]
	m.mu.Unlock()
	if ok {
		return w, nil
	}
	loaded, err := m.storage.LoadWorld(worldID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, worldID)
	}
	m.mu.Lock()
	w = &loaded
	m.worlds[worldID] = w
	m.mu.Unlock()
	return w, nil
}

// --- Agents ---

// CreateAgent enforces the processing guard and the creation-slot map,
// then persists the new agent.
func (m *Manager) CreateAgent(worldID string, params CreateAgentParams, opts CreateAgentOptions) (orchmodel.Agent, error) {
	world, err := m.worldSnapshot(worldID)
	if err != nil {
		return orchmodel.Agent{}, err
	}

	if world.IsProcessing && !opts.AllowWhileProcessing {
		return orchmodel.Agent{}, ErrWorldProcessing
	}

	kebab := ids.ToKebabCase(params.Name)
	slotKey := worldID + "\x00" + kebab

	if !opts.SlotAlreadyClaimed {
		m.mu.Lock()
		if m.claimedSlot[slotKey] {
			m.mu.Unlock()
			return orchmodel.Agent{}, fmt.Errorf("%w: %s", ErrAgentIDTaken, kebab)
		}
		m.claimedSlot[slotKey] = true
		m.mu.Unlock()
		defer func() {
			m.mu.Lock()
			delete(m.claimedSlot, slotKey)
			m.mu.Unlock()
		}()
	}

	agent := orchmodel.Agent{
		ID:           kebab,
		Name:         params.Name,
		Type:         params.Type,
		Provider:     params.Provider,
		Model:        params.Model,
		SystemPrompt: params.SystemPrompt,
		Temperature:  params.Temperature,
		MaxTokens:    params.MaxTokens,
		AutoReply:    params.AutoReply,
	}
	if err := m.storage.SaveAgent(worldID, agent); err != nil {
		return orchmodel.Agent{}, fmt.Errorf("orchmanager: create agent: %w", err)
	}
	return agent, nil
}

func (m *Manager) GetAgent(worldID, agentID string) (orchmodel.Agent, error) {
	agent, err := m.storage.LoadAgent(worldID, agentID)
	if err != nil {
		return orchmodel.Agent{}, fmt.Errorf("%w: agent %s in world %s", ErrNotFound, agentID, worldID)
	}
	return agent, nil
}

func (m *Manager) UpdateAgent(worldID string, agent orchmodel.Agent) error {
	if err := m.storage.SaveAgentConfig(worldID, agent); err != nil {
		return fmt.Errorf("orchmanager: update agent: %w", err)
	}
	return nil
}

func (m *Manager) DeleteAgent(worldID, agentID string) error {
	if err := m.storage.DeleteAgent(worldID, agentID); err != nil {
		return fmt.Errorf("orchmanager: delete agent: %w", err)
	}
	return nil
}

func (m *Manager) ListAgents(worldID string) ([]orchmodel.Agent, error) {
	return m.storage.ListAgents(worldID)
}

func (m *Manager) ClearAgentMemory(worldID, agentID string) error {
	if err := m.storage.SaveAgentMemory(worldID, agentID, nil); err != nil {
		return fmt.Errorf("orchmanager: clear agent memory: %w", err)
	}
	return nil
}

// --- Chats ---

func (m *Manager) NewChat(worldID string, chat orchmodel.Chat) error {
	chat.Untitled = true
	if err := m.storage.SaveChatData(worldID, chat); err != nil {
		return fmt.Errorf("orchmanager: new chat: %w", err)
	}
	return nil
}

func (m *Manager) RestoreChat(worldID string, snapshot orchmodel.WorldChat) error {
	if err := m.storage.RestoreFromWorldChat(worldID, snapshot); err != nil {
		return fmt.Errorf("orchmanager: restore chat: %w", err)
	}
	return nil
}

func (m *Manager) ListChats(worldID string) ([]orchmodel.Chat, error) {
	return m.storage.ListChats(worldID)
}

func (m *Manager) DeleteChat(worldID, chatID string) error {
	if err := m.storage.DeleteChatData(worldID, chatID); err != nil {
		return fmt.Errorf("orchmanager: delete chat: %w", err)
	}
	return nil
}
