// Package orchstorage is a JSON-file-backed implementation of
// orchmanager.StorageAPI, grounded on the teacher's
// internal/auth/profiles.go load/save-whole-file idiom: one
// mutex-guarded in-memory tree, flushed to disk after every mutation.
package orchstorage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/yysun/agent-world-sub001/internal/orchmanager"
	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

const stateFilename = "orchcore-state.json"

// Store is a single-file JSON store holding every world's data. It
// satisfies orchmanager.StorageAPI.
type Store struct {
	mu   sync.RWMutex
	dir  string
	Data state `json:"data"`
}

type state struct {
	Worlds map[string]orchmodel.World                `json:"worlds"`
	Agents map[string]map[string]orchmodel.Agent     `json:"agents"` // worldID -> agentID -> agent
	Chats  map[string]map[string]orchmodel.Chat       `json:"chats"`  // worldID -> chatID -> chat
}

func newState() state {
	return state{
		Worlds: make(map[string]orchmodel.World),
		Agents: make(map[string]map[string]orchmodel.Agent),
		Chats:  make(map[string]map[string]orchmodel.Chat),
	}
}

// Open loads dir/orchcore-state.json if present, or starts empty.
func Open(dir string) (*Store, error) {
	s := &Store{dir: dir, Data: newState()}
	path := filepath.Join(dir, stateFilename)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("orchstorage: read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &s.Data); err != nil {
		return nil, fmt.Errorf("orchstorage: parse %s: %w", path, err)
	}
	if s.Data.Worlds == nil {
		s.Data.Worlds = make(map[string]orchmodel.World)
	}
	if s.Data.Agents == nil {
		s.Data.Agents = make(map[string]map[string]orchmodel.Agent)
	}
	if s.Data.Chats == nil {
		s.Data.Chats = make(map[string]map[string]orchmodel.Chat)
	}
	return s, nil
}

// flush persists the whole tree. Caller must hold s.mu (read or write).
func (s *Store) flush() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(s.Data, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, stateFilename)
	return os.WriteFile(path, raw, 0o600)
}

var _ orchmanager.StorageAPI = (*Store)(nil)

func (s *Store) SaveWorld(world orchmodel.World) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Data.Worlds[world.ID] = world
	return s.flush()
}

func (s *Store) LoadWorld(worldID string) (orchmodel.World, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.Data.Worlds[worldID]
	if !ok {
		return orchmodel.World{}, fmt.Errorf("orchstorage: world %s not found", worldID)
	}
	return w, nil
}

func (s *Store) ListWorlds() ([]orchmodel.World, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]orchmodel.World, 0, len(s.Data.Worlds))
	for _, w := range s.Data.Worlds {
		out = append(out, w)
	}
	return out, nil
}

func (s *Store) DeleteWorld(worldID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Data.Worlds, worldID)
	delete(s.Data.Agents, worldID)
	delete(s.Data.Chats, worldID)
	return s.flush()
}

func (s *Store) WorldExists(worldID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.Data.Worlds[worldID]
	return ok, nil
}

func (s *Store) SaveAgent(worldID string, agent orchmodel.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Data.Agents[worldID] == nil {
		s.Data.Agents[worldID] = make(map[string]orchmodel.Agent)
	}
	s.Data.Agents[worldID][agent.ID] = agent
	return s.flush()
}

func (s *Store) SaveAgentConfig(worldID string, agent orchmodel.Agent) error {
	return s.SaveAgent(worldID, agent)
}

func (s *Store) SaveAgentMemory(worldID, agentID string, memory []orchmodel.AgentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	agents := s.Data.Agents[worldID]
	if agents == nil {
		return fmt.Errorf("orchstorage: agent %s not found in world %s", agentID, worldID)
	}
	agent, ok := agents[agentID]
	if !ok {
		return fmt.Errorf("orchstorage: agent %s not found in world %s", agentID, worldID)
	}
	agent.Memory = memory
	agents[agentID] = agent
	return s.flush()
}

func (s *Store) LoadAgent(worldID, agentID string) (orchmodel.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.Data.Agents[worldID][agentID]
	if !ok {
		return orchmodel.Agent{}, fmt.Errorf("orchstorage: agent %s not found in world %s", agentID, worldID)
	}
	return a, nil
}

func (s *Store) ListAgents(worldID string) ([]orchmodel.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]orchmodel.Agent, 0, len(s.Data.Agents[worldID]))
	for _, a := range s.Data.Agents[worldID] {
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) DeleteAgent(worldID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Data.Agents[worldID], agentID)
	return s.flush()
}

func (s *Store) SaveChatData(worldID string, chat orchmodel.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Data.Chats[worldID] == nil {
		s.Data.Chats[worldID] = make(map[string]orchmodel.Chat)
	}
	s.Data.Chats[worldID][chat.ID] = chat
	return s.flush()
}

func (s *Store) LoadChatData(worldID, chatID string) (orchmodel.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.Data.Chats[worldID][chatID]
	if !ok {
		return orchmodel.Chat{}, fmt.Errorf("orchstorage: chat %s not found in world %s", chatID, worldID)
	}
	return c, nil
}

func (s *Store) UpdateChatData(worldID, chatID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.Data.Chats[worldID][chatID]
	if !ok {
		return fmt.Errorf("orchstorage: chat %s not found in world %s", chatID, worldID)
	}
	if name, ok := fields["name"].(string); ok {
		chat.Name = name
	}
	s.Data.Chats[worldID][chatID] = chat
	return s.flush()
}

func (s *Store) ListChats(worldID string) ([]orchmodel.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]orchmodel.Chat, 0, len(s.Data.Chats[worldID]))
	for _, c := range s.Data.Chats[worldID] {
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) DeleteChatData(worldID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Data.Chats[worldID], chatID)
	return s.flush()
}

func (s *Store) SaveWorldChat(worldID string, snapshot orchmodel.WorldChat) error {
	return nil
}

func (s *Store) LoadWorldChat(worldID, chatID string) (orchmodel.WorldChat, error) {
	return orchmodel.WorldChat{}, fmt.Errorf("orchstorage: no snapshot for chat %s", chatID)
}

func (s *Store) RestoreFromWorldChat(worldID string, snapshot orchmodel.WorldChat) error {
	return nil
}

func (s *Store) ValidateIntegrity(worldID string) error { return nil }
func (s *Store) RepairData(worldID string) error        { return nil }
func (s *Store) ArchiveMemory(worldID, agentID string) error {
	return s.SaveAgentMemory(worldID, agentID, nil)
}
