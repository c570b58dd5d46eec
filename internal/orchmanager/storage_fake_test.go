package orchmanager

import (
	"errors"
	"sync"

	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

// fakeStorage is an in-memory StorageAPI used across this package's tests.
type fakeStorage struct {
	mu     sync.Mutex
	worlds map[string]orchmodel.World
	agents map[string]map[string]orchmodel.Agent
	chats  map[string]map[string]orchmodel.Chat
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		worlds: make(map[string]orchmodel.World),
		agents: make(map[string]map[string]orchmodel.Agent),
		chats:  make(map[string]map[string]orchmodel.Chat),
	}
}

func (f *fakeStorage) SaveWorld(world orchmodel.World) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.worlds[world.ID] = world
	return nil
}

func (f *fakeStorage) LoadWorld(worldID string) (orchmodel.World, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.worlds[worldID]
	if !ok {
		return orchmodel.World{}, errors.New("not found")
	}
	return w, nil
}

func (f *fakeStorage) ListWorlds() ([]orchmodel.World, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]orchmodel.World, 0, len(f.worlds))
	for _, w := range f.worlds {
		out = append(out, w)
	}
	return out, nil
}

func (f *fakeStorage) DeleteWorld(worldID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.worlds, worldID)
	return nil
}

func (f *fakeStorage) WorldExists(worldID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.worlds[worldID]
	return ok, nil
}

func (f *fakeStorage) SaveAgent(worldID string, agent orchmodel.Agent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.agents[worldID] == nil {
		f.agents[worldID] = make(map[string]orchmodel.Agent)
	}
	f.agents[worldID][agent.ID] = agent
	return nil
}

func (f *fakeStorage) SaveAgentConfig(worldID string, agent orchmodel.Agent) error {
	return f.SaveAgent(worldID, agent)
}

func (f *fakeStorage) SaveAgentMemory(worldID, agentID string, memory []orchmodel.AgentMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	agent := f.agents[worldID][agentID]
	agent.Memory = memory
	if f.agents[worldID] == nil {
		f.agents[worldID] = make(map[string]orchmodel.Agent)
	}
	f.agents[worldID][agentID] = agent
	return nil
}

func (f *fakeStorage) LoadAgent(worldID, agentID string) (orchmodel.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agents[worldID][agentID]
	if !ok {
		return orchmodel.Agent{}, errors.New("not found")
	}
	return a, nil
}

func (f *fakeStorage) ListAgents(worldID string) ([]orchmodel.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]orchmodel.Agent, 0, len(f.agents[worldID]))
	for _, a := range f.agents[worldID] {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStorage) DeleteAgent(worldID, agentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.agents[worldID], agentID)
	return nil
}

func (f *fakeStorage) SaveChatData(worldID string, chat orchmodel.Chat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chats[worldID] == nil {
		f.chats[worldID] = make(map[string]orchmodel.Chat)
	}
	f.chats[worldID][chat.ID] = chat
	return nil
}

func (f *fakeStorage) LoadChatData(worldID, chatID string) (orchmodel.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[worldID][chatID]
	if !ok {
		return orchmodel.Chat{}, errors.New("not found")
	}
	return c, nil
}

func (f *fakeStorage) UpdateChatData(worldID, chatID string, fields map[string]any) error {
	return nil
}

func (f *fakeStorage) ListChats(worldID string) ([]orchmodel.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]orchmodel.Chat, 0, len(f.chats[worldID]))
	for _, c := range f.chats[worldID] {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStorage) DeleteChatData(worldID, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.chats[worldID], chatID)
	return nil
}

func (f *fakeStorage) SaveWorldChat(worldID string, snapshot orchmodel.WorldChat) error {
	return nil
}

func (f *fakeStorage) LoadWorldChat(worldID, chatID string) (orchmodel.WorldChat, error) {
	return orchmodel.WorldChat{}, nil
}

func (f *fakeStorage) RestoreFromWorldChat(worldID string, snapshot orchmodel.WorldChat) error {
	return nil
}

func (f *fakeStorage) ValidateIntegrity(worldID string) error { return nil }
func (f *fakeStorage) RepairData(worldID string) error        { return nil }
func (f *fakeStorage) ArchiveMemory(worldID, agentID string) error {
	return nil
}
