package orchstorage

import (
	"testing"

	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

func TestStore_SaveAndLoadWorld(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SaveWorld(orchmodel.World{ID: "w1", Name: "Test"}); err != nil {
		t.Fatalf("SaveWorld: %v", err)
	}
	got, err := s.LoadWorld("w1")
	if err != nil {
		t.Fatalf("LoadWorld: %v", err)
	}
	if got.Name != "Test" {
		t.Errorf("got.Name = %q", got.Name)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s1.SaveWorld(orchmodel.World{ID: "w1", Name: "Persisted"})
	s1.SaveAgent("w1", orchmodel.Agent{ID: "bob", Name: "Bob"})

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	world, err := s2.LoadWorld("w1")
	if err != nil {
		t.Fatalf("LoadWorld after reopen: %v", err)
	}
	if world.Name != "Persisted" {
		t.Errorf("world.Name = %q after reopen", world.Name)
	}
	agent, err := s2.LoadAgent("w1", "bob")
	if err != nil {
		t.Fatalf("LoadAgent after reopen: %v", err)
	}
	if agent.Name != "Bob" {
		t.Errorf("agent.Name = %q after reopen", agent.Name)
	}
}

func TestStore_DeleteWorldCascadesAgentsAndChats(t *testing.T) {
	s, _ := Open(t.TempDir())
	s.SaveWorld(orchmodel.World{ID: "w1"})
	s.SaveAgent("w1", orchmodel.Agent{ID: "bob"})
	s.SaveChatData("w1", orchmodel.Chat{ID: "c1"})

	if err := s.DeleteWorld("w1"); err != nil {
		t.Fatalf("DeleteWorld: %v", err)
	}
	if _, err := s.LoadWorld("w1"); err == nil {
		t.Error("world should be gone")
	}
	agents, _ := s.ListAgents("w1")
	if len(agents) != 0 {
		t.Errorf("agents after world delete = %v", agents)
	}
	chats, _ := s.ListChats("w1")
	if len(chats) != 0 {
		t.Errorf("chats after world delete = %v", chats)
	}
}

func TestStore_WorldExists(t *testing.T) {
	s, _ := Open(t.TempDir())
	if exists, _ := s.WorldExists("missing"); exists {
		t.Error("missing world should not exist")
	}
	s.SaveWorld(orchmodel.World{ID: "w1"})
	if exists, _ := s.WorldExists("w1"); !exists {
		t.Error("saved world should exist")
	}
}

func TestStore_UpdateChatDataRenamesChat(t *testing.T) {
	s, _ := Open(t.TempDir())
	s.SaveWorld(orchmodel.World{ID: "w1"})
	s.SaveChatData("w1", orchmodel.Chat{ID: "c1", Name: "Untitled"})

	if err := s.UpdateChatData("w1", "c1", map[string]any{"name": "Deploy help"}); err != nil {
		t.Fatalf("UpdateChatData: %v", err)
	}
	chat, err := s.LoadChatData("w1", "c1")
	if err != nil {
		t.Fatalf("LoadChatData: %v", err)
	}
	if chat.Name != "Deploy help" {
		t.Errorf("chat.Name = %q", chat.Name)
	}
}

func TestStore_LoadWorld_NotFound(t *testing.T) {
	s, _ := Open(t.TempDir())
	if _, err := s.LoadWorld("missing"); err == nil {
		t.Error("LoadWorld should error for a missing world")
	}
}

func TestStore_ArchiveMemoryClearsAgentMemory(t *testing.T) {
	s, _ := Open(t.TempDir())
	s.SaveWorld(orchmodel.World{ID: "w1"})
	s.SaveAgent("w1", orchmodel.Agent{ID: "bob", Memory: []orchmodel.AgentMessage{{Content: "hi"}}})

	if err := s.ArchiveMemory("w1", "bob"); err != nil {
		t.Fatalf("ArchiveMemory: %v", err)
	}
	agent, _ := s.LoadAgent("w1", "bob")
	if len(agent.Memory) != 0 {
		t.Errorf("agent.Memory = %v, want empty after archive", agent.Memory)
	}
}
