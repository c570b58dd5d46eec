package chathousekeeping

import (
	"testing"
	"time"

	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

type fakeStore struct {
	worlds  []orchmodel.World
	chats   map[string][]orchmodel.Chat
	deleted []string
}

func (f *fakeStore) ListWorlds() ([]orchmodel.World, error) { return f.worlds, nil }

func (f *fakeStore) ListChats(worldID string) ([]orchmodel.Chat, error) {
	return f.chats[worldID], nil
}

func (f *fakeStore) DeleteChat(worldID, chatID string) error {
	f.deleted = append(f.deleted, chatID)
	chats := f.chats[worldID]
	for i, c := range chats {
		if c.ID == chatID {
			f.chats[worldID] = append(chats[:i], chats[i+1:]...)
			break
		}
	}
	return nil
}

func TestNew_RejectsInvalidSchedule(t *testing.T) {
	if _, err := New(&fakeStore{}, "not a schedule", time.Hour, nil); err == nil {
		t.Error("New should reject an invalid cron schedule")
	}
}

func TestSweepWorld_RemovesOldUntitledChats(t *testing.T) {
	store := &fakeStore{
		chats: map[string][]orchmodel.Chat{
			"w1": {
				{ID: "stale", Untitled: true, CreatedAt: time.Now().Add(-2 * time.Hour)},
				{ID: "fresh", Untitled: true, CreatedAt: time.Now()},
				{ID: "named", Untitled: false, CreatedAt: time.Now().Add(-2 * time.Hour)},
			},
		},
	}
	h, err := New(store, "@hourly", time.Hour, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n, err := h.SweepWorld("w1")
	if err != nil {
		t.Fatalf("SweepWorld: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed = %d, want 1", n)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "stale" {
		t.Errorf("deleted = %v, want [stale]", store.deleted)
	}
	if len(store.chats["w1"]) != 2 {
		t.Errorf("remaining chats = %d, want 2", len(store.chats["w1"]))
	}
}

func TestSweepWorld_NoStaleChatsRemovesNothing(t *testing.T) {
	store := &fakeStore{
		chats: map[string][]orchmodel.Chat{
			"w1": {{ID: "fresh", Untitled: true, CreatedAt: time.Now()}},
		},
	}
	h, err := New(store, "@daily", time.Hour, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n, err := h.SweepWorld("w1")
	if err != nil {
		t.Fatalf("SweepWorld: %v", err)
	}
	if n != 0 {
		t.Errorf("removed = %d, want 0", n)
	}
}

func TestStartStop_DoesNotPanic(t *testing.T) {
	h, err := New(&fakeStore{}, "@every 1h", time.Hour, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.Start()
	h.Stop()
}
