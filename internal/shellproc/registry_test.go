package shellproc

import "testing"

func TestTransitionTableOnlyPermittedMoves(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusQueued, StatusStarting, true},
		{StatusQueued, StatusCompleted, false},
		{StatusStarting, StatusRunning, true},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusStarting, false},
		{StatusCompleted, StatusCompleted, true},
		{StatusCompleted, StatusRunning, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestRegistryTransitionEnforcesTable(t *testing.T) {
	r := NewRegistry(0)
	rec := r.Create("ls", nil, "/tmp", "w1", "c1")
	if err := r.Transition(rec.ExecutionID, StatusCompleted, Patch{}); err == nil {
		t.Fatalf("expected illegal transition queued->completed to fail")
	}
	if err := r.Transition(rec.ExecutionID, StatusStarting, Patch{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Transition(rec.ExecutionID, StatusRunning, Patch{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	exitCode := 0
	if err := r.Transition(rec.ExecutionID, StatusCompleted, Patch{ExitCode: &exitCode}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := r.Get(rec.ExecutionID)
	if !ok || got.Status != StatusCompleted {
		t.Fatalf("got %+v", got)
	}
	// Terminal -> same terminal is a no-op, not an error.
	if err := r.Transition(rec.ExecutionID, StatusCompleted, Patch{}); err != nil {
		t.Fatalf("terminal self-transition should be idempotent: %v", err)
	}
	// Terminal -> any other state is illegal.
	if err := r.Transition(rec.ExecutionID, StatusRunning, Patch{}); err == nil {
		t.Fatalf("expected terminal record to reject re-entering non-terminal state")
	}
}

type fakeHandle struct{ signaled bool }

func (h *fakeHandle) Signal() error {
	h.signaled = true
	return nil
}

func TestCancelOutcomes(t *testing.T) {
	r := NewRegistry(0)

	rec := r.Create("sleep 100", nil, "/tmp", "w1", "c1")
	if outcome := r.Cancel(rec.ExecutionID); outcome != CancelNotCancellable {
		t.Fatalf("expected not_cancellable without a handle, got %s", outcome)
	}

	rec2 := r.Create("sleep 100", nil, "/tmp", "w1", "c1")
	h := &fakeHandle{}
	if err := r.AttachHandle(rec2.ExecutionID, h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome := r.Cancel(rec2.ExecutionID); outcome != CancelRequested {
		t.Fatalf("expected cancel_requested, got %s", outcome)
	}
	if !h.signaled {
		t.Fatalf("expected handle to be signaled")
	}

	if outcome := r.Cancel("missing"); outcome != CancelNotFound {
		t.Fatalf("expected not_found, got %s", outcome)
	}

	rec3 := r.Create("true", nil, "/tmp", "w1", "c1")
	_ = r.Transition(rec3.ExecutionID, StatusStarting, Patch{})
	_ = r.Transition(rec3.ExecutionID, StatusRunning, Patch{})
	_ = r.Transition(rec3.ExecutionID, StatusCompleted, Patch{})
	if outcome := r.Cancel(rec3.ExecutionID); outcome != CancelAlreadyFinished {
		t.Fatalf("expected already_finished, got %s", outcome)
	}
}

func TestStopForChatScope(t *testing.T) {
	r := NewRegistry(0)
	rec1 := r.Create("sleep 1", nil, "/tmp", "w1", "c1")
	h1 := &fakeHandle{}
	_ = r.AttachHandle(rec1.ExecutionID, h1)
	rec2 := r.Create("sleep 1", nil, "/tmp", "w1", "c2")
	h2 := &fakeHandle{}
	_ = r.AttachHandle(rec2.ExecutionID, h2)

	killed := r.StopForChatScope("w1", "c1")
	if killed != 1 {
		t.Fatalf("expected 1 killed, got %d", killed)
	}
	if !h1.signaled || h2.signaled {
		t.Fatalf("expected only c1's handle signaled: h1=%v h2=%v", h1.signaled, h2.signaled)
	}
}

func TestDeleteRejectsNonTerminal(t *testing.T) {
	r := NewRegistry(0)
	rec := r.Create("ls", nil, "/tmp", "w1", "c1")
	if err := r.Delete(rec.ExecutionID); err == nil {
		t.Fatalf("expected delete of non-terminal record to fail")
	}
	_ = r.Transition(rec.ExecutionID, StatusStarting, Patch{})
	_ = r.Transition(rec.ExecutionID, StatusFailed, Patch{})
	if err := r.Delete(rec.ExecutionID); err != nil {
		t.Fatalf("unexpected error deleting terminal record: %v", err)
	}
}

func TestHistoryEvictsOnlyTerminal(t *testing.T) {
	r := NewRegistry(2)
	active := r.Create("sleep 1", nil, "/tmp", "w1", "c1")
	rec2 := r.Create("true", nil, "/tmp", "w1", "c1")
	_ = r.Transition(rec2.ExecutionID, StatusStarting, Patch{})
	_ = r.Transition(rec2.ExecutionID, StatusRunning, Patch{})
	_ = r.Transition(rec2.ExecutionID, StatusCompleted, Patch{})
	_ = r.Create("true", nil, "/tmp", "w1", "c1") // triggers eviction of rec2

	if _, ok := r.Get(rec2.ExecutionID); ok {
		t.Fatalf("expected oldest terminal record to be evicted")
	}
	if _, ok := r.Get(active.ExecutionID); !ok {
		t.Fatalf("expected active record to never be evicted")
	}
}
