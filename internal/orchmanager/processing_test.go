package orchmanager

import (
	"context"
	"sync"
	"testing"
)

func TestProcessingRegistry_BeginStop(t *testing.T) {
	reg := NewProcessingRegistry()
	ctx, release := reg.Begin(context.Background(), "w1", "c1")
	defer release()

	if reg.ActiveCount("w1", "c1") != 1 {
		t.Fatalf("ActiveCount = %d, want 1", reg.ActiveCount("w1", "c1"))
	}

	n := reg.Stop("w1", "c1")
	if n != 1 {
		t.Errorf("Stop returned %d, want 1", n)
	}
	if ctx.Err() == nil {
		t.Error("context should be cancelled after Stop")
	}
	if reg.ActiveCount("w1", "c1") != 0 {
		t.Errorf("ActiveCount after Stop = %d, want 0", reg.ActiveCount("w1", "c1"))
	}
}

func TestProcessingRegistry_StopCancelsAllControllersForChat(t *testing.T) {
	reg := NewProcessingRegistry()
	ctx1, release1 := reg.Begin(context.Background(), "w1", "c1")
	defer release1()
	ctx2, release2 := reg.Begin(context.Background(), "w1", "c1")
	defer release2()

	if reg.ActiveCount("w1", "c1") != 2 {
		t.Fatalf("ActiveCount = %d, want 2", reg.ActiveCount("w1", "c1"))
	}

	n := reg.Stop("w1", "c1")
	if n != 2 {
		t.Errorf("Stop returned %d, want 2", n)
	}
	if ctx1.Err() == nil || ctx2.Err() == nil {
		t.Error("both controllers should be cancelled")
	}
}

func TestProcessingRegistry_DifferentChatsAreIndependent(t *testing.T) {
	reg := NewProcessingRegistry()
	ctx1, release1 := reg.Begin(context.Background(), "w1", "c1")
	defer release1()
	ctx2, release2 := reg.Begin(context.Background(), "w1", "c2")
	defer release2()

	reg.Stop("w1", "c1")

	if ctx1.Err() == nil {
		t.Error("c1's controller should be cancelled")
	}
	if ctx2.Err() != nil {
		t.Error("c2's controller should be unaffected by stopping c1")
	}
	if reg.ActiveCount("w1", "c2") != 1 {
		t.Errorf("ActiveCount(c2) = %d, want 1", reg.ActiveCount("w1", "c2"))
	}
}

func TestProcessingRegistry_ReleaseIsIdempotent(t *testing.T) {
	reg := NewProcessingRegistry()
	_, release := reg.Begin(context.Background(), "w1", "c1")

	release()
	release()
	release()

	if reg.ActiveCount("w1", "c1") != 0 {
		t.Errorf("ActiveCount after repeated release = %d, want 0", reg.ActiveCount("w1", "c1"))
	}
}

func TestProcessingRegistry_ReleaseAfterStopIsSafe(t *testing.T) {
	reg := NewProcessingRegistry()
	_, release := reg.Begin(context.Background(), "w1", "c1")

	reg.Stop("w1", "c1")
	release()

	if reg.ActiveCount("w1", "c1") != 0 {
		t.Errorf("ActiveCount = %d, want 0", reg.ActiveCount("w1", "c1"))
	}
}

func TestProcessingRegistry_StopOnEmptyChatReturnsZero(t *testing.T) {
	reg := NewProcessingRegistry()
	if n := reg.Stop("w1", "no-such-chat"); n != 0 {
		t.Errorf("Stop on empty chat = %d, want 0", n)
	}
}

func TestProcessingRegistry_ConcurrentBeginAndRelease(t *testing.T) {
	reg := NewProcessingRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release := reg.Begin(context.Background(), "w1", "c1")
			release()
		}()
	}
	wg.Wait()

	if reg.ActiveCount("w1", "c1") != 0 {
		t.Errorf("ActiveCount after concurrent begin/release = %d, want 0", reg.ActiveCount("w1", "c1"))
	}
}
