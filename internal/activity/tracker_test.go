package activity

import (
	"sync"
	"testing"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) PublishActivity(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestBeginEndBracketsIdle(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec)

	release := tr.Begin("w1", "llm")
	if !tr.IsProcessing("w1") {
		t.Fatalf("expected processing after Begin")
	}
	release()
	if tr.IsProcessing("w1") {
		t.Fatalf("expected idle after Release")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 2 || rec.events[0].Change != ChangeStart || rec.events[1].Change != ChangeEnd || rec.events[1].State != StateIdle {
		t.Fatalf("got %+v", rec.events)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	tr := NewTracker(nil)
	release := tr.Begin("w1", "tool")
	release()
	release()
	if tr.PendingCount("w1") != 0 {
		t.Fatalf("expected pending count to stay at 0 after repeated release, got %d", tr.PendingCount("w1"))
	}
}

func TestNestedOperationsStayProcessingUntilLastRelease(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec)
	r1 := tr.Begin("w1", "a")
	r2 := tr.Begin("w1", "b")
	r1()
	if !tr.IsProcessing("w1") {
		t.Fatalf("expected still processing with one operation outstanding")
	}
	r2()
	if tr.IsProcessing("w1") {
		t.Fatalf("expected idle once all operations released")
	}
}
