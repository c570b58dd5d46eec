// Package shellproc tracks the lifecycle of tool-spawned shell
// processes: execution records move through a strict
// state machine, active handles can be cancelled individually or by
// chat scope, and history is bounded with terminal-only eviction.
//
// Grounded on the teacher's internal/shell/process_registry.go registry
// shape, generalized from its narrower running/completed/failed/killed
// states to a fuller queued/starting/running/completed/failed/
// canceled/timed_out transition table.
package shellproc

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a ShellProcessExecutionRecord state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusStarting  Status = "starting"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
	StatusTimedOut  Status = "timed_out"
)

// IsTerminal reports whether s is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled, StatusTimedOut:
		return true
	default:
		return false
	}
}

// transitions enumerates every permitted (from, to) pair. Terminal ->
// terminal (self) is handled separately as an idempotent no-op rather
// than enumerated here.
var transitions = map[Status]map[Status]bool{
	StatusQueued: {
		StatusStarting:  true,
		StatusRunning:   true,
		StatusFailed:    true,
		StatusCanceled:  true,
		StatusTimedOut:  true,
	},
	StatusStarting: {
		StatusRunning:  true,
		StatusFailed:   true,
		StatusCanceled: true,
		StatusTimedOut: true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCanceled:  true,
		StatusTimedOut:  true,
	},
}

// CanTransition reports whether moving from 'from' to 'to' is legal.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return to == from
	}
	return transitions[from][to]
}

// Record is a ShellProcessExecutionRecord.
type Record struct {
	ExecutionID     string
	Command         string
	Parameters      []string
	Directory       string
	WorldID         string
	ChatID          string
	Status          Status
	CancelRequested bool
	CreatedAt       time.Time
	StartedAt       time.Time
	FinishedAt      time.Time
	ExitCode        int
	Signal          string
	StdoutLen       int
	StderrLen       int
	Error           string
	DurationMs      int64
}

// Handle is the live control surface for an active process, wired in by
// the shell-command tool once it spawns the child.
type Handle interface {
	// Signal sends SIGTERM (or the platform equivalent) to the process.
	Signal() error
}

// CancelOutcome describes the result of a Cancel call.
type CancelOutcome string

const (
	CancelRequested      CancelOutcome = "cancel_requested"
	CancelNotCancellable CancelOutcome = "not_cancellable"
	CancelNotFound       CancelOutcome = "not_found"
	CancelAlreadyFinished CancelOutcome = "already_finished"
)

// DefaultHistoryCap bounds how many completed executions are retained.
const DefaultHistoryCap = 2000

type entry struct {
	record Record
	handle Handle
}

// Registry tracks shell execution records and their live handles.
type Registry struct {
	mu         sync.Mutex
	entries    map[string]*entry
	order      []string // insertion order, for bounded eviction
	historyCap int
	subs       subscriberList
}

// NewRegistry creates a registry with the given history cap (<=0 uses
// DefaultHistoryCap).
func NewRegistry(historyCap int) *Registry {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &Registry{
		entries:    make(map[string]*entry),
		historyCap: historyCap,
	}
}

// Subscribe registers sub to be called with a copy of the record every
// time Create/Transition/Cancel/MarkCancelRequested changes it.
func (r *Registry) Subscribe(sub Subscriber) {
	r.subs.add(sub)
}

// Create registers a new queued record and returns its execution id.
func (r *Registry) Create(command string, parameters []string, directory, worldID, chatID string) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := Record{
		ExecutionID: uuid.NewString(),
		Command:     command,
		Parameters:  parameters,
		Directory:   directory,
		WorldID:     worldID,
		ChatID:      chatID,
		Status:      StatusQueued,
		CreatedAt:   time.Now(),
	}
	r.entries[rec.ExecutionID] = &entry{record: rec}
	r.order = append(r.order, rec.ExecutionID)
	r.evictLocked()
	r.subs.notify(rec)
	return rec
}

// AttachHandle wires a live process handle to an execution id, used by
// Cancel to deliver signals.
func (r *Registry) AttachHandle(executionID string, h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[executionID]
	if !ok {
		return fmt.Errorf("shellproc: unknown execution %q", executionID)
	}
	e.handle = h
	return nil
}

// Patch is a partial field update applied during a Transition.
type Patch struct {
	ExitCode   *int
	Signal     *string
	StdoutLen  *int
	StderrLen  *int
	Error      *string
	DurationMs *int64
}

// Transition moves an execution to a new status, applying patch fields,
// enforcing the transition table. Returns an error if the transition is
// illegal; terminal->same-terminal is a no-op success.
func (r *Registry) Transition(executionID string, to Status, patch Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[executionID]
	if !ok {
		return fmt.Errorf("shellproc: unknown execution %q", executionID)
	}
	from := e.record.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("shellproc: illegal transition %s -> %s for %q", from, to, executionID)
	}
	if from.IsTerminal() {
		return nil // idempotent no-op
	}

	now := time.Now()
	switch to {
	case StatusStarting, StatusRunning:
		if e.record.StartedAt.IsZero() {
			e.record.StartedAt = now
		}
	}
	e.record.Status = to
	if to.IsTerminal() {
		e.record.FinishedAt = now
		if !e.record.StartedAt.IsZero() {
			e.record.DurationMs = now.Sub(e.record.StartedAt).Milliseconds()
		}
	}
	if patch.ExitCode != nil {
		e.record.ExitCode = *patch.ExitCode
	}
	if patch.Signal != nil {
		e.record.Signal = *patch.Signal
	}
	if patch.StdoutLen != nil {
		e.record.StdoutLen = *patch.StdoutLen
	}
	if patch.StderrLen != nil {
		e.record.StderrLen = *patch.StderrLen
	}
	if patch.Error != nil {
		e.record.Error = *patch.Error
	}
	if patch.DurationMs != nil {
		e.record.DurationMs = *patch.DurationMs
	}
	rec := e.record
	r.subs.notify(rec)
	return nil
}

// MarkCancelRequested sets the cancel-requested flag without changing
// status (used when no live handle exists yet to signal).
func (r *Registry) MarkCancelRequested(executionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[executionID]
	if !ok {
		return fmt.Errorf("shellproc: unknown execution %q", executionID)
	}
	e.record.CancelRequested = true
	rec := e.record
	r.subs.notify(rec)
	return nil
}

// Get returns a copy of the record for executionID.
func (r *Registry) Get(executionID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[executionID]
	if !ok {
		return Record{}, false
	}
	return e.record, true
}

// ListFilter narrows List results.
type ListFilter struct {
	Limit      int
	Statuses   []Status
	WorldID    string
	ChatID     string
	ActiveOnly bool
}

// List returns records matching filter, most recently created first.
func (r *Registry) List(filter ListFilter) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	statusSet := map[Status]bool{}
	for _, s := range filter.Statuses {
		statusSet[s] = true
	}

	var out []Record
	for i := len(r.order) - 1; i >= 0; i-- {
		e, ok := r.entries[r.order[i]]
		if !ok {
			continue
		}
		rec := e.record
		if filter.WorldID != "" && rec.WorldID != filter.WorldID {
			continue
		}
		if filter.ChatID != "" && rec.ChatID != filter.ChatID {
			continue
		}
		if filter.ActiveOnly && rec.Status.IsTerminal() {
			continue
		}
		if len(statusSet) > 0 && !statusSet[rec.Status] {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// Cancel attempts to stop an execution and reports the outcome.
func (r *Registry) Cancel(executionID string) CancelOutcome {
	r.mu.Lock()
	e, ok := r.entries[executionID]
	if !ok {
		r.mu.Unlock()
		return CancelNotFound
	}
	if e.record.Status.IsTerminal() {
		r.mu.Unlock()
		return CancelAlreadyFinished
	}
	e.record.CancelRequested = true
	handle := e.handle
	rec := e.record
	r.mu.Unlock()
	r.subs.notify(rec)

	if handle != nil {
		_ = handle.Signal()
		return CancelRequested
	}
	return CancelNotCancellable
}

// StopForChatScope cancels every active execution for (worldID, chatID)
// and returns how many were signaled.
func (r *Registry) StopForChatScope(worldID, chatID string) int {
	r.mu.Lock()
	var ids []string
	for _, id := range r.order {
		e := r.entries[id]
		if e.record.WorldID == worldID && e.record.ChatID == chatID && !e.record.Status.IsTerminal() {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	killed := 0
	for _, id := range ids {
		if r.Cancel(id) == CancelRequested {
			killed++
		}
	}
	return killed
}

// Delete removes a terminal record; non-terminal records are rejected.
// Whether a handle is still attached is not checked.
func (r *Registry) Delete(executionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[executionID]
	if !ok {
		return fmt.Errorf("shellproc: unknown execution %q", executionID)
	}
	if !e.record.Status.IsTerminal() {
		return fmt.Errorf("shellproc: cannot delete non-terminal execution %q", executionID)
	}
	delete(r.entries, executionID)
	r.removeFromOrderLocked(executionID)
	return nil
}

func (r *Registry) removeFromOrderLocked(executionID string) {
	for i, id := range r.order {
		if id == executionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// evictLocked drops the oldest terminal records once the registry
// exceeds historyCap. Active records are never evicted, so the
// registry may transiently exceed historyCap if everything is active.
func (r *Registry) evictLocked() {
	for len(r.entries) > r.historyCap {
		evicted := false
		for _, id := range r.order {
			e, ok := r.entries[id]
			if !ok {
				continue
			}
			if e.record.Status.IsTerminal() {
				delete(r.entries, id)
				r.removeFromOrderLocked(id)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}

// Subscriber receives a copy of a record every time it changes.
type Subscriber func(Record)

// subscriberList holds the Subscribers registered through Subscribe;
// notify calls each of them with a copy of the changed record.
type subscriberList struct {
	mu   sync.Mutex
	subs []Subscriber
}

func (s *subscriberList) add(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
}

func (s *subscriberList) notify(rec Record) {
	s.mu.Lock()
	subs := append([]Subscriber(nil), s.subs...)
	s.mu.Unlock()
	for _, sub := range subs {
		sub(rec)
	}
}
