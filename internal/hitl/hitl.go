// Package hitl implements the human-in-the-loop option-request runtime:
// a pending request is created per (worldID, requestID), resolves
// exactly once either from a user submission or from a timeout firing
// the default option, and emits a "system" event payload the caller is
// expected to forward onto the world bus.
package hitl

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ResolutionSource identifies how a request was resolved.
type ResolutionSource string

const (
	SourceUser    ResolutionSource = "user"
	SourceTimeout ResolutionSource = "timeout"
)

// DefaultTimeout is the default wait before a pending request resolves
// to its default option.
const DefaultTimeout = 120 * time.Second

// Option is a single choice offered to the human.
type Option struct {
	ID          string
	Label       string
	Description string
}

// Request describes a pending option request.
type Request struct {
	WorldID         string
	RequestID       string
	Title           string
	Message         string
	Options         []Option
	DefaultOptionID string
	Timeout         time.Duration
	Metadata        map[string]any
	ChatID          string
}

// Resolution is the outcome of a request, delivered exactly once.
type Resolution struct {
	OptionID string
	Source   ResolutionSource
}

// SystemEventPayload mirrors the wire shape of the "hitl-option-request"
// system event.
type SystemEventPayload struct {
	EventType       string         `json:"eventType"`
	RequestID       string         `json:"requestId"`
	Title           string         `json:"title"`
	Message         string         `json:"message"`
	Options         []Option       `json:"options"`
	DefaultOptionID string         `json:"defaultOptionId"`
	TimeoutMs       int64          `json:"timeoutMs"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// EventPublisher forwards the HITL system event payload to a world's
// "system" channel. No type in this module implements it; worldbus.Bus
// has no PublishSystem method.
type EventPublisher interface {
	PublishSystem(worldID string, payload SystemEventPayload)
}

type pending struct {
	req       Request
	resolveCh chan Resolution
	resolved  bool
	timer     *time.Timer
}

// Runtime mediates HITL option requests. Zero value is not usable; use
// NewRuntime.
type Runtime struct {
	mu        sync.Mutex
	pending   map[string]*pending // key: worldID + "\x00" + requestID
	publisher EventPublisher
}

// NewRuntime creates a HITL runtime that publishes request events
// through publisher (may be nil to disable publication, e.g. in tests).
func NewRuntime(publisher EventPublisher) *Runtime {
	return &Runtime{
		pending:   make(map[string]*pending),
		publisher: publisher,
	}
}

func key(worldID, requestID string) string {
	return worldID + "\x00" + requestID
}

// RequestOption normalizes the request's options, determines the
// default option, arms the timeout, stores the pending entry and
// publishes the system event, then blocks until resolution (by user
// submission or timeout). If requestID is empty, a uuid is generated.
func (r *Runtime) RequestOption(req Request) (Resolution, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultTimeout
	}

	normalized, err := normalizeOptions(req.Options)
	if err != nil {
		return Resolution{}, err
	}
	req.Options = normalized
	req.DefaultOptionID = resolveDefaultOptionID(req.DefaultOptionID, normalized)

	p := &pending{
		req:       req,
		resolveCh: make(chan Resolution, 1),
	}

	k := key(req.WorldID, req.RequestID)
	r.mu.Lock()
	if _, exists := r.pending[k]; exists {
		r.mu.Unlock()
		return Resolution{}, fmt.Errorf("hitl: duplicate request id %q for world %q", req.RequestID, req.WorldID)
	}
	r.pending[k] = p
	r.mu.Unlock()

	p.timer = time.AfterFunc(req.Timeout, func() {
		r.resolve(req.WorldID, req.RequestID, Resolution{OptionID: req.DefaultOptionID, Source: SourceTimeout})
	})

	if r.publisher != nil {
		r.publisher.PublishSystem(req.WorldID, SystemEventPayload{
			EventType:       "hitl-option-request",
			RequestID:       req.RequestID,
			Title:           req.Title,
			Message:         req.Message,
			Options:         req.Options,
			DefaultOptionID: req.DefaultOptionID,
			TimeoutMs:       req.Timeout.Milliseconds(),
			Metadata:        req.Metadata,
		})
	}

	resolution := <-p.resolveCh
	return resolution, nil
}

// SubmitResponse resolves a pending request with a user-chosen option.
// Returns (accepted=false, reason) for unknown request, unknown option,
// or a chatID mismatch, never an error —, HITL submission
// never throws.
func (r *Runtime) SubmitResponse(worldID, requestID, optionID, chatID string) (accepted bool, reason string) {
	r.mu.Lock()
	p, ok := r.pending[key(worldID, requestID)]
	r.mu.Unlock()
	if !ok {
		return false, "unknown request"
	}
	if chatID != "" && p.req.ChatID != "" && chatID != p.req.ChatID {
		return false, "chat scope mismatch"
	}
	found := false
	for _, o := range p.req.Options {
		if o.ID == optionID {
			found = true
			break
		}
	}
	if !found {
		return false, "unknown option"
	}

	resolved := r.resolve(worldID, requestID, Resolution{OptionID: optionID, Source: SourceUser})
	if !resolved {
		return false, "already resolved"
	}
	return true, ""
}

// resolve delivers resolution to the pending request exactly once,
// stopping its timer and removing it from the map. Returns false if the
// request was already resolved or does not exist (idempotent no-op).
func (r *Runtime) resolve(worldID, requestID string, resolution Resolution) bool {
	r.mu.Lock()
	p, ok := r.pending[key(worldID, requestID)]
	if !ok || p.resolved {
		r.mu.Unlock()
		return false
	}
	p.resolved = true
	delete(r.pending, key(worldID, requestID))
	r.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
	}
	p.resolveCh <- resolution
	return true
}

// PendingCount reports the number of requests awaiting resolution,
// primarily for tests and diagnostics.
func (r *Runtime) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func normalizeOptions(options []Option) ([]Option, error) {
	seen := map[string]bool{}
	out := make([]Option, 0, len(options))
	for _, o := range options {
		id := strings.TrimSpace(o.ID)
		label := strings.TrimSpace(o.Label)
		if id == "" || label == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, Option{ID: id, Label: label, Description: strings.TrimSpace(o.Description)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("hitl: request must have at least one non-empty option")
	}
	return out, nil
}

func resolveDefaultOptionID(explicit string, options []Option) string {
	if explicit != "" {
		for _, o := range options {
			if o.ID == explicit {
				return explicit
			}
		}
	}
	for _, o := range options {
		if o.ID == "no" {
			return "no"
		}
	}
	return options[0].ID
}
