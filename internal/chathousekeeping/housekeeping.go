// Package chathousekeeping periodically sweeps stale untitled chats
// out of every world, scheduled with the same cron expression grammar
// the teacher's internal/cron package parses (standard 5-field plus an
// optional leading seconds field).
package chathousekeeping

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yysun/agent-world-sub001/internal/orchmodel"
)

var parser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// WorldChatStore is the subset of internal/orchmanager.Manager a
// Housekeeper needs, kept narrow so tests can fake it.
type WorldChatStore interface {
	ListWorlds() ([]orchmodel.World, error)
	ListChats(worldID string) ([]orchmodel.Chat, error)
	DeleteChat(worldID, chatID string) error
}

// Housekeeper sweeps untitled chats older than MaxAge out of every
// world on a cron schedule.
type Housekeeper struct {
	store  WorldChatStore
	maxAge time.Duration
	logger *slog.Logger
	cron   *cron.Cron
}

// New validates schedule (a cron expression) and returns a Housekeeper
// ready to Start. maxAge is how old an untitled chat must be before a
// sweep deletes it.
func New(store WorldChatStore, schedule string, maxAge time.Duration, logger *slog.Logger) (*Housekeeper, error) {
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("chathousekeeping: invalid schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Housekeeper{
		store:  store,
		maxAge: maxAge,
		logger: logger,
		cron:   cron.New(cron.WithParser(parser)),
	}
	if _, err := h.cron.AddFunc(schedule, h.sweepAll); err != nil {
		return nil, fmt.Errorf("chathousekeeping: schedule sweep: %w", err)
	}
	return h, nil
}

// Start begins running the sweep on its cron schedule. Stop must be
// called to release the scheduler goroutine.
func (h *Housekeeper) Start() {
	h.cron.Start()
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (h *Housekeeper) Stop() {
	<-h.cron.Stop().Done()
}

func (h *Housekeeper) sweepAll() {
	ctx := context.Background()
	worlds, err := h.store.ListWorlds()
	if err != nil {
		h.logger.ErrorContext(ctx, "chathousekeeping: list worlds failed", "error", err)
		return
	}
	total := 0
	for _, w := range worlds {
		n, err := h.SweepWorld(w.ID)
		if err != nil {
			h.logger.ErrorContext(ctx, "chathousekeeping: sweep world failed", "world", w.ID, "error", err)
			continue
		}
		total += n
	}
	if total > 0 {
		h.logger.Info("chathousekeeping: swept stale untitled chats", "count", total)
	}
}

// SweepWorld deletes untitled chats in worldID older than maxAge and
// returns how many were removed.
func (h *Housekeeper) SweepWorld(worldID string) (int, error) {
	chats, err := h.store.ListChats(worldID)
	if err != nil {
		return 0, fmt.Errorf("chathousekeeping: list chats for %s: %w", worldID, err)
	}
	cutoff := time.Now().Add(-h.maxAge)
	removed := 0
	for _, c := range chats {
		if !c.Untitled || c.CreatedAt.After(cutoff) {
			continue
		}
		if err := h.store.DeleteChat(worldID, c.ID); err != nil {
			return removed, fmt.Errorf("chathousekeeping: delete chat %s: %w", c.ID, err)
		}
		removed++
	}
	return removed, nil
}
