package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yazinsai/cal-ai/internal/clock"
	"github.com/yazinsai/cal-ai/internal/store"
)

type ResetState string

const (
	ResetCurrent ResetState = "CURRENT"
	ResetStale   ResetState = "STALE"
)

type ResetTrigger string

const (
	TriggerStartup    ResetTrigger = "startup"
	TriggerMidnight   ResetTrigger = "midnight"
	TriggerInterval   ResetTrigger = "interval"
	TriggerForeground ResetTrigger = "foreground"
	TriggerManual     ResetTrigger = "manual"
)

// Rollover is published when the working day advances.
type Rollover struct {
	From    string       `json:"from,omitempty"`
	To      string       `json:"to"`
	Trigger ResetTrigger `json:"trigger"`
	At      time.Time    `json:"at"`
}

// ResetScheduler advances the reset marker to the current local date.
// It never touches ledgers; old days stay in history.
type ResetScheduler struct {
	st     *store.Store
	clk    clock.Clock
	logger *slog.Logger

	checkMu sync.Mutex

	subMu  sync.Mutex
	subs   map[int]func(Rollover)
	nextID int

	wake chan struct{}
}

func NewResetScheduler(st *store.Store, clk clock.Clock, logger *slog.Logger) *ResetScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetScheduler{
		st:     st,
		clk:    clk,
		logger: logger.With(slog.String("component", "reset")),
		subs:   make(map[int]func(Rollover)),
		wake:   make(chan struct{}, 1),
	}
}

func (r *ResetScheduler) State() ResetState {
	marker, ok := r.st.ResetMarker()
	if ok && marker == clock.Today(r.clk) {
		return ResetCurrent
	}
	return ResetStale
}

// Check moves the marker to today when it differs and notifies
// subscribers. Within one calendar day only the first call changes state.
func (r *ResetScheduler) Check(trigger ResetTrigger) (Rollover, bool, error) {
	r.checkMu.Lock()
	defer r.checkMu.Unlock()

	now := r.clk.Now()
	today := clock.DateKey(now, r.clk.Location())
	marker, _ := r.st.ResetMarker()
	if marker == today {
		return Rollover{}, false, nil
	}
	if err := r.st.SetResetMarker(today); err != nil {
		return Rollover{}, false, fmt.Errorf("write reset marker: %w", err)
	}
	ev := Rollover{From: marker, To: today, Trigger: trigger, At: now}
	r.logger.Info("day rolled over",
		slog.String("from", marker),
		slog.String("to", today),
		slog.String("trigger", string(trigger)))
	r.publish(ev)
	return ev, true, nil
}

// Subscribe registers fn for rollover events and returns a function that
// removes it.
func (r *ResetScheduler) Subscribe(fn func(Rollover)) func() {
	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.subMu.Unlock()
	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

// Foreground asks a running scheduler for an immediate check, as when the
// client becomes visible again or the host resumes from sleep.
func (r *ResetScheduler) Foreground() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run checks on startup, at every local midnight and on each Foreground
// call until ctx is done.
func (r *ResetScheduler) Run(ctx context.Context) error {
	if _, _, err := r.Check(TriggerStartup); err != nil {
		r.logger.Error("startup check failed", slog.String("error", err.Error()))
	}
	trigger := TriggerMidnight
	timer := r.armMidnight()
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C():
			if _, _, err := r.Check(trigger); err != nil {
				r.logger.Error("timer check failed", slog.String("error", err.Error()))
			}
			trigger = TriggerInterval
			timer = r.armMidnight()
		case <-r.wake:
			if _, _, err := r.Check(TriggerForeground); err != nil {
				r.logger.Error("foreground check failed", slog.String("error", err.Error()))
			}
		}
	}
}

// armMidnight re-arms at each local midnight rather than adding a fixed
// 24h, so the timer does not drift across DST changes.
func (r *ResetScheduler) armMidnight() clock.Timer {
	now := r.clk.Now()
	next := clock.NextMidnight(now, r.clk.Location())
	return r.clk.NewTimer(next.Sub(now))
}

func (r *ResetScheduler) publish(ev Rollover) {
	r.subMu.Lock()
	fns := make([]func(Rollover), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
