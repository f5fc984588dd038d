package scheduler

import (
	"slices"
	"time"

	"github.com/solarwindow/pvpoll/internal/budget"
	"github.com/solarwindow/pvpoll/internal/phase"
	"github.com/solarwindow/pvpoll/internal/pv"
)

// Snapshot is a point-in-time copy of the scheduler state. It shares no
// memory with the scheduler and may be kept by the caller.
type Snapshot struct {
	State               string                `json:"state"`
	Phase               string                `json:"phase,omitempty"`
	Day                 time.Time             `json:"day"`
	QueriesIssued       int                   `json:"queries_issued"`
	Attempts            int                   `json:"attempts"`
	DailyBudget         int                   `json:"daily_budget"`
	Remaining           int                   `json:"remaining"`
	ConsecutiveFailures int                   `json:"consecutive_failures"`
	Paused              bool                  `json:"paused"`
	Pauses              int                   `json:"pauses"`
	InFlight            bool                  `json:"in_flight"`
	NextFire            time.Time             `json:"next_fire,omitzero"`
	LastSuccess         time.Time             `json:"last_success,omitzero"`
	LastAttemptID       string                `json:"last_attempt_id,omitempty"`
	LastError           string                `json:"last_error,omitempty"`
	LastMetrics         *pv.Metrics           `json:"last_metrics,omitempty"`
	Window              *phase.TwilightWindow `json:"window,omitempty"`
	Allocation          *budget.Allocation    `json:"allocation,omitempty"`
	History             []pv.Sample           `json:"history,omitempty"`
}

// Snapshot returns a copy of the current state
func (s *Scheduler) Snapshot() Snapshot {
	snap := s.snapshot.Load()
	if snap == nil {
		return Snapshot{}
	}
	out := *snap
	if snap.LastMetrics != nil {
		m := snap.LastMetrics.Clone()
		out.LastMetrics = &m
	}
	if snap.Window != nil {
		w := *snap.Window
		out.Window = &w
	}
	if snap.Allocation != nil {
		a := *snap.Allocation
		out.Allocation = &a
	}
	out.History = slices.Clone(snap.History)
	return out
}

// publish stores a fresh snapshot; called on the loop only
func (s *Scheduler) publish() {
	snap := &Snapshot{
		State:               s.state.String(),
		Day:                 s.day,
		QueriesIssued:       s.issued,
		Attempts:            s.attempts,
		DailyBudget:         s.cfg.DailyBudget,
		Remaining:           s.remaining(),
		ConsecutiveFailures: s.policy.ConsecutiveFailures(),
		Paused:              s.paused,
		Pauses:              s.pauses,
		InFlight:            s.inFlight,
		NextFire:            s.timerAt,
		LastSuccess:         s.lastSuccess,
		LastAttemptID:       s.lastAttemptID,
		LastError:           s.lastError,
		History:             slices.Clone(s.history),
	}
	if s.last != nil {
		m := s.last.Clone()
		snap.LastMetrics = &m
	}
	if s.plan != nil {
		w := s.plan.window
		a := s.plan.allocation
		snap.Window = &w
		snap.Allocation = &a
		snap.Phase = phase.Classify(s.clock.Now(), w).String()
	}
	s.snapshot.Store(snap)
}
