package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/solarwindow/pvpoll/internal/backoff"
	"github.com/solarwindow/pvpoll/internal/budget"
	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
	"github.com/solarwindow/pvpoll/internal/phase"
	"github.com/solarwindow/pvpoll/internal/pv"
)

type event interface{ isEvent() }

type timerEvent struct {
	gen  uint64
	kind timerKind
}

type fetchEvent struct {
	id       string
	metrics  pv.Metrics
	err      error
	duration time.Duration
}

type planEvent struct {
	date time.Time
	plan *dayPlan
	err  error
}

func (timerEvent) isEvent() {}
func (fetchEvent) isEvent() {}
func (planEvent) isEvent()  {}

func (s *Scheduler) handle(ev event) {
	switch ev := ev.(type) {
	case timerEvent:
		s.onTimer(ev)
	case fetchEvent:
		s.onFetch(ev)
	case planEvent:
		s.onPlan(ev)
	}
}

// begin runs once on the loop: today's window is requested and the startup
// fetch dispatched.
func (s *Scheduler) begin() {
	s.requestPlan(s.day)
	if s.cfg.StartupFetch && s.remaining() > 0 {
		s.log.Info("startup fetch")
		s.dispatch()
	}
}

func (s *Scheduler) setState(next State) {
	if s.state == next {
		return
	}
	s.log.Debug("state transition",
		logger.String("from", s.state.String()),
		logger.String("to", next.String()))
	s.state = next
	if s.observer != nil {
		s.observer.SetState(next.String())
	}
}

// arm replaces any pending timer
func (s *Scheduler) arm(kind timerKind, d time.Duration) {
	s.disarm()
	s.timerGen++
	gen := s.timerGen
	s.timerKind = kind
	s.timerAt = s.clock.Now().Add(d)
	s.timer = s.clock.AfterFunc(d, func() {
		s.post(timerEvent{gen: gen, kind: kind})
	})
	s.log.Debug("timer armed",
		logger.String("kind", kind.String()),
		logger.Duration("delay", d),
		logger.String("state", s.state.String()))
}

func (s *Scheduler) disarm() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		s.timerAt = time.Time{}
	}
	// a fire that already queued its event is ignored by generation
	s.timerGen++
}

func (s *Scheduler) onTimer(ev timerEvent) {
	if ev.gen != s.timerGen {
		s.log.Trace("ignoring stale timer", logger.String("kind", ev.kind.String()))
		return
	}
	s.timer = nil
	s.timerAt = time.Time{}

	now := s.clock.Now()
	if s.rollover(now) {
		s.enter(now)
		return
	}

	switch ev.kind {
	case timerFetch:
		s.dispatch()
	case timerEnter:
		s.enter(now)
	case timerPlan:
		s.requestPlan(s.day)
	}
}

// rollover resets the daily counters when now falls on a new calendar day
func (s *Scheduler) rollover(now time.Time) bool {
	today := s.dayOf(now)
	if today.Equal(s.day) {
		return false
	}

	s.log.Info("day rollover",
		logger.String("previous_day", dayKey(s.day)),
		logger.String("day", dayKey(today)),
		logger.Int("issued", s.issued),
		logger.Int("attempts", s.attempts))

	s.day = today
	s.issued = 0
	s.attempts = 0
	s.history = nil
	s.paused = false
	s.budgetAlerted = false
	s.plan = s.plans[dayKey(today)]
	for key := range s.plans {
		if key < dayKey(today) {
			delete(s.plans, key)
		}
	}
	if s.plan != nil {
		s.setState(WaitingForWindow)
	}
	s.saveLedger()
	return true
}

// enter decides from scratch what to do at now
func (s *Scheduler) enter(now time.Time) {
	if s.plan == nil {
		s.setState(Idle)
		s.requestPlan(s.day)
		return
	}
	if s.remaining() == 0 {
		s.toNextDay("daily budget exhausted")
		return
	}

	ph := phase.Classify(now, s.plan.window)
	switch {
	case ph == phase.Before:
		s.waitForWindow(now)
	case ph.Polling():
		s.setState(Active)
		interval := s.plan.allocation.Interval(ph)
		if since := now.Sub(s.lastAttempt); !s.lastAttempt.IsZero() && since < interval {
			s.arm(timerFetch, max(interval-since, MinWindowDelay))
			return
		}
		s.dispatch()
	default:
		s.afterWindow()
	}
}

func (s *Scheduler) waitForWindow(now time.Time) {
	s.setState(WaitingForWindow)
	delay := max(s.plan.window.CivilDawn.Sub(now), MinWindowDelay)
	s.log.Info("waiting for civil dawn",
		logger.Time("civil_dawn", s.plan.window.CivilDawn),
		logger.Duration("delay", delay))
	s.arm(timerEnter, delay)
}

// afterWindow keeps polling at the followup interval while the installation
// still produces and budget remains
func (s *Scheduler) afterWindow() {
	if s.last != nil && s.last.Producing() && s.remaining() > 0 {
		if s.state != Followup {
			s.log.Info("window closed with production remaining, following up",
				logger.Float64("power", s.last.Power()),
				logger.Duration("interval", s.cfg.FollowupInterval))
		}
		s.setState(Followup)
		s.arm(timerFetch, s.cfg.FollowupInterval)
		return
	}
	s.toNextDay("window closed")
}

func (s *Scheduler) toNextDay(reason string) {
	s.setState(NextDay)
	s.disarm()
	s.log.Info("polling done for today",
		logger.String("reason", reason),
		logger.Int("issued", s.issued),
		logger.Int("attempts", s.attempts),
		logger.Int("budget", s.cfg.DailyBudget))
	if s.remaining() == 0 && !s.budgetAlerted {
		s.budgetAlerted = true
		s.notify("PV daily budget exhausted",
			fmt.Sprintf("%d of %d queries used on %s", s.issued, s.cfg.DailyBudget, dayKey(s.day)))
	}

	tomorrow := s.day.AddDate(0, 0, 1)
	if p, ok := s.plans[dayKey(tomorrow)]; ok {
		s.armNextDay(p)
		return
	}
	s.requestPlan(tomorrow)
}

func (s *Scheduler) armNextDay(p *dayPlan) {
	delay := max(p.window.CivilDawn.Sub(s.clock.Now()), MinNextDayDelay)
	s.log.Info("next window scheduled",
		logger.Time("civil_dawn", p.window.CivilDawn),
		logger.Duration("delay", delay))
	s.arm(timerEnter, delay)
}

// dispatch starts one fetch worker unless one is in flight
func (s *Scheduler) dispatch() {
	if s.inFlight {
		return
	}
	s.inFlight = true
	id := uuid.NewString()
	s.lastAttemptID = id
	started := s.clock.Now()
	timeout := s.cfg.FetchTimeout
	log := s.log.With(logger.String("attempt_id", id))
	log.Debug("dispatching fetch", logger.String("state", s.state.String()))

	s.spawn(func() {
		ctx, cancel := context.WithTimeout(s.ctx, timeout)
		defer cancel()
		m, err := s.fetcher.Fetch(ctx)
		s.post(fetchEvent{id: id, metrics: m, err: err, duration: s.clock.Now().Sub(started)})
	})
}

func (s *Scheduler) onFetch(ev fetchEvent) {
	s.inFlight = false
	now := s.clock.Now()
	log := s.log.With(logger.String("attempt_id", ev.id))

	s.attempts++
	s.lastAttempt = now
	success := ev.err == nil
	if success {
		m := ev.metrics.Clone()
		if m.FetchedAt.IsZero() {
			m.FetchedAt = now
		}
		s.issued++
		s.last = &m
		s.lastSuccess = now
		s.lastError = ""
		s.history = append(s.history, pv.Sample{Time: m.FetchedAt, Power: m.Power()})
		s.sink.OnMetricUpdate(s.ctx, m.Clone())
		if s.issued%50 == 0 {
			log.Info("daily query progress",
				logger.Int("issued", s.issued),
				logger.Int("budget", s.cfg.DailyBudget),
				logger.Int("attempts", s.attempts))
		}
	} else {
		s.lastError = errors.ScrubMessage(ev.err.Error())
		log.Debug("fetch failed",
			logger.Int("consecutive_failures", s.policy.ConsecutiveFailures()+1),
			logger.Error(ev.err))
	}
	if s.observer != nil {
		s.observer.ObserveFetch(success, ev.duration)
	}

	action := s.policy.OnResult(success)
	s.saveLedger()

	if s.rollover(now) {
		s.enter(now)
		return
	}

	// the startup fetch only counts; scheduling starts with the window
	if s.state == Idle {
		if s.plan != nil {
			s.enter(now)
		}
		return
	}

	if action.Kind == backoff.Pause {
		s.paused = true
		s.pauses++
		log.Warn("consecutive fetch failures, pausing",
			logger.Int("consecutive_failures", s.policy.ConsecutiveFailures()),
			logger.Duration("pause", action.Delay),
			logger.String("state", s.state.String()))
		if s.observer != nil {
			s.observer.IncPause()
		}
		if s.policy.ConsecutiveFailures() == s.policy.Threshold() {
			s.notify("PV polling paused",
				fmt.Sprintf("%d consecutive fetch failures, pausing for %s: %s",
					s.policy.ConsecutiveFailures(), action.Delay, s.lastError))
		}
		// the phase may have moved on while paused
		s.arm(timerEnter, action.Delay)
		return
	}
	s.paused = false
	s.next(now)
}

// next re-arms after an applied result
func (s *Scheduler) next(now time.Time) {
	if s.plan == nil {
		s.enter(now)
		return
	}
	if s.remaining() == 0 {
		s.toNextDay("daily budget exhausted")
		return
	}

	ph := phase.Classify(now, s.plan.window)
	switch {
	case ph.Polling():
		s.setState(Active)
		s.arm(timerFetch, s.plan.allocation.Interval(ph))
	case ph == phase.Before:
		s.waitForWindow(now)
	default:
		s.afterWindow()
	}
}

func (s *Scheduler) requestPlan(date time.Time) {
	key := dayKey(date)
	if s.planPending[key] {
		return
	}
	s.planPending[key] = true
	timeout := s.cfg.PlanTimeout
	daily := s.cfg.DailyBudget

	s.spawn(func() {
		ctx, cancel := context.WithTimeout(s.ctx, timeout)
		defer cancel()
		w, err := s.windows.ComputeWindow(ctx, date)
		if err != nil {
			s.post(planEvent{date: date, err: err})
			return
		}
		s.post(planEvent{date: date, plan: &dayPlan{window: w, allocation: budget.Allocate(w, daily)}})
	})
}

func (s *Scheduler) onPlan(ev planEvent) {
	key := dayKey(ev.date)
	delete(s.planPending, key)
	today := dayKey(s.day)

	if ev.err != nil {
		switch {
		case key == today && s.plan == nil:
			s.log.Warn("window computation failed, retrying",
				logger.String("date", key),
				logger.Duration("retry", s.cfg.WindowRetry),
				logger.Error(ev.err))
			s.arm(timerPlan, s.cfg.WindowRetry)
		case s.state == NextDay:
			s.log.Warn("tomorrow's window unavailable, retrying later",
				logger.String("date", key),
				logger.Duration("retry", s.cfg.NextDayFallback),
				logger.Error(ev.err))
			s.arm(timerEnter, s.cfg.NextDayFallback)
		}
		return
	}

	p := ev.plan
	s.plans[key] = p
	fields := append([]logger.Field{logger.String("date", key),
		logger.Time("civil_dawn", p.window.CivilDawn),
		logger.Time("sunrise", p.window.Sunrise),
		logger.Time("sunset", p.window.Sunset),
		logger.Time("civil_dusk", p.window.CivilDusk),
		logger.Bool("degraded", p.window.Degraded)}, p.allocation.LogFields()...)
	s.log.Info("daily plan computed", fields...)
	if p.window.Degraded {
		s.notify("PV window degraded",
			fmt.Sprintf("window for %s uses fallback boundaries %s-%s", key,
				p.window.CivilDawn.Format("15:04"), p.window.CivilDusk.Format("15:04")))
	}

	switch {
	case key == today:
		if s.plan != nil {
			return
		}
		s.plan = p
		if !s.inFlight {
			s.enter(s.clock.Now())
		}
	case key > today && s.state == NextDay:
		s.armNextDay(p)
	}
}

func (s *Scheduler) saveLedger() {
	ctx, cancel := context.WithTimeout(s.ctx, ledgerSaveTimeout)
	defer cancel()
	err := s.store.Save(ctx, Ledger{Day: s.day, Issued: s.issued, Attempts: s.attempts})
	if err != nil {
		s.log.Warn("failed to save budget ledger", logger.Error(err))
	}
	if s.observer != nil {
		s.observer.SetBudget(s.issued, s.remaining())
	}
}

func (s *Scheduler) notify(title, message string) {
	if s.notifier == nil {
		return
	}
	s.spawn(func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.FetchTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, title, message); err != nil {
			s.log.Warn("notification failed", logger.String("title", title), logger.Error(err))
		}
	})
}
