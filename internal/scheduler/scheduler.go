// Package scheduler decides when to fetch PV metrics within a daily query
// budget. A single event loop goroutine owns all scheduling state: timers,
// fetch workers and window computations post their results back to the loop,
// which is the only place that mutates state.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/solarwindow/pvpoll/internal/backoff"
	"github.com/solarwindow/pvpoll/internal/budget"
	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
	"github.com/solarwindow/pvpoll/internal/phase"
	"github.com/solarwindow/pvpoll/internal/pv"
)

// State of the polling state machine
type State int

const (
	Idle State = iota
	WaitingForWindow
	Active
	Followup
	NextDay
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case WaitingForWindow:
		return "waiting-for-window"
	case Active:
		return "active"
	case Followup:
		return "followup"
	case NextDay:
		return "next-day"
	default:
		return "unknown"
	}
}

// Defaults
const (
	DefaultDailyBudget      = 280
	DefaultFetchTimeout     = 10 * time.Second
	DefaultFollowupInterval = 10 * time.Minute
	DefaultWindowRetry      = 30 * time.Minute
	DefaultNextDayFallback  = 12 * time.Hour
	DefaultPlanTimeout      = 45 * time.Second

	// MinNextDayDelay floors the timer armed for tomorrow's window
	MinNextDayDelay = time.Minute
	// MinWindowDelay floors the timer armed for today's civil dawn
	MinWindowDelay = time.Second

	ledgerSaveTimeout = 2 * time.Second
)

// Fetcher performs one remote metric query. It is never called concurrently.
type Fetcher interface {
	Fetch(ctx context.Context) (pv.Metrics, error)
}

// Sink receives every successfully applied reading. It is called on the
// scheduling loop and must not block.
type Sink interface {
	OnMetricUpdate(ctx context.Context, m pv.Metrics)
}

// WindowSource computes the twilight window of a calendar day
type WindowSource interface {
	ComputeWindow(ctx context.Context, date time.Time) (phase.TwilightWindow, error)
}

// Observer receives scheduler measurements
type Observer interface {
	ObserveFetch(success bool, duration time.Duration)
	SetState(state string)
	SetBudget(issued, remaining int)
	IncPause()
}

// Notifier delivers operational alerts. It runs on a worker goroutine.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Config tunes the scheduler; zero values select the defaults
type Config struct {
	DailyBudget      int
	FetchTimeout     time.Duration
	FollowupInterval time.Duration
	FailureThreshold int
	PauseDuration    time.Duration
	StartupFetch     bool
	WindowRetry      time.Duration
	NextDayFallback  time.Duration
	PlanTimeout      time.Duration
	Location         *time.Location // defines calendar days
}

func (c *Config) applyDefaults() {
	if c.DailyBudget <= 0 {
		c.DailyBudget = DefaultDailyBudget
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.FollowupInterval <= 0 {
		c.FollowupInterval = DefaultFollowupInterval
	}
	if c.WindowRetry <= 0 {
		c.WindowRetry = DefaultWindowRetry
	}
	if c.NextDayFallback <= 0 {
		c.NextDayFallback = DefaultNextDayFallback
	}
	if c.PlanTimeout <= 0 {
		c.PlanTimeout = DefaultPlanTimeout
	}
	if c.Location == nil {
		c.Location = time.Local
	}
}

// Option configures optional collaborators
type Option func(*Scheduler)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithStore replaces the in-memory budget ledger
func WithStore(st BudgetStore) Option {
	return func(s *Scheduler) { s.store = st }
}

// WithObserver attaches a metrics observer
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// WithNotifier attaches an alert notifier
func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

// WithLogger replaces the module logger
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// dayPlan is the window and allocation of one calendar day
type dayPlan struct {
	window     phase.TwilightWindow
	allocation budget.Allocation
}

type timerKind int

const (
	timerFetch timerKind = iota // dispatch a fetch
	timerEnter                  // re-evaluate from scratch
	timerPlan                   // recompute today's window
)

func (k timerKind) String() string {
	switch k {
	case timerFetch:
		return "fetch"
	case timerEnter:
		return "enter"
	default:
		return "plan"
	}
}

// Scheduler is the polling state machine
type Scheduler struct {
	cfg      Config
	windows  WindowSource
	fetcher  Fetcher
	sink     Sink
	clock    Clock
	store    BudgetStore
	policy   *backoff.Policy
	observer Observer
	notifier Notifier
	log      logger.Logger

	events   chan event
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	snapshot atomic.Pointer[Snapshot]

	// post delivers an event to the loop and spawn starts a worker; tests
	// replace both to drive the loop synchronously
	post  func(event)
	spawn func(func())

	// loop-owned state
	state         State
	day           time.Time
	plan          *dayPlan
	plans         map[string]*dayPlan
	planPending   map[string]bool
	issued        int
	attempts      int
	last          *pv.Metrics
	lastSuccess   time.Time
	lastAttempt   time.Time
	lastAttemptID string
	lastError     string
	history       []pv.Sample
	paused        bool
	pauses        int
	budgetAlerted bool
	inFlight      bool
	timer         Timer
	timerGen      uint64
	timerKind     timerKind
	timerAt       time.Time
}

// New returns a Scheduler. Start must be called to run it.
func New(cfg Config, windows WindowSource, fetcher Fetcher, sink Sink, opts ...Option) *Scheduler {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:         cfg,
		windows:     windows,
		fetcher:     fetcher,
		sink:        sink,
		clock:       realClock{},
		store:       NewMemoryStore(),
		policy:      backoff.New(cfg.FailureThreshold, cfg.PauseDuration),
		log:         GetLogger(),
		events:      make(chan event, 16),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		plans:       make(map[string]*dayPlan),
		planPending: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.post = s.postToLoop
	s.spawn = s.spawnWorker
	s.day = s.dayOf(s.clock.Now())
	s.publish()
	return s
}

// GetLogger returns the scheduler module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("scheduler")
}

// Start restores today's ledger and starts the event loop
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.Newf("scheduler already started").
			Component("scheduler").
			Category(errors.CategoryState).
			Build()
	}

	s.restoreLedger(ctx)
	go s.run()
	return nil
}

// restoreLedger loads today's counters from the store
func (s *Scheduler) restoreLedger(ctx context.Context) {
	ledger, err := s.store.Load(ctx, s.day)
	if err != nil {
		s.log.Warn("budget ledger unavailable, starting the day from zero", logger.Error(err))
		return
	}
	s.issued, s.attempts = ledger.Issued, ledger.Attempts
	if ledger.Issued > 0 {
		s.log.Info("restored daily budget ledger",
			logger.Int("issued", ledger.Issued),
			logger.Int("attempts", ledger.Attempts))
	}
	s.publish()
}

// Stop cancels every timer and waits for in-flight work to finish or ctx to
// expire. Workers still running when ctx expires are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })
	if s.started.Load() {
		select {
		case <-s.stopped:
		case <-ctx.Done():
			s.cancel()
			return ctx.Err()
		}
	}

	workers := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(workers)
	}()

	select {
	case <-workers:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-workers
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	defer close(s.stopped)
	s.begin()
	s.publish()
	for {
		select {
		case <-s.done:
			s.disarm()
			s.log.Info("scheduler stopped",
				logger.Int("issued", s.issued),
				logger.Int("attempts", s.attempts))
			return
		case ev := <-s.events:
			s.handle(ev)
			s.publish()
		}
	}
}

func (s *Scheduler) postToLoop(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Scheduler) spawnWorker(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Scheduler) dayOf(t time.Time) time.Time {
	y, m, d := t.In(s.cfg.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.cfg.Location)
}

func (s *Scheduler) remaining() int {
	return max(s.cfg.DailyBudget-s.issued, 0)
}
