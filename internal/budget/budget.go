// Package budget spreads a daily query budget across the polling phases of a
// twilight window. The core phase gets five times the query density of the
// two ramps.
package budget

import (
	"math"
	"time"

	"github.com/solarwindow/pvpoll/internal/logger"
	"github.com/solarwindow/pvpoll/internal/phase"
)

const (
	CoreWeight = 5
	RampWeight = 1

	// RampFallbackInterval is used for a ramp that receives no queries
	RampFallbackInterval = 10 * time.Minute
	// CoreFallbackInterval is used when the core receives no queries
	CoreFallbackInterval = 2 * time.Minute
)

// PhaseInterval is the allocation of one polling phase
type PhaseInterval struct {
	Phase    phase.Phase   `json:"phase"`
	Minutes  float64       `json:"minutes"`
	Weight   int           `json:"weight"`
	Queries  int           `json:"queries"`
	Interval time.Duration `json:"interval"`
	Fallback bool          `json:"fallback"` // Interval is the fixed fallback
}

// Allocation is the per-phase split of one day's budget
type Allocation struct {
	Date     time.Time     `json:"date"`
	Budget   int           `json:"budget"`
	Weighted float64       `json:"weighted_minutes"`
	DawnRamp PhaseInterval `json:"dawn_ramp"`
	Core     PhaseInterval `json:"core"`
	DuskRamp PhaseInterval `json:"dusk_ramp"`
}

// Allocate computes per-phase query counts and intervals for window.
//
// Counts are floor(budget * minutes * weight / W) where W is the weighted
// sum of phase minutes; any rounding excess over budget is taken from the
// core. A phase whose count or duration is zero, or any phase when W is
// zero, polls at its fallback interval. Every interval is positive and the
// counts never sum to more than budget.
func Allocate(window phase.TwilightWindow, dailyBudget int) Allocation {
	dailyBudget = max(dailyBudget, 0)

	a := Allocation{
		Date:     window.Date,
		Budget:   dailyBudget,
		DawnRamp: PhaseInterval{Phase: phase.DawnRamp, Minutes: minutes(window, phase.DawnRamp), Weight: RampWeight},
		Core:     PhaseInterval{Phase: phase.Core, Minutes: minutes(window, phase.Core), Weight: CoreWeight},
		DuskRamp: PhaseInterval{Phase: phase.DuskRamp, Minutes: minutes(window, phase.DuskRamp), Weight: RampWeight},
	}
	phases := []*PhaseInterval{&a.DawnRamp, &a.Core, &a.DuskRamp}

	for _, p := range phases {
		a.Weighted += p.Minutes * float64(p.Weight)
	}

	if a.Weighted > 0 {
		total := 0
		for _, p := range phases {
			p.Queries = int(math.Floor(float64(dailyBudget) * p.Minutes * float64(p.Weight) / a.Weighted))
			total += p.Queries
		}
		if total > dailyBudget {
			a.Core.Queries = max(a.Core.Queries-(total-dailyBudget), 0)
		}
	}

	for _, p := range phases {
		if p.Queries > 0 && p.Minutes > 0 {
			p.Interval = time.Duration(p.Minutes * 60 / float64(p.Queries) * float64(time.Second))
		}
		if p.Interval <= 0 {
			p.Interval = fallbackInterval(p.Phase)
			p.Fallback = true
		}
	}

	return a
}

func minutes(w phase.TwilightWindow, p phase.Phase) float64 {
	return w.Duration(p).Minutes()
}

func fallbackInterval(p phase.Phase) time.Duration {
	if p == phase.Core {
		return CoreFallbackInterval
	}
	return RampFallbackInterval
}

// Interval returns the polling interval of p, or zero for phases that do
// not poll on an interval.
func (a Allocation) Interval(p phase.Phase) time.Duration {
	switch p {
	case phase.DawnRamp:
		return a.DawnRamp.Interval
	case phase.Core:
		return a.Core.Interval
	case phase.DuskRamp:
		return a.DuskRamp.Interval
	default:
		return 0
	}
}

// Total returns the number of queries allocated across all phases
func (a Allocation) Total() int {
	return a.DawnRamp.Queries + a.Core.Queries + a.DuskRamp.Queries
}

// LogFields renders the allocation for structured logs
func (a Allocation) LogFields() []logger.Field {
	return []logger.Field{
		logger.Int("budget", a.Budget),
		logger.Int("dawn_ramp_queries", a.DawnRamp.Queries),
		logger.Duration("dawn_ramp_interval", a.DawnRamp.Interval),
		logger.Int("core_queries", a.Core.Queries),
		logger.Duration("core_interval", a.Core.Interval),
		logger.Int("dusk_ramp_queries", a.DuskRamp.Queries),
		logger.Duration("dusk_ramp_interval", a.DuskRamp.Interval),
	}
}
