// Package pv holds the photovoltaic metric model shared by the fetch client,
// the scheduler and the metric sinks.
package pv

import "time"

// Metrics is one reading of the installation. Each value is nil when the
// provider did not report it.
type Metrics struct {
	CurrentPower  *float64  `json:"current_power_w"`   // W
	DailyEnergy   *float64  `json:"daily_energy_wh"`   // Wh since local midnight
	MonthlyEnergy *float64  `json:"monthly_energy_wh"` // Wh this month
	YearlyEnergy  *float64  `json:"yearly_energy_wh"`  // Wh this year
	FetchedAt     time.Time `json:"fetched_at"`
}

// Power returns the current power, treating a missing value as 0
func (m Metrics) Power() float64 {
	if m.CurrentPower == nil {
		return 0
	}
	return *m.CurrentPower
}

// Producing reports whether the installation currently produces power
func (m Metrics) Producing() bool {
	return m.Power() > 0
}

// Clone returns a copy that shares no pointers with m
func (m Metrics) Clone() Metrics {
	return Metrics{
		CurrentPower:  clonePtr(m.CurrentPower),
		DailyEnergy:   clonePtr(m.DailyEnergy),
		MonthlyEnergy: clonePtr(m.MonthlyEnergy),
		YearlyEnergy:  clonePtr(m.YearlyEnergy),
		FetchedAt:     m.FetchedAt,
	}
}

// Sample is one point of the daily power curve
type Sample struct {
	Time  time.Time `json:"time"`
	Power float64   `json:"power_w"`
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
