package mqtt

import (
	"time"

	"github.com/solarwindow/pvpoll/internal/pv"
)

// ReadingDTO is the JSON payload published for each reading. Field names
// are referenced by the discovery value templates.
type ReadingDTO struct {
	Timestamp     string   `json:"timestamp"`
	CurrentPower  *float64 `json:"currentPower"`
	DailyEnergy   *float64 `json:"dailyEnergy"`
	MonthlyEnergy *float64 `json:"monthlyEnergy"`
	YearlyEnergy  *float64 `json:"yearlyEnergy"`
	Producing     bool     `json:"producing"`
}

// NewReadingDTO converts a reading for publishing
func NewReadingDTO(m pv.Metrics) ReadingDTO {
	return ReadingDTO{
		Timestamp:     m.FetchedAt.Format(time.RFC3339),
		CurrentPower:  m.CurrentPower,
		DailyEnergy:   m.DailyEnergy,
		MonthlyEnergy: m.MonthlyEnergy,
		YearlyEnergy:  m.YearlyEnergy,
		Producing:     m.Producing(),
	}
}
