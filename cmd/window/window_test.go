package window

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/solarwindow/pvpoll/internal/api"
	"github.com/solarwindow/pvpoll/internal/budget"
	"github.com/solarwindow/pvpoll/internal/phase"
)

func TestPrintWindow(t *testing.T) {
	tz := time.FixedZone("CEST", 2*3600)
	day := time.Date(2024, 6, 21, 0, 0, 0, 0, tz)
	w := phase.TwilightWindow{
		Date:      day,
		CivilDawn: day.Add(4*time.Hour + 51*time.Minute),
		Sunrise:   day.Add(5*time.Hour + 30*time.Minute),
		Sunset:    day.Add(21*time.Hour + 26*time.Minute),
		CivilDusk: day.Add(22*time.Hour + 5*time.Minute),
		Degraded:  true,
		Sources: phase.Sources{
			CivilDawn: phase.SourceProvider,
			Sunrise:   phase.SourceDerived,
			Sunset:    phase.SourceDerived,
			CivilDusk: phase.SourceProvider,
		},
	}

	var out bytes.Buffer
	printWindow(&out, api.WindowResponse{
		Date:       "2024-06-21",
		Phase:      phase.Core.String(),
		Window:     w,
		Allocation: budget.Allocate(w, 280),
	})

	text := out.String()
	assert.Contains(t, text, "Window for 2024-06-21 (CEST)")
	assert.Contains(t, text, "current phase  core")
	assert.Contains(t, text, "civil dawn     04:51:00  [provider]")
	assert.Contains(t, text, "sunrise        05:30:00  [derived]")
	assert.Contains(t, text, "degraded")
	assert.Contains(t, text, "Budget 280 queries")
	assert.Contains(t, text, "dawn-ramp")
	assert.Contains(t, text, "dusk-ramp")
}
