package phase

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarwindow/pvpoll/internal/ephemeris"
	"github.com/solarwindow/pvpoll/internal/logger"
)

var quietLog = logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)

type stubTwilight struct {
	dawn, dusk time.Time
	err error
}

func (s stubTwilight) CivilTwilight(context.Context, time.Time) (time.Time, time.Time, error) {
	return s.dawn, s.dusk, s.err
}

type stubSunrise struct {
	rise, set time.Time
	err error
}

func (s stubSunrise) SunriseSunset(context.Context, time.Time) (time.Time, time.Time, error) {
	return s.rise, s.set, s.err
}

func at(h, m int) time.Time {
	return time.Date(2024, 6, 21, h, m, 0, 0, time.UTC)
}

func newModel(tw TwilightSource, sr SunriseSource) *Model {
	return NewModel(tw, sr, time.UTC).WithLogger(quietLog)
}

func TestComputeWindowBothSources(t *testing.T) {
	m := newModel(stubTwilight{dawn: at(4, 50), dusk: at(22, 10)}, stubSunrise{rise: at(5, 30), set: at(21, 25)})

	w, err := m.ComputeWindow(context.Background(), at(12, 0))
	require.NoError(t, err)

	assert.Equal(t, at(4, 50), w.CivilDawn)
	assert.Equal(t, at(5, 30), w.Sunrise)
	assert.Equal(t, at(21, 25), w.Sunset)
	assert.Equal(t, at(22, 10), w.CivilDusk)
	assert.False(t, w.Degraded)
	assert.Equal(t, Sources{SourceProvider, SourceProvider, SourceProvider, SourceProvider}, w.Sources)
	assert.Equal(t, at(0, 0), w.Date)
}

func TestComputeWindowDerivesTwilightFromSunrise(t *testing.T) {
	m := newModel(stubTwilight{err: ephemeris.ErrUnavailable}, stubSunrise{rise: at(5, 30), set: at(21, 25)})

	w, err := m.ComputeWindow(context.Background(), at(12, 0))
	require.NoError(t, err)

	assert.Equal(t, at(5, 0), w.CivilDawn)
	assert.Equal(t, at(21, 55), w.CivilDusk)
	assert.Equal(t, SourceDerived, w.Sources.CivilDawn)
	assert.Equal(t, SourceProvider, w.Sources.Sunrise)
	assert.False(t, w.Degraded)
}

func TestComputeWindowDerivesSunriseFromTwilight(t *testing.T) {
	m := newModel(stubTwilight{dawn: at(4, 50), dusk: at(22, 10)}, nil)

	w, err := m.ComputeWindow(context.Background(), at(12, 0))
	require.NoError(t, err)

	assert.Equal(t, at(5, 20), w.Sunrise)
	assert.Equal(t, at(21, 40), w.Sunset)
	assert.Equal(t, SourceDerived, w.Sources.Sunset)
	assert.False(t, w.Degraded)
}

func TestComputeWindowFixedFallback(t *testing.T) {
	m := newModel(stubTwilight{err: ephemeris.ErrNoCrossing}, stubSunrise{err: assert.AnError})

	w, err := m.ComputeWindow(context.Background(), at(12, 0))
	require.NoError(t, err)

	assert.Equal(t, at(6, 0), w.CivilDawn)
	assert.Equal(t, at(6, 30), w.Sunrise)
	assert.Equal(t, at(19, 30), w.Sunset)
	assert.Equal(t, at(20, 0), w.CivilDusk)
	assert.True(t, w.Degraded)
	assert.Equal(t, SourceFixed, w.Sources.CivilDusk)
}

func TestComputeWindowFixedFallbackRespectsDST(t *testing.T) {
	zurich, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)
	m := NewModel(nil, nil, zurich).WithLogger(quietLog)

	// clocks spring forward at 02:00 on 2024-03-31
	w, err := m.ComputeWindow(context.Background(), time.Date(2024, 3, 31, 12, 0, 0, 0, zurich))
	require.NoError(t, err)

	assert.Equal(t, 6, w.CivilDawn.Hour())
	assert.Equal(t, 20, w.CivilDusk.Hour())
}

func TestComputeWindowRepairsNonMonotonic(t *testing.T) {
	// sunrise provider disagrees with the ephemeris: sunrise before dawn,
	// sunset after dusk
	m := newModel(stubTwilight{dawn: at(5, 0), dusk: at(21, 0)}, stubSunrise{rise: at(4, 30), set: at(21, 30)})

	w, err := m.ComputeWindow(context.Background(), at(12, 0))
	require.NoError(t, err)

	assert.True(t, w.Ordered())
	assert.True(t, w.Degraded)
	assert.Equal(t, at(5, 0), w.Sunrise)
	assert.Equal(t, at(21, 30), w.CivilDusk)
}

func TestComputeWindowCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := newModel(stubTwilight{dawn: at(4, 50), dusk: at(22, 10)}, nil)
	_, err := m.ComputeWindow(ctx, at(12, 0))
	require.ErrorIs(t, err, context.Canceled)
}

func TestComputeWindowWithEphemeris(t *testing.T) {
	zurich, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)
	calc := ephemeris.NewCalculator(ephemeris.NewAnalyticProvider(),
		ephemeris.Location{Latitude: 47.3769, Longitude: 8.5417}, zurich, ephemeris.WithLogger(quietLog))

	m := NewModel(EphemerisTwilight{Calculator: calc}, nil, zurich).WithLogger(quietLog)
	w, err := m.ComputeWindow(context.Background(), time.Date(2024, 6, 21, 9, 0, 0, 0, zurich))
	require.NoError(t, err)

	assert.True(t, w.Complete())
	assert.True(t, w.Ordered())
	assert.False(t, w.Degraded)
	assert.WithinDuration(t, time.Date(2024, 6, 21, 4, 51, 0, 0, zurich), w.CivilDawn, 15*time.Minute)
	assert.WithinDuration(t, time.Date(2024, 6, 21, 22, 2, 0, 0, zurich), w.CivilDusk, 15*time.Minute)
}

func TestTwilightChainFallsBackToNextSource(t *testing.T) {
	chain := TwilightChain{stubTwilight{err: ephemeris.ErrUnavailable}, nil, stubTwilight{dawn: at(4, 51), dusk: at(22, 9)}}
	m := newModel(chain, stubSunrise{rise: at(5, 30), set: at(21, 25)})

	w, err := m.ComputeWindow(context.Background(), at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, at(4, 51), w.CivilDawn)
	assert.Equal(t, at(22, 9), w.CivilDusk)
	assert.Equal(t, SourceProvider, w.Sources.CivilDawn)
	assert.Equal(t, SourceProvider, w.Sources.CivilDusk)
}

func TestTwilightChainErrors(t *testing.T) {
	_, _, err := TwilightChain{stubTwilight{err: ephemeris.ErrUnavailable}}.CivilTwilight(context.Background(), at(0, 0))
	require.ErrorIs(t, err, ephemeris.ErrUnavailable)

	_, _, err = TwilightChain{}.CivilTwilight(context.Background(), at(0, 0))
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = TwilightChain{stubTwilight{err: context.Canceled}, stubTwilight{dawn: at(4, 51), dusk: at(22, 9)}}.
		CivilTwilight(ctx, at(0, 0))
	require.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	w := TwilightWindow{CivilDawn: at(6, 0), Sunrise: at(6, 30), Sunset: at(20, 0), CivilDusk: at(20, 30)}

	tests := []struct {
		now  time.Time
		want Phase
	}{
		{at(5, 59), Before},
		{at(6, 0), DawnRamp},
		{at(6, 29), DawnRamp},
		{at(6, 30), Core},
		{at(13, 0), Core},
		{at(20, 0), Core},
		{at(20, 1), DuskRamp},
		{at(20, 30), DuskRamp},
		{at(20, 31), After},
	}
	for _, tt := range tests {
		t.Run(tt.now.Format("15:04"), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.now, w))
		})
	}
}

func TestClassifyIsTotalOnDegenerateWindows(t *testing.T) {
	collapsed := TwilightWindow{CivilDawn: at(12, 0), Sunrise: at(12, 0), Sunset: at(12, 0), CivilDusk: at(12, 0)}
	assert.Equal(t, Before, Classify(at(11, 59), collapsed))
	assert.Equal(t, Core, Classify(at(12, 0), collapsed))
	assert.Equal(t, After, Classify(at(12, 1), collapsed))

	// zero window: everything is after
	assert.Equal(t, After, Classify(at(12, 0), TwilightWindow{}))
}

func TestDurationAndPolling(t *testing.T) {
	w := TwilightWindow{CivilDawn: at(6, 0), Sunrise: at(7, 0), Sunset: at(17, 0), CivilDusk: at(18, 0)}
	assert.Equal(t, time.Hour, w.Duration(DawnRamp))
	assert.Equal(t, 10*time.Hour, w.Duration(Core))
	assert.Equal(t, time.Hour, w.Duration(DuskRamp))
	assert.Zero(t, w.Duration(Before))

	inverted := TwilightWindow{CivilDawn: at(7, 0), Sunrise: at(6, 0)}
	assert.Zero(t, inverted.Duration(DawnRamp))

	assert.True(t, Core.Polling())
	assert.False(t, After.Polling())
	assert.Equal(t, "dusk-ramp", DuskRamp.String())
}

func TestPhaseTextRoundTrip(t *testing.T) {
	for p := Before; p <= After; p++ {
		text, err := p.MarshalText()
		require.NoError(t, err)
		var got Phase
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, p, got)
	}

	var bad Phase
	require.Error(t, bad.UnmarshalText([]byte("noon")))
}
