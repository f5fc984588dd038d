package sunrise

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/httpclient"
	"github.com/solarwindow/pvpoll/internal/logger"
)

const (
	sunURL  = DefaultBaseURL + "/sun"
	moonURL = DefaultBaseURL + "/moon"

	sunJSON = `{
		"type": "Feature",
		"properties": {
			"body": "Sun",
			"sunrise": {"time": "2024-06-21T05:31+02:00", "azimuth": 54.2},
			"sunset": {"time": "2024-06-21T19:26:30Z", "azimuth": 305.8},
			"solarnoon": {"time": "2024-06-21T13:28+02:00", "disc_centre_elevation": 66.0}
		}
	}`
)

var quietLog = logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)

func zurich(t *testing.T) *time.Location {
	t.Helper()
	tz, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)
	return tz
}

func newMockMetNo(t *testing.T) (*MetNo, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	client := httpclient.New(&httpclient.Config{Transport: mt, UserAgent: "pvpoll-test contact@example.com"})
	m := NewMetNo(Config{
		Latitude:  47.3769,
		Longitude: 8.5417,
		Location:  zurich(t),
	}, client).WithLogger(quietLog)
	return m, mt
}

func TestSunriseSunsetParsesAndCaches(t *testing.T) {
	m, mt := newMockMetNo(t)
	tz := m.cfg.Location

	var calls int
	var userAgent string
	mt.RegisterResponderWithQuery(http.MethodGet, sunURL,
		map[string]string{"lat": "47.3769", "lon": "8.5417", "date": "2024-06-21", "offset": "+02:00"},
		func(req *http.Request) (*http.Response, error) {
			calls++
			userAgent = req.Header.Get("User-Agent")
			return httpmock.NewStringResponse(http.StatusOK, sunJSON), nil
		})

	date := time.Date(2024, 6, 21, 0, 0, 0, 0, tz)
	rise, set, err := m.SunriseSunset(context.Background(), date)
	require.NoError(t, err)

	assert.True(t, rise.Equal(time.Date(2024, 6, 21, 5, 31, 0, 0, tz)), "rise %s", rise)
	assert.True(t, set.Equal(time.Date(2024, 6, 21, 21, 26, 30, 0, tz)), "set %s", set)
	assert.Equal(t, tz, rise.Location())
	assert.Equal(t, "pvpoll-test contact@example.com", userAgent)

	_, _, err = m.SunriseSunset(context.Background(), date.Add(20*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second lookup of the same date is cached")

	requests, hits := m.Stats()
	assert.Equal(t, int64(1), requests)
	assert.Equal(t, int64(1), hits)
}

func TestSunriseSunsetPartialEvents(t *testing.T) {
	m, mt := newMockMetNo(t)
	mt.RegisterResponder(http.MethodGet, `=~^`+sunURL,
		httpmock.NewStringResponder(http.StatusOK,
			`{"properties": {"sunrise": {"time": "2024-06-21T05:31+02:00"}, "sunset": {"time": null}}}`))

	rise, set, err := m.SunriseSunset(context.Background(), time.Date(2024, 6, 21, 0, 0, 0, 0, m.cfg.Location))
	require.NoError(t, err)
	assert.False(t, rise.IsZero())
	assert.True(t, set.IsZero())
}

func TestSunriseSunsetNoEvents(t *testing.T) {
	m, mt := newMockMetNo(t)
	mt.RegisterResponder(http.MethodGet, `=~^`+sunURL,
		httpmock.NewStringResponder(http.StatusOK, `{"properties": {"sunrise": null, "sunset": null}}`))

	_, _, err := m.SunriseSunset(context.Background(), time.Now())
	require.ErrorIs(t, err, ErrNoEvents)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))
}

func TestSunriseSunsetErrors(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		category  errors.ErrorCategory
	}{
		{"server error", httpmock.NewStringResponder(http.StatusInternalServerError, "boom"), errors.CategoryHTTP},
		{"forbidden", httpmock.NewStringResponder(http.StatusForbidden, "missing user agent"), errors.CategoryHTTP},
		{"malformed json", httpmock.NewStringResponder(http.StatusOK, `{"properties":`), errors.CategoryParsing},
		{"malformed time", httpmock.NewStringResponder(http.StatusOK,
			`{"properties": {"sunrise": {"time": "sometime"}, "sunset": {"time": "2024-06-21T21:26+02:00"}}}`),
			errors.CategoryParsing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, mt := newMockMetNo(t)
			mt.RegisterResponder(http.MethodGet, `=~^`+sunURL, tt.responder)

			_, _, err := m.SunriseSunset(context.Background(), time.Now())
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.category), "category of %v", err)

			// failures are not cached
			_, _, err = m.SunriseSunset(context.Background(), time.Now())
			require.Error(t, err)
			assert.Equal(t, 2, mt.GetTotalCallCount())
		})
	}
}

func TestMoonriseMoonset(t *testing.T) {
	m, mt := newMockMetNo(t)
	tz := m.cfg.Location
	mt.RegisterResponderWithQuery(http.MethodGet, moonURL,
		map[string]string{"lat": "47.3769", "lon": "8.5417", "date": "2024-01-15", "offset": "+01:00"},
		httpmock.NewStringResponder(http.StatusOK,
			`{"properties": {"body": "Moon", "moonrise": {"time": "2024-01-15T10:02+01:00"}, "moonset": null}}`))

	ev, err := m.MoonriseMoonset(context.Background(), time.Date(2024, 1, 15, 8, 0, 0, 0, tz))
	require.NoError(t, err)
	assert.True(t, ev.Rise.Equal(time.Date(2024, 1, 15, 10, 2, 0, 0, tz)))
	assert.True(t, ev.Set.IsZero())
}

func TestOffset(t *testing.T) {
	tz := zurich(t)
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	tests := []struct {
		name string
		date time.Time
		tz   *time.Location
		want string
	}{
		{"winter", time.Date(2024, 1, 15, 0, 0, 0, 0, tz), tz, "+01:00"},
		{"summer", time.Date(2024, 7, 15, 0, 0, 0, 0, tz), tz, "+02:00"},
		// the switch happens at 02:00, noon already has the summer offset
		{"dst start day", time.Date(2024, 3, 31, 0, 30, 0, 0, tz), tz, "+02:00"},
		{"negative", time.Date(2024, 1, 15, 0, 0, 0, 0, newYork), newYork, "-05:00"},
		{"half hour", time.Date(2024, 1, 15, 0, 0, 0, 0, kolkata), kolkata, "+05:30"},
		{"utc", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), time.UTC, "+00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Offset(tt.date, tt.tz))
		})
	}
}

type stubSource struct {
	rise, set time.Time
	err   error
	calls int
}

func (s *stubSource) SunriseSunset(context.Context, time.Time) (sunrise, sunset time.Time, err error) {
	s.calls++
	return s.rise, s.set, s.err
}

func TestChainFallsBack(t *testing.T) {
	rise := time.Date(2024, 6, 21, 5, 31, 0, 0, time.UTC)
	set := time.Date(2024, 6, 21, 21, 26, 0, 0, time.UTC)

	primary := &stubSource{err: errors.NewStd("offline")}
	secondary := &stubSource{rise: rise, set: set}
	chain := NewChain(Named{"metno", primary}, Named{"none", nil}, Named{"astral", secondary}).WithLogger(quietLog)

	gotRise, gotSet, err := chain.SunriseSunset(context.Background(), rise)
	require.NoError(t, err)
	assert.Equal(t, rise, gotRise)
	assert.Equal(t, set, gotSet)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestChainStopsAtFirstAnswer(t *testing.T) {
	primary := &stubSource{rise: time.Unix(1, 0), set: time.Unix(2, 0)}
	secondary := &stubSource{}
	chain := NewChain(Named{"metno", primary}, Named{"astral", secondary}).WithLogger(quietLog)

	_, _, err := chain.SunriseSunset(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, secondary.calls)
}

func TestChainFillsMissingEventFromNextSource(t *testing.T) {
	rise := time.Date(2024, 6, 21, 3, 31, 0, 0, time.UTC)
	set := time.Date(2024, 6, 21, 19, 26, 0, 0, time.UTC)

	primary := &stubSource{rise: rise}
	secondary := &stubSource{rise: rise.Add(time.Minute), set: set}
	chain := NewChain(Named{"metno", primary}, Named{"astral", secondary}).WithLogger(quietLog)

	gotRise, gotSet, err := chain.SunriseSunset(context.Background(), rise)
	require.NoError(t, err)
	assert.Equal(t, rise, gotRise, "the first source keeps precedence")
	assert.Equal(t, set, gotSet)
	assert.Equal(t, 1, secondary.calls)
}

func TestChainReturnsPartialAnswerWhenNothingElseKnows(t *testing.T) {
	set := time.Date(2024, 6, 21, 19, 26, 0, 0, time.UTC)
	chain := NewChain(
		Named{"metno", &stubSource{set: set}},
		Named{"astral", &stubSource{err: errors.NewStd("sun never rises")}},
	).WithLogger(quietLog)

	gotRise, gotSet, err := chain.SunriseSunset(context.Background(), set)
	require.NoError(t, err)
	assert.True(t, gotRise.IsZero())
	assert.Equal(t, set, gotSet)
}

func TestChainJoinsErrors(t *testing.T) {
	first := errors.NewStd("first")
	second := errors.NewStd("second")
	chain := NewChain(Named{"a", &stubSource{err: first}}, Named{"b", &stubSource{err: second}}).WithLogger(quietLog)

	_, _, err := chain.SunriseSunset(context.Background(), time.Now())
	require.ErrorIs(t, err, first)
	require.ErrorIs(t, err, second)

	_, _, err = NewChain().WithLogger(quietLog).SunriseSunset(context.Background(), time.Now())
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestChainStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	secondary := &stubSource{rise: time.Unix(1, 0), set: time.Unix(2, 0)}
	chain := NewChain(Named{"a", &stubSource{err: context.Canceled}}, Named{"b", secondary}).WithLogger(quietLog)

	_, _, err := chain.SunriseSunset(ctx, time.Now())
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, secondary.calls)
}
