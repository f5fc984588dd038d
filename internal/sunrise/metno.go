// Package sunrise provides sunrise, sunset, moonrise and moonset times from
// the met.no sunrise 3.0 API, with a chain that falls back to local sources.
package sunrise

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/httpclient"
	"github.com/solarwindow/pvpoll/internal/logger"
)

const (
	// DefaultBaseURL is the met.no sunrise 3.0 endpoint root
	DefaultBaseURL = "https://api.met.no/weatherapi/sunrise/3.0"

	DefaultTimeout  = 10 * time.Second
	DefaultCacheTTL = 24 * time.Hour

	providerName = "metno"
)

// ErrNoEvents is returned when the response holds neither requested event,
// e.g. during polar day or night
var ErrNoEvents = errors.NewStd("no events for date")

// Config configures a MetNo client
type Config struct {
	Latitude  float64
	Longitude float64
	Location  *time.Location // defines dates, offsets and returned times
	BaseURL   string
	UserAgent string // met.no rejects anonymous clients
	Timeout   time.Duration
	CacheTTL  time.Duration
}

// Events holds the rise and set time of one body for a date. A zero time
// means the event does not happen that day.
type Events struct {
	Rise time.Time `json:"rise,omitzero"`
	Set  time.Time `json:"set,omitzero"`
}

// MetNo queries api.met.no. Responses are cached per date and body.
type MetNo struct {
	cfg    Config
	client *httpclient.Client
	cache  *cache.Cache
	log    logger.Logger

	requests  atomic.Int64
	cacheHits atomic.Int64
}

// GetLogger returns the sunrise module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("sunrise")
}

// NewMetNo returns a met.no client. client may be nil to use a dedicated
// httpclient with the configured timeout and User-Agent.
func NewMetNo(cfg Config, client *httpclient.Client) *MetNo {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if client == nil {
		client = httpclient.New(&httpclient.Config{
			DefaultTimeout: cfg.Timeout,
			UserAgent:      cfg.UserAgent,
			Component:      "sunrise",
		})
	}
	return &MetNo{
		cfg:    cfg,
		client: client,
		cache:  cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		log:    GetLogger().With(logger.String("provider", providerName)),
	}
}

// WithLogger replaces the module logger
func (m *MetNo) WithLogger(l logger.Logger) *MetNo {
	m.log = l
	return m
}

// SunriseSunset returns sunrise and sunset of the local date. A missing event
// is returned as zero time; both missing is ErrNoEvents.
func (m *MetNo) SunriseSunset(ctx context.Context, date time.Time) (sunrise, sunset time.Time, err error) {
	ev, err := m.events(ctx, "sun", date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return ev.Rise, ev.Set, nil
}

// MoonriseMoonset returns moonrise and moonset of the local date
func (m *MetNo) MoonriseMoonset(ctx context.Context, date time.Time) (Events, error) {
	return m.events(ctx, "moon", date)
}

// Stats returns the number of API requests and cache hits
func (m *MetNo) Stats() (requests, cacheHits int64) {
	return m.requests.Load(), m.cacheHits.Load()
}

type eventTime struct {
	Time string `json:"time"`
}

type eventResponse struct {
	Properties struct {
		Sunrise  *eventTime `json:"sunrise"`
		Sunset   *eventTime `json:"sunset"`
		Moonrise *eventTime `json:"moonrise"`
		Moonset  *eventTime `json:"moonset"`
	} `json:"properties"`
}

func (m *MetNo) events(ctx context.Context, body string, date time.Time) (Events, error) {
	local := date.In(m.cfg.Location)
	day := local.Format(time.DateOnly)
	key := body + ":" + day

	if cached, found := m.cache.Get(key); found {
		if ev, ok := cached.(Events); ok {
			m.cacheHits.Add(1)
			return ev, nil
		}
	}

	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(m.cfg.Latitude, 'f', 4, 64))
	query.Set("lon", strconv.FormatFloat(m.cfg.Longitude, 'f', 4, 64))
	query.Set("date", day)
	query.Set("offset", Offset(local, m.cfg.Location))
	apiURL := fmt.Sprintf("%s/%s?%s", m.cfg.BaseURL, body, query.Encode())

	reqCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	m.requests.Add(1)
	started := time.Now()
	var resp eventResponse
	if err := m.client.GetJSON(reqCtx, apiURL, &resp); err != nil {
		m.log.Warn("met.no request failed",
			logger.String("body", body),
			logger.String("date", day),
			logger.Error(err))
		return Events{}, err
	}

	rise, set := resp.Properties.Sunrise, resp.Properties.Sunset
	if body == "moon" {
		rise, set = resp.Properties.Moonrise, resp.Properties.Moonset
	}

	var ev Events
	var err error
	if ev.Rise, err = m.parse(rise); err != nil {
		return Events{}, m.parseError(body, day, err)
	}
	if ev.Set, err = m.parse(set); err != nil {
		return Events{}, m.parseError(body, day, err)
	}
	if ev.Rise.IsZero() && ev.Set.IsZero() {
		return Events{}, errors.New(fmt.Errorf("%s: %w", body, ErrNoEvents)).
			Component("sunrise").
			Category(errors.CategoryNotFound).
			Context("date", day).
			Build()
	}

	m.cache.Set(key, ev, cache.DefaultExpiration)
	m.log.Debug("met.no events fetched",
		logger.String("body", body),
		logger.String("date", day),
		logger.Time("rise", ev.Rise),
		logger.Time("set", ev.Set),
		logger.Duration("duration", time.Since(started)))
	return ev, nil
}

// met.no omits seconds in event times
var eventLayouts = []string{time.RFC3339, "2006-01-02T15:04Z07:00"}

func (m *MetNo) parse(ev *eventTime) (time.Time, error) {
	if ev == nil || ev.Time == "" {
		return time.Time{}, nil
	}
	var firstErr error
	for _, layout := range eventLayouts {
		t, err := time.Parse(layout, ev.Time)
		if err == nil {
			return t.In(m.cfg.Location), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func (m *MetNo) parseError(body, day string, err error) error {
	return errors.New(fmt.Errorf("parse %s event time: %w", body, err)).
		Component("sunrise").
		Category(errors.CategoryParsing).
		Context("date", day).
		Build()
}

// Offset formats the UTC offset of tz at local noon of date's calendar day
// as +HH:MM or -HH:MM.
func Offset(date time.Time, tz *time.Location) string {
	y, mo, d := date.In(tz).Date()
	_, seconds := time.Date(y, mo, d, 12, 0, 0, 0, tz).Zone()
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	minutes := seconds / 60
	return fmt.Sprintf("%c%02d:%02d", sign, minutes/60, minutes%60)
}
