// Package solaredge fetches site overview metrics from the SolarEdge
// monitoring API.
package solaredge

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/httpclient"
	"github.com/solarwindow/pvpoll/internal/logger"
	"github.com/solarwindow/pvpoll/internal/pv"
)

const (
	DefaultBaseURL = "https://monitoringapi.solaredge.com"
	DefaultTimeout = 10 * time.Second
)

// Config configures a Client
type Config struct {
	SiteID  string
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client reads the site overview. It implements the scheduler's Fetcher.
type Client struct {
	cfg    Config
	client *httpclient.Client
	now    func() time.Time
	log    logger.Logger
}

// GetLogger returns the solaredge module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("solaredge")
}

// NewClient validates cfg and returns a Client. client may be nil.
func NewClient(cfg Config, client *httpclient.Client) (*Client, error) {
	if cfg.SiteID == "" || cfg.APIKey == "" {
		return nil, errors.Newf("solaredge site id and api key are required").
			Component("solaredge").
			Category(errors.CategoryConfiguration).
			Context("site_id_configured", cfg.SiteID != "").
			Context("api_key_configured", cfg.APIKey != "").
			Build()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if client == nil {
		client = httpclient.New(&httpclient.Config{
			DefaultTimeout: cfg.Timeout,
			Component:      "solaredge",
		})
	}

	c := &Client{
		cfg:    cfg,
		client: client,
		now:    time.Now,
		log:    GetLogger(),
	}
	c.log.Info("solaredge client initialized",
		logger.String("site_id", cfg.SiteID),
		logger.String("base_url", cfg.BaseURL),
		logger.Duration("timeout", cfg.Timeout))
	return c, nil
}

// WithLogger replaces the module logger
func (c *Client) WithLogger(l logger.Logger) *Client {
	c.log = l
	return c
}

type energyValue struct {
	Energy *float64 `json:"energy"`
}

type powerValue struct {
	Power *float64 `json:"power"`
}

type overviewResponse struct {
	Overview struct {
		LastUpdateTime string       `json:"lastUpdateTime"`
		LastYearData   *energyValue `json:"lastYearData"`
		LastMonthData  *energyValue `json:"lastMonthData"`
		LastDayData    *energyValue `json:"lastDayData"`
		CurrentPower   *powerValue  `json:"currentPower"`
	} `json:"overview"`
}

// Fetch performs one overview query. Values missing from the response stay
// nil in the returned metrics.
func (c *Client) Fetch(ctx context.Context) (pv.Metrics, error) {
	apiURL := fmt.Sprintf("%s/site/%s/overview?%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.SiteID), url.Values{"api_key": {c.cfg.APIKey}}.Encode())

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	started := time.Now()
	var resp overviewResponse
	if err := c.client.GetJSON(reqCtx, apiURL, &resp); err != nil {
		return pv.Metrics{}, err
	}

	ov := resp.Overview
	m := pv.Metrics{FetchedAt: c.now()}
	if ov.CurrentPower != nil {
		m.CurrentPower = ov.CurrentPower.Power
	}
	if ov.LastDayData != nil {
		m.DailyEnergy = ov.LastDayData.Energy
	}
	if ov.LastMonthData != nil {
		m.MonthlyEnergy = ov.LastMonthData.Energy
	}
	if ov.LastYearData != nil {
		m.YearlyEnergy = ov.LastYearData.Energy
	}

	c.log.Debug("overview fetched",
		logger.Float64("power_w", m.Power()),
		logger.Bool("has_daily_energy", m.DailyEnergy != nil),
		logger.String("last_update", ov.LastUpdateTime),
		logger.Duration("duration", time.Since(started)))
	return m, nil
}
