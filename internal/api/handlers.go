package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/solarwindow/pvpoll/internal/budget"
	"github.com/solarwindow/pvpoll/internal/logger"
	"github.com/solarwindow/pvpoll/internal/phase"
)

// HealthResponse is the /healthz body
type HealthResponse struct {
	Status        string  `json:"status"`
	State         string  `json:"state"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Timestamp     string  `json:"timestamp"`
}

// WindowResponse is the /api/v1/window body
type WindowResponse struct {
	Date       string               `json:"date"`
	Phase      string               `json:"phase,omitempty"` // only for today
	Window     phase.TwilightWindow `json:"window"`
	Allocation budget.Allocation    `json:"allocation"`
}

// health reports "degraded" while polling is paused or the window came from
// fallbacks
func (s *Server) health(c echo.Context) error {
	snap := s.status.Snapshot()
	status := "healthy"
	if snap.Paused || (snap.Window != nil && snap.Window.Degraded) {
		status = "degraded"
	}
	uptime := s.now().Sub(s.startTime)
	return c.JSON(http.StatusOK, HealthResponse{
		Status:        status,
		State:         snap.State,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		Timestamp:     s.now().Format(time.RFC3339),
	})
}

func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.status.Snapshot())
}

// getWindow returns the scheduler's plan for today, or computes the window
// and allocation of ?date=YYYY-MM-DD
func (s *Server) getWindow(c echo.Context) error {
	now := s.now().In(s.location)
	today := now.Format(time.DateOnly)
	date := c.QueryParam("date")
	if date == "" {
		date = today
	}

	if date == today {
		snap := s.status.Snapshot()
		if snap.Window != nil && snap.Allocation != nil {
			return c.JSON(http.StatusOK, WindowResponse{
				Date:       date,
				Phase:      snap.Phase,
				Window:     *snap.Window,
				Allocation: *snap.Allocation,
			})
		}
	}

	day, err := time.ParseInLocation(time.DateOnly, date, s.location)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	window, err := s.windows.ComputeWindow(c.Request().Context(), day)
	if err != nil {
		s.log.Warn("window computation failed", logger.String("date", date), logger.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "window unavailable")
	}

	resp := WindowResponse{
		Date:       date,
		Window:     window,
		Allocation: budget.Allocate(window, s.cfg.DailyBudget),
	}
	if date == today {
		resp.Phase = phase.Classify(now, window).String()
	}
	return c.JSON(http.StatusOK, resp)
}
