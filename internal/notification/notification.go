// Package notification delivers operational alerts through shoutrrr service
// URLs (ntfy, Telegram, Discord, Pushover, generic webhooks, ...).
package notification

import (
	"context"
	"io"
	"log"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
)

// DefaultTimeout bounds one delivery to all URLs
const DefaultTimeout = 10 * time.Second

// Config configures the notifier
type Config struct {
	URLs        []string
	Timeout     time.Duration
	TitlePrefix string // prepended to every title, e.g. "[pvpoll]"
	Breaker     CircuitBreakerConfig
}

// Sender is the delivery backend; *router.ServiceRouter implements it
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// Notifier sends alerts to every configured URL
type Notifier struct {
	cfg     Config
	sender  Sender
	breaker *CircuitBreaker
	log     logger.Logger
}

// GetLogger returns the notification module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("notification")
}

// New validates the URLs and returns a Notifier
func New(cfg Config) (*Notifier, error) {
	urls := slices.DeleteFunc(slices.Clone(cfg.URLs), func(u string) bool {
		return strings.TrimSpace(u) == ""
	})
	if len(urls) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// shoutrrr errors may echo the URL, which carries tokens
		return nil, errors.Newf("invalid notification URL: %s", errors.ScrubMessage(err.Error())).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("url_count", len(urls)).
			Build()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	sender.Timeout = cfg.Timeout
	sender.SetLogger(log.New(io.Discard, "", 0))

	cfg.URLs = urls
	return NewWithSender(cfg, sender), nil
}

// NewWithSender returns a Notifier on an explicit backend
func NewWithSender(cfg Config, sender Sender) *Notifier {
	return &Notifier{
		cfg:     cfg,
		sender:  sender,
		breaker: NewCircuitBreaker(cfg.Breaker),
		log:     GetLogger(),
	}
}

// Notify sends one alert. It fails fast while the circuit is open.
func (n *Notifier) Notify(ctx context.Context, title, message string) error {
	if err := ctx.Err(); err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryCancellation).
			Build()
	}
	if n.cfg.TitlePrefix != "" {
		title = n.cfg.TitlePrefix + " " + title
	}

	err := n.breaker.Call(ctx, func(context.Context) error {
		return n.send(title, message)
	})
	if err != nil {
		return err
	}
	n.log.Debug("notification sent", logger.String("title", title))
	return nil
}

func (n *Notifier) send(title, message string) error {
	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}

	var failed []error
	for _, err := range n.sender.Send(message, &params) {
		if err != nil {
			failed = append(failed, errors.NewStd(errors.ScrubMessage(err.Error())))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return errors.New(errors.Join(failed...)).
		Component("notification").
		Category(errors.CategoryNotification).
		Context("operation", "send").
		Context("failed", len(failed)).
		Build()
}

// State reports the circuit breaker state
func (n *Notifier) State() CircuitState {
	return n.breaker.State()
}
