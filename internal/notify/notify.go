package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"sensoralert/internal/config"
	"sensoralert/internal/domain"
	"sensoralert/internal/metrics"
)

// ChannelSender sends one alert notification to one channel.
// Params: context and persisted alert record.
// Returns: transport error when send fails.
type ChannelSender interface {
	Channel() string
	Send(ctx context.Context, alert domain.NotificationAlert) error
}

// Failure records one channel delivery that did not succeed.
// Params: channel key and final error after retries.
// Returns: audit entry for dispatch results.
type Failure struct {
	Channel string
	Err     error
}

// Dispatcher delivers alert notifications with configured retries/backoff.
// Params: sender list and per-channel retry policy.
// Returns: send helper for manager layer.
type Dispatcher struct {
	senders  map[string]ChannelSender
	channels []string
	retries  map[string]config.RetryConfig
	logger   *slog.Logger
}

// NewDispatcher builds notification dispatcher from enabled channels.
// Params: global notify config and optional logger.
// Returns: configured dispatcher with available senders.
func NewDispatcher(cfg config.NotifyConfig, logger *slog.Logger) *Dispatcher {
	senders := make(map[string]ChannelSender)
	retries := make(map[string]config.RetryConfig)
	for _, channel := range config.NotifyChannelNames() {
		if !config.NotifyChannelEnabled(cfg, channel) {
			continue
		}
		sender := newSenderForChannel(channel, cfg, logger)
		if sender == nil {
			continue
		}
		senders[channel] = sender
		retries[channel] = config.NotifyChannelRetry(cfg, channel)
	}
	channels := make([]string, 0, len(senders))
	for channel := range senders {
		channels = append(channels, channel)
	}
	sort.Strings(channels)
	return &Dispatcher{
		senders:  senders,
		channels: channels,
		retries:  retries,
		logger:   logger,
	}
}

// newSenderForChannel builds transport sender implementation for one channel key.
// Params: normalized channel key, full notify config, and optional logger.
// Returns: channel sender or nil when channel is unknown.
func newSenderForChannel(channel string, cfg config.NotifyConfig, logger *slog.Logger) ChannelSender {
	switch channel {
	case config.NotifyChannelEmail:
		return NewEmailSender(cfg.Email, logger)
	case config.NotifyChannelBrowser:
		return NewBrowserSender(cfg.Browser)
	case config.NotifyChannelTelegram:
		return NewTelegramSender(cfg.Telegram)
	default:
		return nil
	}
}

// Channels returns configured channel list.
// Params: none.
// Returns: deterministic sender keys.
func (d *Dispatcher) Channels() []string {
	return d.channels
}

// Has reports whether one channel transport is configured.
// Params: normalized channel key.
// Returns: true when sender exists.
func (d *Dispatcher) Has(channel string) bool {
	_, ok := d.senders[channel]
	return ok
}

// Browser returns the browser sender when the channel is configured.
// Params: none.
// Returns: browser sender or nil.
func (d *Dispatcher) Browser() *BrowserSender {
	sender, ok := d.senders[config.NotifyChannelBrowser]
	if !ok {
		return nil
	}
	browser, ok := sender.(*BrowserSender)
	if !ok {
		return nil
	}
	return browser
}

// Close releases sender transports.
// Params: none.
// Returns: none; close errors are swallowed.
func (d *Dispatcher) Close() {
	for _, sender := range d.senders {
		if closer, ok := sender.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

// Dispatch delivers one persisted alert to the requested channels.
// Params: context, alert record, and opted-in channel keys.
// Returns: failure list; delivery errors never abort remaining channels.
func (d *Dispatcher) Dispatch(ctx context.Context, alert domain.NotificationAlert, channels []string) []Failure {
	var failures []Failure
	for _, channel := range channels {
		if err := d.Send(ctx, channel, alert); err != nil {
			metrics.NotificationFailures.WithLabelValues(channel).Inc()
			if d.logger != nil {
				d.logger.Error("notification delivery failed",
					"channel", channel,
					"alert_id", alert.ID,
					"device_id", alert.DeviceID,
					"error", err.Error())
			}
			failures = append(failures, Failure{Channel: channel, Err: err})
			continue
		}
		metrics.NotificationsSent.WithLabelValues(channel).Inc()
	}
	return failures
}

// Send sends one alert to a channel with its retry policy.
// Params: destination channel and alert record.
// Returns: final error after retries.
func (d *Dispatcher) Send(ctx context.Context, channel string, alert domain.NotificationAlert) error {
	sender, ok := d.senders[channel]
	if !ok {
		return fmt.Errorf("notify channel %q is not configured", channel)
	}
	return d.sendWithRetry(ctx, sender, alert, d.retries[channel])
}

// sendWithRetry sends one alert with channel-specific retry policy.
// Params: sender, alert record, and retry policy for the sender channel.
// Returns: final error after retries.
func (d *Dispatcher) sendWithRetry(ctx context.Context, sender ChannelSender, alert domain.NotificationAlert, retry config.RetryConfig) error {
	if !retry.Enabled {
		return sender.Send(ctx, alert)
	}

	attempt := 0
	backoff := time.Duration(retry.InitialMS) * time.Millisecond
	maxBackoff := time.Duration(retry.MaxMS) * time.Millisecond
	var timer *time.Timer
	stopTimer := func() {
		if timer == nil {
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}

	for {
		attempt++
		err := sender.Send(ctx, alert)
		if err == nil {
			stopTimer()
			if retry.LogEachAttempt && attempt > 1 && d.logger != nil {
				d.logger.Info("notify send recovered after retries", "channel", sender.Channel(), "attempt", attempt)
			}
			return nil
		}
		if retry.LogEachAttempt && d.logger != nil {
			d.logger.Warn("notify send attempt failed", "channel", sender.Channel(), "attempt", attempt, "error", err.Error())
		}

		if retry.MaxAttempts > 0 && attempt >= retry.MaxAttempts {
			stopTimer()
			return fmt.Errorf("channel %s failed after %d attempts: %w", sender.Channel(), attempt, err)
		}

		if timer == nil {
			timer = time.NewTimer(backoff)
		} else {
			stopTimer()
			timer.Reset(backoff)
		}
		select {
		case <-ctx.Done():
			stopTimer()
			return ctx.Err()
		case <-timer.C:
		}

		if strings.EqualFold(retry.Backoff, "exponential") {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}
