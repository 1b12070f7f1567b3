package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"sensoralert/internal/config"
	"sensoralert/internal/domain"

	"github.com/nats-io/nats.go"
)

const browserStreamMaxAge = 24 * time.Hour

// BrowserSender fans alert notifications out to in-app consumers.
// Params: optional JetStream publisher plus bounded in-memory feed.
// Returns: browser channel sender.
type BrowserSender struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	initErr error

	mu       sync.Mutex
	feed     []domain.NotificationAlert
	capacity int
}

// NewBrowserSender creates a browser fan-out sender.
// Params: browser notifier config; NATS publish is active only when URLs are set.
// Returns: initialized sender; connection errors surface on Send.
func NewBrowserSender(cfg config.BrowserNotifier) *BrowserSender {
	capacity := cfg.Buffer
	if capacity <= 0 {
		capacity = 1
	}
	out := &BrowserSender{
		subject:  cfg.Subject,
		capacity: capacity,
	}
	if len(cfg.URL) == 0 {
		return out
	}

	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		out.initErr = fmt.Errorf("connect browser notify nats: %w", err)
		return out
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		out.initErr = fmt.Errorf("jetstream init for browser notify: %w", err)
		return out
	}
	if err := ensureBrowserStream(js, cfg.Subject); err != nil {
		nc.Close()
		out.initErr = err
		return out
	}
	out.nc = nc
	out.js = js
	return out
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *BrowserSender) Channel() string {
	return config.NotifyChannelBrowser
}

// Send records one alert in the feed and publishes it when NATS is configured.
// Params: context and alert record.
// Returns: publish error; local feed append never fails.
func (s *BrowserSender) Send(ctx context.Context, alert domain.NotificationAlert) error {
	if s.initErr != nil {
		return s.initErr
	}

	s.mu.Lock()
	s.feed = append(s.feed, alert)
	if len(s.feed) > s.capacity {
		s.feed = s.feed[len(s.feed)-s.capacity:]
	}
	s.mu.Unlock()

	if s.js == nil {
		return nil
	}

	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal browser alert: %w", err)
	}
	msg := nats.NewMsg(s.subject)
	msg.Data = body
	if strings.TrimSpace(alert.ID) != "" {
		msg.Header.Set("Nats-Msg-Id", strings.TrimSpace(alert.ID))
	}
	if _, err := s.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish browser alert: %w", err)
	}
	return nil
}

// Recent returns the newest feed entries up to limit.
// Params: limit caps returned entries; <=0 returns the full feed.
// Returns: newest-first copy of buffered alerts.
func (s *BrowserSender) Recent(limit int) []domain.NotificationAlert {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.feed)
	if limit > 0 && limit < count {
		count = limit
	}
	out := make([]domain.NotificationAlert, 0, count)
	for i := len(s.feed) - 1; i >= 0 && len(out) < count; i-- {
		out = append(out, s.feed[i])
	}
	return out
}

// Close closes the sender NATS connection.
// Params: none.
// Returns: none.
func (s *BrowserSender) Close() {
	if s == nil || s.nc == nil {
		return
	}
	s.nc.Close()
}

// ensureBrowserStream ensures the browser fan-out stream exists.
// Params: JetStream context and publish subject.
// Returns: stream create/lookup error.
func ensureBrowserStream(js nats.JetStreamContext, subject string) error {
	streamName := "SENSORALERT_BROWSER"
	if _, err := js.StreamInfo(streamName); err == nil {
		return nil
	} else if err != nats.ErrStreamNotFound && !strings.Contains(strings.ToLower(err.Error()), "stream not found") {
		return fmt.Errorf("stream info %q: %w", streamName, err)
	}

	_, err := js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subject},
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    browserStreamMaxAge,
	})
	if err != nil {
		return fmt.Errorf("create stream %q: %w", streamName, err)
	}
	return nil
}
