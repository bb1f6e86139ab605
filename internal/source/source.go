// Package source streams posts from a Mastodon-compatible server.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"fedirelay/internal/model"
)

// envelope is one frame of the streaming API.
type envelope struct {
	Event   string `json:"event"`
	Payload string `json:"payload"`
	Error   string `json:"error"`
}

// Source reads the list timeline over the streaming websocket and emits
// parsed posts.
type Source struct {
	url           string
	autoReconnect bool
	delay         time.Duration
	dialer        *websocket.Dialer
	log           *slog.Logger
}

// Options configures a Source.
type Options struct {
	Instance      string
	Token         string
	List          string
	AutoReconnect bool
	Delay         time.Duration
}

// New builds a Source for the given instance and list.
func New(opts Options, log *slog.Logger) *Source {
	q := url.Values{}
	q.Set("stream", "list")
	q.Set("list", opts.List)
	q.Set("access_token", opts.Token)
	u := url.URL{
		Scheme:   "wss",
		Host:     opts.Instance,
		Path:     "/api/v1/streaming",
		RawQuery: q.Encode(),
	}

	return &Source{
		url:           u.String(),
		autoReconnect: opts.AutoReconnect,
		delay:         opts.Delay,
		dialer:        websocket.DefaultDialer,
		log:           log,
	}
}

// Run connects and pushes posts to out until the context is cancelled.
// With auto-reconnect enabled, dropped connections are retried with a
// constant delay; posts missed while disconnected are not replayed.
// The out channel is closed on return.
func (s *Source) Run(ctx context.Context, out chan<- *model.Post) error {
	defer close(out)

	if !s.autoReconnect {
		err := s.stream(ctx, out)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	backoff := retry.NewConstant(s.delay)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.stream(ctx, out)
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		s.log.Error("stream disconnected, reconnecting", "error", err, "delay", s.delay)
		return retry.RetryableError(err)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// stream runs a single websocket session until it fails or ctx ends.
func (s *Source) stream(ctx context.Context, out chan<- *model.Post) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial streaming api: %w", err)
	}
	defer func() { _ = conn.Close() }()
	s.log.Info("connected to streaming api")

	// ReadMessage blocks without honoring ctx; closing the connection
	// unblocks it when the context ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.log.Warn("malformed frame", "error", err)
			continue
		}
		if env.Error != "" {
			return fmt.Errorf("stream error: %s", env.Error)
		}

		switch env.Event {
		case "update":
			post, err := model.ParsePost([]byte(env.Payload))
			if err != nil {
				s.log.Warn("skipping unparseable status", "error", err)
				continue
			}
			select {
			case out <- post:
			case <-ctx.Done():
				return ctx.Err()
			}
		case "delete", "status.update", "notification", "filters_changed":
			s.log.Debug("ignoring event", "event", env.Event)
		default:
			s.log.Warn("unknown event type", "event", env.Event)
		}
	}
}
