// Package discord implements platform.Session over the Discord REST API
// using plain HTTP polling of the watched channels. Gateway websockets,
// intents negotiation, and reconnect handling are deliberately out of scope;
// polling keeps the session a small, testable collaborator.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"parley.app/bot/common/logger"
	"parley.app/bot/internal/model"
)

const defaultAPIBase = "https://discord.com/api/v10"

type Config struct {
	Token        string
	Channels     []string // channel IDs to poll
	PollInterval time.Duration
	APIBase      string // overridable for tests
}

type Session struct {
	cfg        Config
	apiBase    string
	httpClient *http.Client
	identity   model.Identity
	events     chan model.Event

	// last seen message ID per polled channel
	cursors map[string]string
}

// NewSession authenticates against the API and returns a ready session.
// Run must be called to start delivering events.
func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = defaultAPIBase
	}

	s := &Session{
		cfg:     cfg,
		apiBase: apiBase,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		events:  make(chan model.Event, 64),
		cursors: make(map[string]string, len(cfg.Channels)),
	}

	var me wireUser
	if err := s.get(ctx, "/users/@me", nil, &me); err != nil {
		return nil, fmt.Errorf("fetching bot identity: %w", err)
	}
	s.identity = me.toIdentity()

	return s, nil
}

func (s *Session) Identity() model.Identity {
	return s.identity
}

// Events implements platform.Session. The channel closes when Run returns.
func (s *Session) Events() <-chan model.Event {
	return s.events
}

// Run polls the watched channels until the context is cancelled. New
// messages are delivered oldest-first per poll cycle.
func (s *Session) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "parley.platform.discord",
	})

	defer close(s.events)

	// Set watermarks first so startup never replays old history.
	for _, channelID := range s.cfg.Channels {
		if err := s.initCursor(ctx, channelID); err != nil {
			slog.WarnContext(ctx, "cursor init failed, starting from live traffic",
				"error", err,
				"channel_id", channelID)
		}
	}

	slog.InfoContext(ctx, "session polling started",
		"channels", len(s.cfg.Channels),
		"interval", s.cfg.PollInterval)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "session stopping")
			return
		case <-ticker.C:
			for _, channelID := range s.cfg.Channels {
				if err := s.pollChannel(ctx, channelID); err != nil {
					slog.ErrorContext(ctx, "channel poll failed",
						"error", err,
						"channel_id", channelID)
				}
			}
		}
	}
}

// RecentMessages implements platform.Session: most-recent-first, up to limit.
func (s *Session) RecentMessages(ctx context.Context, channelID string, limit int) ([]model.ChatMessage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var wire []wireMessage
	if err := s.get(ctx, "/channels/"+channelID+"/messages", params, &wire); err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}

	messages := make([]model.ChatMessage, len(wire))
	for i, m := range wire {
		messages[i] = m.toChatMessage()
	}
	return messages, nil
}

// Send posts a message to the channel.
func (s *Session) Send(ctx context.Context, channelID, text string) error {
	payload, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	if err := s.post(ctx, "/channels/"+channelID+"/messages", payload); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// Typing sends one typing indicator; it decays after a few seconds on the
// platform side.
func (s *Session) Typing(ctx context.Context, channelID string) error {
	if err := s.post(ctx, "/channels/"+channelID+"/typing", nil); err != nil {
		return fmt.Errorf("sending typing indicator: %w", err)
	}
	return nil
}

func (s *Session) initCursor(ctx context.Context, channelID string) error {
	params := url.Values{}
	params.Set("limit", "1")

	var wire []wireMessage
	if err := s.get(ctx, "/channels/"+channelID+"/messages", params, &wire); err != nil {
		return err
	}
	if len(wire) > 0 {
		s.cursors[channelID] = wire[0].ID
	}
	return nil
}

func (s *Session) pollChannel(ctx context.Context, channelID string) error {
	params := url.Values{}
	params.Set("limit", "100")
	if after := s.cursors[channelID]; after != "" {
		params.Set("after", after)
	}

	var wire []wireMessage
	if err := s.get(ctx, "/channels/"+channelID+"/messages", params, &wire); err != nil {
		return err
	}
	if len(wire) == 0 {
		return nil
	}

	// Message IDs are snowflakes, so numeric order is chronological order.
	sort.Slice(wire, func(i, j int) bool {
		return snowflakeLess(wire[i].ID, wire[j].ID)
	})
	s.cursors[channelID] = wire[len(wire)-1].ID

	for _, m := range wire {
		event := m.toEvent(channelID)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.events <- event:
		}
	}
	return nil
}

func (s *Session) get(ctx context.Context, path string, params url.Values, out any) error {
	u := s.apiBase + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+s.cfg.Token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("discord GET %s: status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func (s *Session) post(ctx context.Context, path string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+s.cfg.Token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord POST %s: status %d", path, resp.StatusCode)
	}
	return nil
}

func snowflakeLess(a, b string) bool {
	ai, errA := strconv.ParseUint(a, 10, 64)
	bi, errB := strconv.ParseUint(b, 10, 64)
	if errA != nil || errB != nil {
		return a < b
	}
	return ai < bi
}
