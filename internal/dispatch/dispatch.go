// Package dispatch delivers replies back to the chat platform: transport-safe
// chunking, the periodic typing signal, and the fixed failure fallback.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"parley.app/bot/internal/platform"
)

// FallbackMessage is sent whenever the completion service cannot produce a
// usable reply.
const FallbackMessage = "I'm having trouble, try again later."

type Dispatcher struct {
	session        platform.Session
	chunkSize      int
	typingInterval time.Duration
}

func New(session platform.Session, chunkSize int, typingInterval time.Duration) *Dispatcher {
	return &Dispatcher{
		session:        session,
		chunkSize:      chunkSize,
		typingInterval: typingInterval,
	}
}

// Dispatch splits the reply into chunks and sends them in order, each send
// awaited before the next begins. An empty reply is delivered as the
// fallback message rather than silence.
func (d *Dispatcher) Dispatch(ctx context.Context, channelID, reply string) error {
	if reply == "" {
		slog.WarnContext(ctx, "empty reply from gateway, sending fallback")
		return d.SendFallback(ctx, channelID)
	}

	chunks := Chunk(reply, d.chunkSize)
	for i, chunk := range chunks {
		if err := d.session.Send(ctx, channelID, chunk); err != nil {
			return fmt.Errorf("sending chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}

	slog.InfoContext(ctx, "reply dispatched",
		"chunks", len(chunks),
		"reply_len", len(reply))

	return nil
}

// SendFallback delivers the fixed failure message.
func (d *Dispatcher) SendFallback(ctx context.Context, channelID string) error {
	if err := d.session.Send(ctx, channelID, FallbackMessage); err != nil {
		return fmt.Errorf("sending fallback: %w", err)
	}
	return nil
}

// Send delivers a single message without chunking. Used for the short,
// mode-specific failure notices.
func (d *Dispatcher) Send(ctx context.Context, channelID, text string) error {
	return d.session.Send(ctx, channelID, text)
}

// Chunk splits text into contiguous segments of at most limit bytes,
// preserving order. Concatenating the result reconstructs the input exactly;
// every segment except possibly the last has length exactly limit when the
// text overflows.
func Chunk(text string, limit int) []string {
	if text == "" {
		return nil
	}

	chunks := make([]string, 0, (len(text)+limit-1)/limit)
	for start := 0; start < len(text); start += limit {
		end := start + limit
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}
