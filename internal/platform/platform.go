// Package platform defines the chat platform session contract the core
// depends on. The session's connection lifecycle (auth, reconnects) belongs
// to the implementing adapter, not to the core.
package platform

import (
	"context"

	"parley.app/bot/internal/model"
)

// Session is one authenticated connection to the chat platform.
type Session interface {
	// Identity returns the bot's own platform identity.
	Identity() model.Identity

	// RecentMessages returns up to limit messages from the channel,
	// most-recent-first. Callers that need chronological order reverse it.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]model.ChatMessage, error)

	// Send posts a text message to the channel.
	Send(ctx context.Context, channelID, text string) error

	// Typing sends one typing indicator to the channel. The indicator decays
	// on the platform side, so it must be re-sent periodically to persist.
	Typing(ctx context.Context, channelID string) error

	// Events is the stream of incoming message events. The channel closes
	// when the session shuts down.
	Events() <-chan model.Event
}
