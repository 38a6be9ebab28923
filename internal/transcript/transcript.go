// Package transcript turns raw chat history into the role-tagged
// conversation sent to the completion service.
package transcript

import (
	"errors"
	"regexp"
	"strings"

	"parley.app/bot/common/llm"
	"parley.app/bot/internal/model"
)

var (
	// ErrEmptyQuestion is returned when an ASK: directive carries no payload.
	ErrEmptyQuestion = errors.New("no question after directive")

	// ErrTargetNotFound is returned when no qualifying message from the
	// mentioned user exists in the scanned history.
	ErrTargetNotFound = errors.New("no recent message from mentioned user")
)

var (
	whitespaceRuns = regexp.MustCompile(`\s+`)
	invalidChars   = regexp.MustCompile(`[^a-zA-Z0-9_\s]`)
)

// Prompts are the system-turn instruction strings per mode family.
// Configuration, not invariants.
type Prompts struct {
	FactCheck string // fact-check modes
	Assistant string // ask and thread-reply modes
}

// Builder assembles transcripts from chat history.
type Builder struct {
	prompts      Prompts
	ignorePrefix string
}

func NewBuilder(prompts Prompts, ignorePrefix string) *Builder {
	return &Builder{
		prompts:      prompts,
		ignorePrefix: ignorePrefix,
	}
}

// Build produces the transcript for one classified event. History must be
// in chronological order (oldest first); the output preserves that order
// after a single leading system turn. Target is the mentioned user for
// ModeFactCheckUser and ignored otherwise.
func (b *Builder) Build(mode model.Mode, history []model.ChatMessage, event model.Event, target *model.Identity, bot model.Identity) ([]llm.Message, error) {
	switch mode {
	case model.ModeFactCheckChannel:
		return b.fromHistory(b.prompts.FactCheck, history, bot), nil

	case model.ModeThreadReply:
		return b.fromHistory(b.prompts.Assistant, history, bot), nil

	case model.ModeAsk:
		question := strings.TrimSpace(strings.TrimPrefix(event.Message.Text, "ASK:"))
		if question == "" {
			return nil, ErrEmptyQuestion
		}
		return []llm.Message{
			{Role: llm.RoleSystem, Content: b.prompts.Assistant},
			{Role: llm.RoleUser, Name: NormalizeSpeaker(event.Message.Author.Username), Content: question},
		}, nil

	case model.ModeFactCheckUser:
		msg := b.lastMessageBy(history, target)
		if msg == nil {
			return nil, ErrTargetNotFound
		}
		return []llm.Message{
			{Role: llm.RoleSystem, Content: b.prompts.FactCheck},
			{Role: llm.RoleUser, Name: NormalizeSpeaker(target.Username), Content: msg.Text},
		}, nil

	default:
		return nil, errors.New("no transcript for mode none")
	}
}

// fromHistory emits the system turn followed by one turn per qualifying
// message. Foreign bots and ignore-prefixed messages are dropped before any
// role mapping happens.
func (b *Builder) fromHistory(prompt string, history []model.ChatMessage, bot model.Identity) []llm.Message {
	turns := make([]llm.Message, 0, len(history)+1)
	turns = append(turns, llm.Message{Role: llm.RoleSystem, Content: prompt})

	for _, msg := range history {
		if msg.Author.IsBot && msg.Author.ID != bot.ID {
			continue
		}
		if strings.HasPrefix(msg.Text, b.ignorePrefix) {
			continue
		}

		role := llm.RoleUser
		if msg.Author.ID == bot.ID {
			role = llm.RoleAssistant
		}

		turns = append(turns, llm.Message{
			Role:    role,
			Name:    NormalizeSpeaker(msg.Author.Username),
			Content: msg.Text,
		})
	}

	return turns
}

// lastMessageBy returns the most recent message authored by the target whose
// text does not start with the ignore prefix. History is oldest-first, so the
// last match wins.
func (b *Builder) lastMessageBy(history []model.ChatMessage, target *model.Identity) *model.ChatMessage {
	if target == nil {
		return nil
	}
	var found *model.ChatMessage
	for i := range history {
		msg := &history[i]
		if msg.Author.ID == target.ID && !strings.HasPrefix(msg.Text, b.ignorePrefix) {
			found = msg
		}
	}
	return found
}

// NormalizeSpeaker converts a display name into a speaker label safe for the
// completion service's name parameter: whitespace runs collapse to a single
// underscore, then everything outside the alphanumeric/underscore set is
// stripped. The two-pass order matters; it matches what the bot has always
// sent.
func NormalizeSpeaker(name string) string {
	underscored := whitespaceRuns.ReplaceAllString(name, "_")
	return invalidChars.ReplaceAllString(underscored, "")
}
