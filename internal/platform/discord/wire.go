package discord

import (
	"time"

	"parley.app/bot/internal/model"
)

// Wire types for the subset of the Discord REST API the session touches.

type wireUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

type wireMessageReference struct {
	MessageID string `json:"message_id"`
}

type wireMessage struct {
	ID                string                `json:"id"`
	ChannelID         string                `json:"channel_id"`
	Content           string                `json:"content"`
	Timestamp         string                `json:"timestamp"`
	Author            wireUser              `json:"author"`
	Mentions          []wireUser            `json:"mentions"`
	MessageReference  *wireMessageReference `json:"message_reference"`
	ReferencedMessage *wireMessage          `json:"referenced_message"`
}

func (u wireUser) toIdentity() model.Identity {
	return model.Identity{
		ID:       u.ID,
		Username: u.Username,
		IsBot:    u.Bot,
	}
}

func (m wireMessage) toChatMessage() model.ChatMessage {
	msg := model.ChatMessage{
		ID:     m.ID,
		Author: m.Author.toIdentity(),
		Text:   m.Content,
	}
	if ts, err := time.Parse(time.RFC3339, m.Timestamp); err == nil {
		msg.Timestamp = ts
	}
	if m.MessageReference != nil {
		msg.ReplyToID = m.MessageReference.MessageID
	}
	return msg
}

// toEvent maps a polled message into a core event. The referenced message is
// already embedded in the payload, so reply resolution needs no extra fetch.
func (m wireMessage) toEvent(channelID string) model.Event {
	event := model.Event{
		Message:   m.toChatMessage(),
		ChannelID: channelID,
	}

	for _, u := range m.Mentions {
		event.Mentions = append(event.Mentions, u.toIdentity())
	}

	if m.ReferencedMessage != nil {
		replyTo := m.ReferencedMessage.toChatMessage()
		event.ReplyTo = &replyTo
	}

	return event
}
