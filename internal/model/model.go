package model

import "time"

// Identity is a platform user as seen by the core. The bot's own identity is
// read once at startup and passed explicitly wherever authorship matters.
type Identity struct {
	ID       string
	Username string
	IsBot    bool
}

// ChatMessage is an immutable snapshot of one message from the platform.
// The core never mutates it.
type ChatMessage struct {
	ID        string
	Author    Identity
	Text      string
	Timestamp time.Time
	ReplyToID string // empty when the message is not a reply
}

// Event is one incoming platform event. ReplyTo is the resolved replied-to
// message, populated by the platform layer so classification stays a pure
// function of the event.
type Event struct {
	Message   ChatMessage
	ChannelID string
	Mentions  []Identity
	ReplyTo   *ChatMessage
}

// Mode is the classification outcome selecting which handling path
// processes an event.
type Mode int

const (
	ModeNone Mode = iota
	ModeFactCheckChannel
	ModeFactCheckUser
	ModeAsk
	ModeThreadReply
)

func (m Mode) String() string {
	switch m {
	case ModeFactCheckChannel:
		return "fact_check_channel"
	case ModeFactCheckUser:
		return "fact_check_user"
	case ModeAsk:
		return "ask"
	case ModeThreadReply:
		return "thread_reply"
	default:
		return "none"
	}
}
