// Package classify selects the handling mode for an incoming event.
//
// Classification is a pure function of the event, the bot identity, and the
// rules; it performs no I/O and has no side effects. The rule order below is
// a compatibility contract: directives win over mention fact-checks, which
// win over thread replies, and a "!" as the very first character always
// silences the message before the mention rule can see it.
package classify

import (
	"strings"

	"parley.app/bot/internal/model"
)

// Directive prefixes recognized at the start of a message.
const (
	FactCheckDirective = "FACT CHECK:"
	AskDirective       = "ASK:"
)

// Rules is the read-only configuration consulted during classification.
type Rules struct {
	IgnorePrefix    string
	WatchedChannels map[string]struct{}
}

// NewRules builds Rules from the configured channel list.
func NewRules(ignorePrefix string, channels []string) Rules {
	watched := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		watched[ch] = struct{}{}
	}
	return Rules{
		IgnorePrefix:    ignorePrefix,
		WatchedChannels: watched,
	}
}

// Result is the classification outcome. Target carries the mentioned user
// for ModeFactCheckUser and is nil otherwise.
type Result struct {
	Mode   model.Mode
	Target *model.Identity
}

// Classify applies the dispatch rules in order and returns the first match.
func Classify(event model.Event, bot model.Identity, rules Rules) Result {
	text := event.Message.Text

	if event.Message.Author.IsBot || strings.HasPrefix(text, rules.IgnorePrefix) {
		return Result{Mode: model.ModeNone}
	}

	if _, watched := rules.WatchedChannels[event.ChannelID]; !watched && !mentionsBot(event, bot) {
		return Result{Mode: model.ModeNone}
	}

	if strings.HasPrefix(text, FactCheckDirective) {
		return Result{Mode: model.ModeFactCheckChannel}
	}

	if strings.HasPrefix(text, AskDirective) {
		return Result{Mode: model.ModeAsk}
	}

	if target := soleMentionedUser(event, bot); target != nil && strings.Contains(text, "!") {
		return Result{Mode: model.ModeFactCheckUser, Target: target}
	}

	if event.ReplyTo != nil && event.ReplyTo.Author.ID == bot.ID {
		return Result{Mode: model.ModeThreadReply}
	}

	return Result{Mode: model.ModeNone}
}

func mentionsBot(event model.Event, bot model.Identity) bool {
	for _, m := range event.Mentions {
		if m.ID == bot.ID {
			return true
		}
	}
	return false
}

// soleMentionedUser returns the mentioned user when exactly one user other
// than the bot is mentioned, nil otherwise.
func soleMentionedUser(event model.Event, bot model.Identity) *model.Identity {
	var target *model.Identity
	for i := range event.Mentions {
		if event.Mentions[i].ID == bot.ID {
			continue
		}
		if target != nil {
			return nil
		}
		target = &event.Mentions[i]
	}
	return target
}
