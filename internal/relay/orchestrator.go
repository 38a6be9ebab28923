// Package relay wires classification, transcript assembly, the completion
// gateway, and response dispatch into the per-event pipeline.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"

	"parley.app/bot/common/id"
	"parley.app/bot/common/llm"
	"parley.app/bot/common/logger"
	"parley.app/bot/internal/classify"
	"parley.app/bot/internal/dispatch"
	"parley.app/bot/internal/model"
	"parley.app/bot/internal/platform"
	"parley.app/bot/internal/transcript"
)

// Mode-specific failure notices, reported to the user before the gateway is
// ever called.
const (
	EmptyQuestionReply  = "Please provide a question after 'ASK:'."
	TargetNotFoundReply = "Could not find a recent message from the mentioned user."
)

// HistoryLimits are the per-mode history fetch sizes.
type HistoryLimits struct {
	FactCheck int // channel fact checks
	Thread    int // thread replies
	UserScan  int // mentioned-user scans
}

// Stats are cumulative event counters, safe for concurrent reads.
type Stats struct {
	Handled int64 // events that produced a reply or a failure notice
	Ignored int64 // events classified as none
	Failed  int64 // events that ended in a gateway failure or send error
}

type Orchestrator struct {
	session    platform.Session
	gateway    llm.Client
	builder    *transcript.Builder
	dispatcher *dispatch.Dispatcher
	rules      classify.Rules
	limits     HistoryLimits

	handled atomic.Int64
	ignored atomic.Int64
	failed  atomic.Int64
}

func New(session platform.Session, gateway llm.Client, builder *transcript.Builder, dispatcher *dispatch.Dispatcher, rules classify.Rules, limits HistoryLimits) *Orchestrator {
	return &Orchestrator{
		session:    session,
		gateway:    gateway,
		builder:    builder,
		dispatcher: dispatcher,
		rules:      rules,
		limits:     limits,
	}
}

// Run consumes the session's event stream until it closes or the context is
// cancelled. Each event is handled on its own goroutine; events share nothing
// but the read-only configuration and the counters.
func (o *Orchestrator) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "parley.relay.orchestrator",
	})

	slog.InfoContext(ctx, "orchestrator started", "model", o.gateway.Model())

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-o.session.Events():
			if !ok {
				slog.InfoContext(ctx, "event stream closed")
				return
			}
			go o.handleEventSafe(ctx, event)
		}
	}
}

func (o *Orchestrator) handleEventSafe(ctx context.Context, event model.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in event handling",
				"panic", r,
				"message_id", event.Message.ID)
			o.failed.Add(1)
		}
	}()

	if err := o.HandleEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "event handling failed",
			"error", err,
			"message_id", event.Message.ID)
		o.failed.Add(1)
	}
}

// HandleEvent runs the full pipeline for one incoming event: classify, build
// the transcript, call the gateway exactly once, and dispatch the outcome.
// A None classification is a silent no-op. Build failures are reported to the
// user with a mode-specific notice and never reach the gateway. A gateway
// failure is terminal for the event and answered with the generic fallback.
func (o *Orchestrator) HandleEvent(ctx context.Context, event model.Event) error {
	bot := o.session.Identity()

	result := classify.Classify(event, bot, o.rules)
	if result.Mode == model.ModeNone {
		o.ignored.Add(1)
		return nil
	}

	jobID := id.New()
	mode := result.Mode.String()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ChannelID: logger.Ptr(event.ChannelID),
		MessageID: logger.Ptr(event.Message.ID),
		JobID:     logger.Ptr(jobID),
		Mode:      logger.Ptr(mode),
	})

	sc := logger.StartSpan(ctx, "relay.handle_event", trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	slog.InfoContext(ctx, "handling event", "author", event.Message.Author.Username)

	typing := o.dispatcher.StartTyping(ctx, event.ChannelID)
	defer typing.Stop()

	history, err := o.fetchHistory(ctx, event.ChannelID, result.Mode)
	if err != nil {
		sc.RecordError(err)
		typing.Stop()
		if sendErr := o.dispatcher.SendFallback(ctx, event.ChannelID); sendErr != nil {
			slog.ErrorContext(ctx, "fallback send failed", "error", sendErr)
		}
		return fmt.Errorf("fetching history: %w", err)
	}

	turns, err := o.builder.Build(result.Mode, history, event, result.Target, bot)
	if err != nil {
		typing.Stop()
		return o.reportBuildFailure(ctx, event.ChannelID, err)
	}

	reply, err := o.gateway.Complete(ctx, turns)
	typing.Stop()
	if err != nil {
		sc.RecordError(err)
		slog.ErrorContext(ctx, "gateway call failed", "error", err)
		if sendErr := o.dispatcher.SendFallback(ctx, event.ChannelID); sendErr != nil {
			return fmt.Errorf("sending fallback after gateway failure: %w", sendErr)
		}
		o.failed.Add(1)
		return nil
	}

	slog.DebugContext(ctx, "gateway reply", "reply", logger.Truncate(reply, 200))

	if err := o.dispatcher.Dispatch(ctx, event.ChannelID, reply); err != nil {
		sc.RecordError(err)
		return fmt.Errorf("dispatching reply: %w", err)
	}

	o.handled.Add(1)
	return nil
}

// fetchHistory returns the channel history for the mode, oldest first.
// Ask needs no history at all.
func (o *Orchestrator) fetchHistory(ctx context.Context, channelID string, mode model.Mode) ([]model.ChatMessage, error) {
	var limit int
	switch mode {
	case model.ModeFactCheckChannel:
		limit = o.limits.FactCheck
	case model.ModeThreadReply:
		limit = o.limits.Thread
	case model.ModeFactCheckUser:
		limit = o.limits.UserScan
	default:
		return nil, nil
	}

	recent, err := o.session.RecentMessages(ctx, channelID, limit)
	if err != nil {
		return nil, err
	}

	// Platform returns most-recent-first; the transcript wants chronological.
	history := make([]model.ChatMessage, len(recent))
	for i, msg := range recent {
		history[len(recent)-1-i] = msg
	}
	return history, nil
}

func (o *Orchestrator) reportBuildFailure(ctx context.Context, channelID string, err error) error {
	var notice string
	switch {
	case errors.Is(err, transcript.ErrEmptyQuestion):
		notice = EmptyQuestionReply
	case errors.Is(err, transcript.ErrTargetNotFound):
		notice = TargetNotFoundReply
	default:
		return fmt.Errorf("building transcript: %w", err)
	}

	slog.InfoContext(ctx, "transcript build rejected", "reason", err)

	if sendErr := o.dispatcher.Send(ctx, channelID, notice); sendErr != nil {
		return fmt.Errorf("sending build failure notice: %w", sendErr)
	}

	o.handled.Add(1)
	return nil
}

// Stats returns a snapshot of the cumulative counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Handled: o.handled.Load(),
		Ignored: o.ignored.Load(),
		Failed:  o.failed.Load(),
	}
}
