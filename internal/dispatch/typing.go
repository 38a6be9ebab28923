package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TypingSignal keeps a "working" indicator alive on one channel while a slow
// external call is in flight. Each signal is private to the event that
// started it; Stop releases it exactly once and waits for the goroutine to
// exit, so no indicator can outlive its event.
type TypingSignal struct {
	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// StartTyping sends one immediate typing indicator and then re-sends at
// every interval until Stop is called.
func (d *Dispatcher) StartTyping(ctx context.Context, channelID string) *TypingSignal {
	t := &TypingSignal{
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	if err := d.session.Typing(ctx, channelID); err != nil {
		slog.WarnContext(ctx, "typing indicator failed", "error", err)
	}

	go t.run(ctx, d, channelID)

	return t
}

func (t *TypingSignal) run(ctx context.Context, d *Dispatcher, channelID string) {
	defer close(t.stoppedCh)

	ticker := time.NewTicker(d.typingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-ticker.C:
			if err := d.session.Typing(ctx, channelID); err != nil {
				slog.WarnContext(ctx, "typing indicator failed", "error", err)
			}
		}
	}
}

// Stop ends the signal. Safe to call multiple times; only the first call has
// any effect, and it blocks until the signaling goroutine has exited.
func (t *TypingSignal) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
	<-t.stoppedCh
}
