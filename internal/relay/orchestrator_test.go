package relay_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"parley.app/bot/common/llm"
	"parley.app/bot/internal/classify"
	"parley.app/bot/internal/dispatch"
	"parley.app/bot/internal/model"
	"parley.app/bot/internal/relay"
	"parley.app/bot/internal/transcript"
)

var _ = Describe("Orchestrator", func() {
	var (
		session *mockSession
		gateway *mockGateway
		orch    *relay.Orchestrator
		ctx     context.Context
		bot     model.Identity
		alice   model.Identity
		bob     model.Identity
	)

	BeforeEach(func() {
		bot = model.Identity{ID: "bot-1", Username: "parley", IsBot: true}
		alice = model.Identity{ID: "user-1", Username: "alice"}
		bob = model.Identity{ID: "user-2", Username: "bob"}
		session = &mockSession{identity: bot}
		gateway = &mockGateway{}
		ctx = context.Background()

		builder := transcript.NewBuilder(transcript.Prompts{
			FactCheck: "Chat GPT is good",
			Assistant: "You are a helpful assistant.",
		}, "!")
		dispatcher := dispatch.New(session, 2000, 5*time.Millisecond)

		orch = relay.New(session, gateway, builder, dispatcher,
			classify.NewRules("!", []string{"chan-1"}),
			relay.HistoryLimits{FactCheck: 10, Thread: 50, UserScan: 100},
		)
	})

	event := func(author model.Identity, text string) model.Event {
		return model.Event{
			Message:   model.ChatMessage{ID: "msg-1", Author: author, Text: text},
			ChannelID: "chan-1",
		}
	}

	Describe("silent no-ops", func() {
		It("does nothing for bot-authored events", func() {
			err := orch.HandleEvent(ctx, event(bot, "FACT CHECK: hello"))
			Expect(err).NotTo(HaveOccurred())
			Expect(gateway.callCount()).To(BeZero())
			Expect(session.sentMessages()).To(BeEmpty())
			Expect(session.typings()).To(BeZero())
			Expect(orch.Stats().Ignored).To(Equal(int64(1)))
		})

		It("does nothing for replies to other users", func() {
			e := event(alice, "go on")
			e.ReplyTo = &model.ChatMessage{ID: "msg-0", Author: bob}
			err := orch.HandleEvent(ctx, e)
			Expect(err).NotTo(HaveOccurred())
			Expect(gateway.callCount()).To(BeZero())
			Expect(session.sentMessages()).To(BeEmpty())
		})
	})

	Describe("ask directive", func() {
		It("answers the question through the gateway", func() {
			gateway.completeFn = func(_ context.Context, _ []llm.Message) (string, error) {
				return "Go is a language.", nil
			}

			err := orch.HandleEvent(ctx, event(alice, "ASK: what is Go?"))
			Expect(err).NotTo(HaveOccurred())
			Expect(gateway.callCount()).To(Equal(1))
			Expect(session.sentMessages()).To(Equal([]string{"Go is a language."}))
			Expect(session.historyFetches()).To(BeEmpty())
		})

		It("reports an empty question without calling the gateway", func() {
			err := orch.HandleEvent(ctx, event(alice, "ASK:   "))
			Expect(err).NotTo(HaveOccurred())
			Expect(gateway.callCount()).To(BeZero())
			Expect(session.sentMessages()).To(Equal([]string{relay.EmptyQuestionReply}))
		})
	})

	Describe("channel fact check", func() {
		It("builds a chronological transcript from recent history", func() {
			// Platform order: most recent first.
			session.recentMessagesFn = func(_ context.Context, _ string, _ int) ([]model.ChatMessage, error) {
				return []model.ChatMessage{
					{ID: "3", Author: alice, Text: "third"},
					{ID: "2", Author: bob, Text: "second"},
					{ID: "1", Author: alice, Text: "first"},
				}, nil
			}

			err := orch.HandleEvent(ctx, event(alice, "FACT CHECK: is the sky blue?"))
			Expect(err).NotTo(HaveOccurred())
			Expect(gateway.callCount()).To(Equal(1))
			Expect(session.historyFetches()).To(Equal([]int{10}))

			turns := gateway.lastTranscript()
			Expect(turns).To(HaveLen(4))
			Expect(turns[0].Role).To(Equal(llm.RoleSystem))
			Expect(turns[1].Content).To(Equal("first"))
			Expect(turns[2].Content).To(Equal("second"))
			Expect(turns[3].Content).To(Equal("third"))
		})

		It("fetches the larger window for thread replies", func() {
			e := event(alice, "tell me more")
			e.ReplyTo = &model.ChatMessage{ID: "msg-0", Author: bot}

			err := orch.HandleEvent(ctx, e)
			Expect(err).NotTo(HaveOccurred())
			Expect(session.historyFetches()).To(Equal([]int{50}))
		})
	})

	Describe("mention fact check", func() {
		It("reports a missing target without calling the gateway", func() {
			e := event(alice, "is @bob serious?!")
			e.Mentions = []model.Identity{bob}

			err := orch.HandleEvent(ctx, e)
			Expect(err).NotTo(HaveOccurred())
			Expect(gateway.callCount()).To(BeZero())
			Expect(session.historyFetches()).To(Equal([]int{100}))
			Expect(session.sentMessages()).To(Equal([]string{relay.TargetNotFoundReply}))
		})

		It("fact-checks the target's latest message", func() {
			e := event(alice, "is @bob serious?!")
			e.Mentions = []model.Identity{bob}
			session.recentMessagesFn = func(_ context.Context, _ string, _ int) ([]model.ChatMessage, error) {
				return []model.ChatMessage{
					{ID: "2", Author: bob, Text: "the moon is cheese"},
					{ID: "1", Author: bob, Text: "old take"},
				}, nil
			}

			err := orch.HandleEvent(ctx, e)
			Expect(err).NotTo(HaveOccurred())
			Expect(gateway.callCount()).To(Equal(1))

			turns := gateway.lastTranscript()
			Expect(turns).To(HaveLen(2))
			Expect(turns[1].Content).To(Equal("the moon is cheese"))
		})
	})

	Describe("failure paths", func() {
		It("sends the fallback when the gateway fails", func() {
			gateway.completeFn = func(_ context.Context, _ []llm.Message) (string, error) {
				return "", errors.New("upstream exploded")
			}

			err := orch.HandleEvent(ctx, event(alice, "ASK: anything"))
			Expect(err).NotTo(HaveOccurred())
			Expect(session.sentMessages()).To(Equal([]string{dispatch.FallbackMessage}))
			Expect(orch.Stats().Failed).To(Equal(int64(1)))
		})

		It("sends the fallback when the reply is empty", func() {
			gateway.completeFn = func(_ context.Context, _ []llm.Message) (string, error) {
				return "", nil
			}

			err := orch.HandleEvent(ctx, event(alice, "ASK: anything"))
			Expect(err).NotTo(HaveOccurred())
			Expect(session.sentMessages()).To(Equal([]string{dispatch.FallbackMessage}))
		})

		It("sends the fallback when the history fetch fails", func() {
			session.recentMessagesFn = func(_ context.Context, _ string, _ int) ([]model.ChatMessage, error) {
				return nil, errors.New("platform down")
			}

			err := orch.HandleEvent(ctx, event(alice, "FACT CHECK: anything"))
			Expect(err).To(HaveOccurred())
			Expect(gateway.callCount()).To(BeZero())
			Expect(session.sentMessages()).To(Equal([]string{dispatch.FallbackMessage}))
		})
	})

	Describe("liveness symmetry", func() {
		It("stops the typing signal after the gateway settles", func() {
			gateway.completeFn = func(_ context.Context, _ []llm.Message) (string, error) {
				return "done", nil
			}

			err := orch.HandleEvent(ctx, event(alice, "ASK: quick one"))
			Expect(err).NotTo(HaveOccurred())

			after := session.typings()
			Consistently(session.typings, 30*time.Millisecond).Should(Equal(after))
		})

		It("stops the typing signal on gateway failure", func() {
			gateway.completeFn = func(_ context.Context, _ []llm.Message) (string, error) {
				return "", errors.New("boom")
			}

			err := orch.HandleEvent(ctx, event(alice, "ASK: quick one"))
			Expect(err).NotTo(HaveOccurred())

			after := session.typings()
			Consistently(session.typings, 30*time.Millisecond).Should(Equal(after))
		})
	})

	It("chunks long replies across multiple sends", func() {
		gateway.completeFn = func(_ context.Context, _ []llm.Message) (string, error) {
			return strings.Repeat("x", 4500), nil
		}

		err := orch.HandleEvent(ctx, event(alice, "ASK: write a lot"))
		Expect(err).NotTo(HaveOccurred())

		sent := session.sentMessages()
		Expect(sent).To(HaveLen(3))
		Expect(sent[0]).To(HaveLen(2000))
		Expect(sent[2]).To(HaveLen(500))
	})
})
