package dispatch_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"parley.app/bot/internal/dispatch"
)

var _ = Describe("Chunk", func() {
	It("returns no chunks for an empty reply", func() {
		Expect(dispatch.Chunk("", 2000)).To(BeEmpty())
	})

	It("returns one chunk when the reply fits", func() {
		Expect(dispatch.Chunk("short", 2000)).To(Equal([]string{"short"}))
	})

	It("reconstructs the reply exactly when concatenated", func() {
		reply := strings.Repeat("abcde", 1001) // 5005 chars
		chunks := dispatch.Chunk(reply, 2000)
		Expect(strings.Join(chunks, "")).To(Equal(reply))
	})

	It("makes every chunk except the last exactly the limit", func() {
		reply := strings.Repeat("x", 4500)
		chunks := dispatch.Chunk(reply, 2000)
		Expect(chunks).To(HaveLen(3))
		Expect(chunks[0]).To(HaveLen(2000))
		Expect(chunks[1]).To(HaveLen(2000))
		Expect(chunks[2]).To(HaveLen(500))
	})

	It("keeps a reply of exactly the limit in one chunk", func() {
		reply := strings.Repeat("x", 2000)
		Expect(dispatch.Chunk(reply, 2000)).To(HaveLen(1))
	})
})

var _ = Describe("Dispatcher", func() {
	var (
		session *mockSession
		d       *dispatch.Dispatcher
		ctx     context.Context
	)

	BeforeEach(func() {
		session = &mockSession{}
		d = dispatch.New(session, 10, 5*time.Millisecond)
		ctx = context.Background()
	})

	Describe("Dispatch", func() {
		It("sends chunks in order", func() {
			err := d.Dispatch(ctx, "chan-1", "0123456789abcdefghij!")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.sentMessages()).To(Equal([]string{"0123456789", "abcdefghij", "!"}))
		})

		It("sends the fallback for an empty reply", func() {
			err := d.Dispatch(ctx, "chan-1", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.sentMessages()).To(Equal([]string{dispatch.FallbackMessage}))
		})

		It("stops at the first failed send", func() {
			calls := 0
			session.sendFn = func(_ context.Context, _, _ string) error {
				calls++
				if calls == 2 {
					return errors.New("boom")
				}
				return nil
			}

			err := d.Dispatch(ctx, "chan-1", "0123456789abcdefghij")
			Expect(err).To(HaveOccurred())
			Expect(calls).To(Equal(2))
		})
	})

	Describe("SendFallback", func() {
		It("delivers the fixed failure message", func() {
			Expect(d.SendFallback(ctx, "chan-1")).To(Succeed())
			Expect(session.sentMessages()).To(Equal([]string{dispatch.FallbackMessage}))
		})
	})

	Describe("StartTyping", func() {
		It("signals immediately and then periodically until stopped", func() {
			typing := d.StartTyping(ctx, "chan-1")
			Eventually(session.typings).Should(BeNumerically(">=", 3))
			typing.Stop()

			after := session.typings()
			Consistently(session.typings, 30*time.Millisecond).Should(Equal(after))
		})

		It("tolerates repeated stops", func() {
			typing := d.StartTyping(ctx, "chan-1")
			typing.Stop()
			Expect(typing.Stop).NotTo(Panic())
		})

		It("keeps signaling even when an indicator send fails", func() {
			session.typingFn = func(_ context.Context, _ string) error {
				return errors.New("rate limited")
			}

			typing := d.StartTyping(ctx, "chan-1")
			Eventually(session.typings).Should(BeNumerically(">=", 2))
			typing.Stop()
		})
	})
})
