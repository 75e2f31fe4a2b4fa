package stream_test

import (
	"context"
	"errors"
	"io"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/koinonia/pkg/stream"
)

var _ = Describe("Session", func() {
	var (
		ctx       context.Context
		snapshots []string
		counts    []int
	)

	record := stream.WithListener(func(snapshot string, count int) {
		snapshots = append(snapshots, snapshot)
		counts = append(counts, count)
	})

	BeforeEach(func() {
		ctx = context.Background()
		snapshots = nil
		counts = nil
	})

	It("starts idle with a unique identity", func() {
		a := stream.NewSession(&fakeTransport{})
		b := stream.NewSession(&fakeTransport{})

		Expect(a.State()).To(Equal(stream.StateIdle))
		Expect(a.ID()).NotTo(BeEmpty())
		Expect(a.ID()).NotTo(Equal(b.ID()))
	})

	Describe("happy path", func() {
		It("completes with the concatenated deltas", func() {
			body := newChunkReader(deltaLine("Salut"), deltaLine(" !"), doneLine)
			session := stream.NewSession(&fakeTransport{body: body}, record)

			res := session.Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateCompleted))
			Expect(res.Content).To(Equal("Salut !"))
			Expect(res.Deltas).To(Equal(2))
			Expect(res.Partial).To(BeFalse())
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(res.SessionID).To(Equal(session.ID()))

			Expect(snapshots).To(Equal([]string{"Salut", "Salut !"}))
			Expect(counts).To(Equal([]int{1, 2}))

			Expect(session.State()).To(Equal(stream.StateCompleted))
			Expect(session.Done()).To(BeClosed())
			Expect(body.closed.Load()).To(BeTrue())
		})

		It("reassembles an event split mid-JSON across chunks", func() {
			first := deltaLine("Salut")
			body := newChunkReader(first[:20], first[20:], deltaLine(" !"), doneLine)
			session := stream.NewSession(&fakeTransport{body: body}, record)

			res := session.Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateCompleted))
			Expect(res.Content).To(Equal("Salut !"))
			Expect(counts).To(Equal([]int{1, 2}))
		})

		It("ignores comments, role-only chunks and other fields", func() {
			body := newChunkReader(
				": keep-alive\n\n",
				`data: {"choices":[{"delta":{"role":"assistant"}}]}`+"\n\n",
				"event: ping\n",
				deltaLine("Amen"),
				`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`+"\n\n",
				doneLine,
			)
			res := stream.NewSession(&fakeTransport{body: body}).Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateCompleted))
			Expect(res.Content).To(Equal("Amen"))
			Expect(res.Deltas).To(Equal(1))
			Expect(res.FinishReason).To(Equal("stop"))
		})

		It("ignores everything after the terminator", func() {
			body := newChunkReader(deltaLine("Fin") + doneLine + deltaLine(" tardive"))
			res := stream.NewSession(&fakeTransport{body: body}, record).Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateCompleted))
			Expect(res.Content).To(Equal("Fin"))
			Expect(snapshots).To(Equal([]string{"Fin"}))
		})

		It("treats a clean end of body as the terminator and drops the trailing fragment", func() {
			body := newChunkReader(deltaLine("Grâce"), `data: {"choices":[{"delta":{"content":"x`)
			res := stream.NewSession(&fakeTransport{body: body}).Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateCompleted))
			Expect(res.Content).To(Equal("Grâce"))
			Expect(res.Partial).To(BeFalse())
		})

		It("completes with empty content when the stream carries no delta", func() {
			res := stream.NewSession(&fakeTransport{body: newChunkReader(doneLine)}).Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateCompleted))
			Expect(res.Content).To(BeEmpty())
		})
	})

	Describe("malformed payloads", func() {
		It("keeps the content accumulated before a malformed event", func() {
			body := newChunkReader(
				deltaLine("Bon"),
				deltaLine("jour"),
				`data: {"choices":[{"delta":{"content":"oops`+"\n\n",
				deltaLine(" jamais lu"),
				doneLine,
			)
			res := stream.NewSession(&fakeTransport{body: body}, record).Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateCompleted))
			Expect(res.Content).To(Equal("Bonjour"))
			Expect(res.Partial).To(BeTrue())
			Expect(res.Err).To(MatchError(stream.ErrMalformedPayload))
			Expect(snapshots).To(Equal([]string{"Bon", "Bonjour"}))
		})

		It("fails when the first payload is malformed", func() {
			body := newChunkReader("data: {not json}\n\n", deltaLine("never"))
			res := stream.NewSession(&fakeTransport{body: body}).Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateFailed))
			Expect(res.Content).To(BeEmpty())
			Expect(res.Err).To(MatchError(stream.ErrMalformedPayload))
			Expect(res.Reason).NotTo(BeEmpty())
		})
	})

	Describe("in-band provider errors", func() {
		It("keeps streaming after an error object", func() {
			body := newChunkReader(
				`data: {"error":{"message":"rate limited, retrying"}}`+"\n\n",
				deltaLine("Salut"),
				deltaLine(" !"),
				doneLine,
			)
			res := stream.NewSession(&fakeTransport{body: body}).Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateCompleted))
			Expect(res.Content).To(Equal("Salut !"))
			Expect(res.Partial).To(BeFalse())
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(res.ProviderErrors).To(Equal([]string{"rate limited, retrying"}))
		})

		It("completes empty when only an error object arrives", func() {
			body := newChunkReader(`data: {"error":{"message":"model overloaded"}}` + "\n\n")
			res := stream.NewSession(&fakeTransport{body: body}).Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateCompleted))
			Expect(res.Content).To(BeEmpty())
			Expect(res.ProviderErrors).To(Equal([]string{"model overloaded"}))
		})

		It("keeps the deltas around an error object", func() {
			body := newChunkReader(deltaLine("Paix"), `data: {"error":{"message":"overloaded"}}`+"\n\n", deltaLine(" sur vous"), doneLine)
			res := stream.NewSession(&fakeTransport{body: body}).Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateCompleted))
			Expect(res.Content).To(Equal("Paix sur vous"))
			Expect(res.Deltas).To(Equal(2))
		})
	})

	Describe("transport failures", func() {
		It("fails without opening when unauthenticated", func() {
			tr := &fakeTransport{err: stream.ErrUnauthenticated}
			session := stream.NewSession(tr)

			res := session.Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateFailed))
			Expect(res.Err).To(MatchError(stream.ErrUnauthenticated))
			Expect(session.State()).To(Equal(stream.StateFailed))
		})

		It("fails on a non-2xx status", func() {
			tr := &fakeTransport{err: &stream.StatusError{Code: 503, Body: "unavailable"}}
			res := stream.NewSession(tr).Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateFailed))

			var serr *stream.StatusError
			Expect(errors.As(res.Err, &serr)).To(BeTrue())
			Expect(serr.Code).To(Equal(503))
			Expect(res.Reason).To(ContainSubstring("503"))
		})

		It("fails on a read error before any content", func() {
			body := &errAfterReader{chunkReader: newChunkReader(": hello\n"), err: errors.New("connection reset")}
			res := stream.NewSession(&fakeTransport{body: body}).Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateFailed))
			Expect(res.Err).To(MatchError("connection reset"))
		})

		It("keeps partial content on a read error after content", func() {
			body := &errAfterReader{chunkReader: newChunkReader(deltaLine("Shalom")), err: errors.New("connection reset")}
			res := stream.NewSession(&fakeTransport{body: body}).Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateCompleted))
			Expect(res.Content).To(Equal("Shalom"))
			Expect(res.Partial).To(BeTrue())
		})

		It("fails an empty request without opening", func() {
			tr := &fakeTransport{}
			res := stream.NewSession(tr).Run(ctx, stream.Request{Model: "m"})

			Expect(res.State).To(Equal(stream.StateFailed))
			Expect(res.Err).To(MatchError(stream.ErrInvalidRequest))
			Expect(tr.Opened()).To(BeZero())
		})
	})

	Describe("idle timeout", func() {
		It("fails when the stream stays silent", func() {
			pr, pw := io.Pipe()
			DeferCleanup(func() { _ = pw.Close() })

			session := stream.NewSession(&fakeTransport{body: pr}, stream.WithIdleTimeout(50*time.Millisecond))
			res := session.Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateFailed))
			Expect(res.Err).To(MatchError(stream.ErrIdleTimeout))
		})

		It("keeps partial content when the stream stalls", func() {
			pr, pw := io.Pipe()
			DeferCleanup(func() { _ = pw.Close() })

			go func() {
				_, _ = io.WriteString(pw, deltaLine("Alléluia"))
			}()

			session := stream.NewSession(&fakeTransport{body: pr}, stream.WithIdleTimeout(100*time.Millisecond))
			res := session.Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateCompleted))
			Expect(res.Content).To(Equal("Alléluia"))
			Expect(res.Partial).To(BeTrue())
			Expect(res.Err).To(MatchError(stream.ErrIdleTimeout))
		})

		It("covers a transport that never answers", func() {
			res := stream.NewSession(blockingTransport{}, stream.WithIdleTimeout(50*time.Millisecond)).Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateFailed))
			Expect(res.Err).To(MatchError(stream.ErrIdleTimeout))
		})
	})

	Describe("cancellation", func() {
		It("aborts mid-stream and discards the content", func() {
			pr, pw := io.Pipe()

			var session *stream.Session
			session = stream.NewSession(&fakeTransport{body: pr}, stream.WithListener(func(snapshot string, count int) {
				snapshots = append(snapshots, snapshot)
				if count == 1 {
					session.Cancel()
				}
			}))

			go func() {
				_, _ = io.WriteString(pw, deltaLine("Bon"))
				_, _ = io.WriteString(pw, deltaLine("jour"))
				_, _ = io.WriteString(pw, doneLine)
				_ = pw.Close()
			}()

			res := session.Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateAborted))
			Expect(res.Content).To(BeEmpty())
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(snapshots).To(Equal([]string{"Bon"}))
			Expect(session.State()).To(Equal(stream.StateAborted))
		})

		It("unblocks a pending read", func() {
			pr, pw := io.Pipe()
			DeferCleanup(func() { _ = pw.Close() })

			go func() {
				_, _ = io.WriteString(pw, deltaLine("Bon"))
			}()

			session := stream.NewSession(&fakeTransport{body: pr}, stream.WithIdleTimeout(0))
			results := make(chan stream.Result, 1)
			go func() {
				results <- session.Run(ctx, testRequest())
			}()

			Eventually(session.Snapshot).Should(Equal("Bon"))
			Expect(session.State()).To(Equal(stream.StateOpen))

			session.Cancel()

			var res stream.Result
			Eventually(results).Should(Receive(&res))
			Expect(res.State).To(Equal(stream.StateAborted))
			Expect(res.Content).To(BeEmpty())
			Expect(session.Done()).To(BeClosed())
		})

		It("aborts before opening when canceled first", func() {
			tr := &fakeTransport{body: newChunkReader(deltaLine("x"), doneLine)}
			session := stream.NewSession(tr)
			session.Cancel()

			res := session.Run(ctx, testRequest())

			Expect(res.State).To(Equal(stream.StateAborted))
			Expect(tr.Opened()).To(BeZero())
		})

		It("aborts while the transport is opening", func() {
			session := stream.NewSession(blockingTransport{})
			results := make(chan stream.Result, 1)
			go func() {
				results <- session.Run(ctx, testRequest())
			}()

			Consistently(session.Done(), 50*time.Millisecond).ShouldNot(BeClosed())
			session.Cancel()

			var res stream.Result
			Eventually(results).Should(Receive(&res))
			Expect(res.State).To(Equal(stream.StateAborted))
		})

		It("aborts when the parent context is canceled", func() {
			pr, pw := io.Pipe()
			DeferCleanup(func() { _ = pw.Close() })

			parent, cancel := context.WithCancel(ctx)
			go func() {
				_, _ = io.WriteString(pw, deltaLine("Bon"))
				cancel()
			}()

			res := stream.NewSession(&fakeTransport{body: pr}).Run(parent, testRequest())
			Expect(res.State).To(Equal(stream.StateAborted))
		})

		It("is a no-op after completion", func() {
			session := stream.NewSession(&fakeTransport{body: newChunkReader(deltaLine("a"), doneLine)})
			res := session.Run(ctx, testRequest())

			session.Cancel()
			session.Cancel()

			Expect(res.State).To(Equal(stream.StateCompleted))
			Expect(session.State()).To(Equal(stream.StateCompleted))
			Expect(session.Snapshot()).To(Equal("a"))
		})
	})

	It("refuses to run twice", func() {
		tr := &fakeTransport{body: newChunkReader(deltaLine("a"), doneLine)}
		session := stream.NewSession(tr)
		session.Run(ctx, testRequest())

		res := session.Run(ctx, testRequest())
		Expect(res.Err).To(MatchError(stream.ErrSessionReused))
		Expect(res.State).To(Equal(stream.StateCompleted))
		Expect(tr.Opened()).To(Equal(1))
	})
})

var _ = Describe("State", func() {
	DescribeTable("String and Terminal",
		func(s stream.State, name string, terminal bool) {
			Expect(s.String()).To(Equal(name))
			Expect(s.Terminal()).To(Equal(terminal))
		},
		Entry("idle", stream.StateIdle, "idle", false),
		Entry("open", stream.StateOpen, "open", false),
		Entry("completed", stream.StateCompleted, "completed", true),
		Entry("aborted", stream.StateAborted, "aborted", true),
		Entry("failed", stream.StateFailed, "failed", true),
	)
})
