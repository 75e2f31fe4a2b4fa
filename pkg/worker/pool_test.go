package worker

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/koinonia/pkg/eventstream"
	testutils "github.com/papercomputeco/koinonia/pkg/utils/test"
)

func testEvent(conversationID string) *eventstream.TurnCompletedEvent {
	e := eventstream.NewTurnCompletedEvent()
	e.ConversationID = conversationID
	return e
}

var _ = Describe("Worker Pool", func() {
	var (
		wp        *Pool
		publisher *testutils.RecordingPublisher
	)

	BeforeEach(func() {
		logger, _ := zap.NewDevelopment()
		publisher = testutils.NewRecordingPublisher()

		var err error
		wp, err = NewPool(&Config{
			Publisher: publisher,
			Logger:    logger,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a publisher", func() {
		_, err := NewPool(&Config{})
		Expect(err).To(HaveOccurred())
	})

	Describe("Enqueue", func() {
		It("publishes every enqueued event before Close returns", func() {
			for _, id := range []string{"c-1", "c-2", "c-3"} {
				Expect(wp.Enqueue(Job{Event: testEvent(id)})).To(Succeed())
			}
			wp.Close()

			Expect(publisher.ConversationIDs()).To(ConsistOf("c-1", "c-2", "c-3"))
		})

		It("rejects nil events", func() {
			Expect(wp.Enqueue(Job{})).To(MatchError(eventstream.ErrNilTurnEvent))
			wp.Close()
		})

		It("rejects jobs after Close", func() {
			wp.Close()
			Expect(wp.Enqueue(Job{Event: testEvent("late")})).To(MatchError(ErrPoolClosed))
		})

		It("drops jobs when the queue is full", func() {
			blocking := testutils.NewRecordingPublisher()
			blocking.Block()

			small, err := NewPool(&Config{Publisher: blocking, NumWorkers: 1, QueueSize: 1})
			Expect(err).NotTo(HaveOccurred())

			// First job is taken by the worker and blocks, second fills the queue.
			Expect(small.Enqueue(Job{Event: testEvent("a")})).To(Succeed())
			Eventually(blocking.InFlight).Should(Equal(1))
			Expect(small.Enqueue(Job{Event: testEvent("b")})).To(Succeed())

			Expect(small.Enqueue(Job{Event: testEvent("c")})).To(MatchError(ContainSubstring("queue full")))

			blocking.Unblock()
			small.Close()
			Expect(blocking.ConversationIDs()).To(ConsistOf("a", "b"))
			wp.Close()
		})
	})

	It("keeps draining after a publish failure", func() {
		publisher.FailWith(errors.New("broker down"))
		Expect(wp.Enqueue(Job{Event: testEvent("c-1")})).To(Succeed())
		wp.Close()

		Expect(publisher.ConversationIDs()).To(BeEmpty())
		Expect(publisher.Attempts()).To(Equal(1))
	})

	It("tolerates a double Close", func() {
		wp.Close()
		wp.Close()
	})
})
