package testutils

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/koinonia/pkg/llm"
	"github.com/papercomputeco/koinonia/pkg/storage"
)

// DescribeDriverConformance registers the behavior every storage.Driver must
// share. newDriver is called before each spec; the returned driver is closed
// after it.
func DescribeDriverConformance(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
		DeferCleanup(func() {
			Expect(driver.Close()).To(Succeed())
		})
	})

	contents := func(msgs []*llm.Message) []string {
		out := make([]string, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, m.Role+":"+m.Content)
		}
		return out
	}

	Describe("CreateConversation", func() {
		It("creates a conversation owned by the user", func() {
			id, err := driver.CreateConversation(ctx, "u-1", "Psaume 23")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())

			conv, err := driver.GetConversation(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.ID).To(Equal(id))
			Expect(conv.UserID).To(Equal("u-1"))
			Expect(conv.Title).To(Equal("Psaume 23"))
			Expect(conv.CreatedAt).NotTo(BeZero())
		})

		It("allows an unset title", func() {
			id, err := driver.CreateConversation(ctx, "u-1", "")
			Expect(err).NotTo(HaveOccurred())

			conv, err := driver.GetConversation(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.Title).To(BeEmpty())
		})

		It("issues distinct ids", func() {
			a, err := driver.CreateConversation(ctx, "u-1", "a")
			Expect(err).NotTo(HaveOccurred())
			b, err := driver.CreateConversation(ctx, "u-1", "b")
			Expect(err).NotTo(HaveOccurred())
			Expect(a).NotTo(Equal(b))
		})
	})

	Describe("ListConversations", func() {
		It("returns only the user's conversations, most recently updated first", func() {
			older, err := driver.CreateConversation(ctx, "u-1", "older")
			Expect(err).NotTo(HaveOccurred())
			newer, err := driver.CreateConversation(ctx, "u-1", "newer")
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.CreateConversation(ctx, "u-2", "someone else")
			Expect(err).NotTo(HaveOccurred())

			time.Sleep(5 * time.Millisecond)
			Expect(driver.AppendMessage(ctx, older, llm.RoleUser, "bump")).To(Succeed())

			convs, err := driver.ListConversations(ctx, "u-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(convs).To(HaveLen(2))
			Expect(convs[0].ID).To(Equal(older))
			Expect(convs[1].ID).To(Equal(newer))
		})

		It("returns an empty list for an unknown user", func() {
			convs, err := driver.ListConversations(ctx, "nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(convs).To(BeEmpty())
		})
	})

	Describe("AppendMessage and ListMessages", func() {
		var convID string

		BeforeEach(func() {
			var err error
			convID, err = driver.CreateConversation(ctx, "u-1", "")
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns messages in insertion order", func() {
			Expect(driver.AppendMessage(ctx, convID, llm.RoleUser, "Bonjour")).To(Succeed())
			Expect(driver.AppendMessage(ctx, convID, llm.RoleAssistant, "Salut !")).To(Succeed())
			Expect(driver.AppendMessage(ctx, convID, llm.RoleUser, "Qui es-tu ?")).To(Succeed())

			msgs, err := driver.ListMessages(ctx, convID)
			Expect(err).NotTo(HaveOccurred())
			Expect(contents(msgs)).To(Equal([]string{
				"user:Bonjour",
				"assistant:Salut !",
				"user:Qui es-tu ?",
			}))
			for _, m := range msgs {
				Expect(m.ID).NotTo(BeEmpty())
				Expect(m.ConversationID).To(Equal(convID))
			}
		})

		It("keeps insertion order for many rapid appends", func() {
			for i := range 20 {
				role := llm.RoleUser
				if i%2 == 1 {
					role = llm.RoleAssistant
				}
				Expect(driver.AppendMessage(ctx, convID, role, string(rune('a'+i)))).To(Succeed())
			}

			msgs, err := driver.ListMessages(ctx, convID)
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(20))
			for i, m := range msgs {
				Expect(m.Content).To(Equal(string(rune('a' + i))))
			}
		})

		It("preserves multi-byte content exactly", func() {
			text := "Éternel, tu es mon berger 🐑\n\n  indentation  "
			Expect(driver.AppendMessage(ctx, convID, llm.RoleAssistant, text)).To(Succeed())

			msgs, err := driver.ListMessages(ctx, convID)
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs[0].Content).To(Equal(text))
		})

		It("rejects unsupported roles", func() {
			err := driver.AppendMessage(ctx, convID, llm.RoleSystem, "hidden")
			Expect(err).To(MatchError(storage.ErrInvalidMessage))
		})

		It("returns NotFoundError for a missing conversation", func() {
			err := driver.AppendMessage(ctx, "00000000-0000-0000-0000-000000000000", llm.RoleUser, "x")
			Expect(storage.IsNotFound(err)).To(BeTrue())

			_, err = driver.ListMessages(ctx, "00000000-0000-0000-0000-000000000000")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("returns an empty list for a conversation without messages", func() {
			msgs, err := driver.ListMessages(ctx, convID)
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(BeEmpty())
		})
	})

	Describe("RenameConversation", func() {
		It("replaces the title", func() {
			id, err := driver.CreateConversation(ctx, "u-1", "draft")
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.RenameConversation(ctx, id, "Jean 3:16")).To(Succeed())

			conv, err := driver.GetConversation(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.Title).To(Equal("Jean 3:16"))
		})

		It("returns NotFoundError for a missing conversation", func() {
			err := driver.RenameConversation(ctx, "00000000-0000-0000-0000-000000000000", "x")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("DeleteConversation", func() {
		It("removes the conversation and its messages", func() {
			id, err := driver.CreateConversation(ctx, "u-1", "doomed")
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.AppendMessage(ctx, id, llm.RoleUser, "x")).To(Succeed())

			Expect(driver.DeleteConversation(ctx, id)).To(Succeed())

			_, err = driver.GetConversation(ctx, id)
			Expect(storage.IsNotFound(err)).To(BeTrue())

			_, err = driver.ListMessages(ctx, id)
			Expect(storage.IsNotFound(err)).To(BeTrue())

			convs, err := driver.ListConversations(ctx, "u-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(convs).To(BeEmpty())
		})

		It("returns NotFoundError for a missing conversation", func() {
			err := driver.DeleteConversation(ctx, "00000000-0000-0000-0000-000000000000")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})
}
