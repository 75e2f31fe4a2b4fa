package sse

import (
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing/iotest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// decodeAll feeds every chunk through a fresh Decoder and collects the lines.
func decodeAll(chunks ...[]byte) []string {
	d := NewDecoder()
	var lines []string
	for _, c := range chunks {
		lines = append(lines, d.Write(c)...)
	}
	d.Close()
	return lines
}

// splitAt cuts payload at the given offsets.
func splitAt(payload []byte, offsets ...int) [][]byte {
	var chunks [][]byte
	prev := 0
	for _, off := range offsets {
		chunks = append(chunks, payload[prev:off])
		prev = off
	}
	return append(chunks, payload[prev:])
}

var _ = Describe("Decoder", func() {
	const wire = "data: {\"choices\":[{\"delta\":{\"content\":\"Salut\"}}]}\n\n" +
		": keep-alive\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\" !\"}}]}\n\n" +
		"data: [DONE]\n\n"

	var expected []string

	BeforeEach(func() {
		expected = decodeAll([]byte(wire))
	})

	Describe("Write", func() {
		It("yields every complete line of a single chunk in order", func() {
			Expect(expected).To(Equal([]string{
				"data: {\"choices\":[{\"delta\":{\"content\":\"Salut\"}}]}",
				"",
				": keep-alive",
				"data: {\"choices\":[{\"delta\":{\"content\":\" !\"}}]}",
				"",
				"data: [DONE]",
				"",
			}))
		})

		It("reassembles a line split in the middle of its JSON", func() {
			line := []byte("data: {\"choices\":[{\"delta\":{\"content\":\"Bonjour\"}}]}\n")
			d := NewDecoder()

			first := d.Write(line[:20])
			Expect(first).To(BeEmpty())
			Expect(d.Buffered()).To(Equal(20))

			second := d.Write(line[20:])
			Expect(second).To(Equal([]string{"data: {\"choices\":[{\"delta\":{\"content\":\"Bonjour\"}}]}"}))
			Expect(d.Buffered()).To(BeZero())
		})

		It("strips a carriage return before the terminator", func() {
			Expect(decodeAll([]byte("data: a\r\ndata: b\r\n"))).To(Equal([]string{"data: a", "data: b"}))
		})

		It("ignores empty chunks", func() {
			d := NewDecoder()
			Expect(d.Write(nil)).To(BeNil())
			Expect(d.Write([]byte{})).To(BeNil())
		})

		It("reassembles a multi-byte rune split across chunks", func() {
			payload := []byte("data: é\n")
			// é is two bytes; cut between them.
			Expect(decodeAll(payload[:7], payload[7:])).To(Equal([]string{"data: é"}))
		})
	})

	Describe("chunk-boundary invariance", func() {
		It("yields the same lines for every single split point", func() {
			payload := []byte(wire)
			for i := 1; i < len(payload); i++ {
				Expect(decodeAll(splitAt(payload, i)...)).To(Equal(expected), "split at %d", i)
			}
		})

		It("yields the same lines when fed byte by byte", func() {
			payload := []byte(wire)
			chunks := make([][]byte, 0, len(payload))
			for i := range payload {
				chunks = append(chunks, payload[i:i+1])
			}
			Expect(decodeAll(chunks...)).To(Equal(expected))
		})

		It("yields the same lines for random chunkings", func() {
			payload := []byte(wire)
			rng := rand.New(rand.NewSource(GinkgoRandomSeed()))

			for range 200 {
				var offsets []int
				for off := rng.Intn(8) + 1; off < len(payload); off += rng.Intn(16) + 1 {
					offsets = append(offsets, off)
				}
				Expect(decodeAll(splitAt(payload, offsets...)...)).To(Equal(expected))
			}
		})
	})

	Describe("Close", func() {
		It("discards an unterminated trailing fragment", func() {
			d := NewDecoder()
			lines := d.Write([]byte("data: [DONE]\ndata: {\"choices\":"))
			Expect(lines).To(Equal([]string{"data: [DONE]"}))

			Expect(d.Close()).To(Equal(len("data: {\"choices\":")))
			Expect(d.Buffered()).To(BeZero())
		})

		It("yields nothing after close", func() {
			d := NewDecoder()
			d.Close()
			Expect(d.Write([]byte("data: late\n"))).To(BeNil())
			Expect(d.Close()).To(BeZero())
		})
	})
})

var _ = Describe("Decoder.Lines", func() {
	It("yields the lines read from an io.Reader", func() {
		r := strings.NewReader("data: a\n\ndata: [DONE]\ntrailing")

		var lines []string
		for line, err := range NewDecoder().Lines(r, 3) {
			Expect(err).NotTo(HaveOccurred())
			lines = append(lines, line)
		}

		Expect(lines).To(Equal([]string{"data: a", "", "data: [DONE]"}))
	})

	It("yields a read error and stops", func() {
		r := io.MultiReader(strings.NewReader("data: a\n"), iotest.ErrReader(errors.New("reset")))

		var (
			lines []string
			errs  []error
		)
		for line, err := range NewDecoder().Lines(r, 0) {
			if err != nil {
				errs = append(errs, err)
				continue
			}
			lines = append(lines, line)
		}

		Expect(lines).To(Equal([]string{"data: a"}))
		Expect(errs).To(HaveLen(1))
		Expect(errs[0]).To(MatchError("reset"))
	})
})
