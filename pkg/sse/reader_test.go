package sse

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("TeeReader", func() {
	var dst *bytes.Buffer

	BeforeEach(func() {
		dst = &bytes.Buffer{}
	})

	Describe("Next", func() {
		It("parses a single event", func() {
			r := NewTeeReader(strings.NewReader("data: hello world\n\n"), dst)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Data).To(Equal("hello world"))
			Expect(ev.Type).To(BeEmpty())
			Expect(ev.ID).To(BeEmpty())

			ev, err = r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
		})

		It("parses named events", func() {
			src := strings.NewReader("event: update\ndata: {\"id\":\"a1\"}\n\nevent: memory\ndata: {\"id\":\"m1\"}\n\n")
			r := NewTeeReader(src, dst)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Type).To(Equal("update"))
			Expect(ev.Data).To(Equal(`{"id":"a1"}`))

			ev, err = r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Type).To(Equal("memory"))
		})

		It("parses event ID", func() {
			r := NewTeeReader(strings.NewReader("id: 42\ndata: x\n\n"), dst)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.ID).To(Equal("42"))
		})

		It("joins multiple data lines with newline", func() {
			r := NewTeeReader(strings.NewReader("data: line one\ndata: line two\n\n"), dst)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Data).To(Equal("line one\nline two"))
		})

		It("skips ping comments between events", func() {
			r := NewTeeReader(strings.NewReader(": ping\n\nevent: update\ndata: {}\n\n: ping\n\n"), dst)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Type).To(Equal("update"))

			ev, err = r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
		})

		It("reports comments to OnComment", func() {
			var comments []string
			r := NewTeeReader(strings.NewReader(": ping\n\n:ping\n\ndata: x\n\n"), dst)
			r.OnComment = func(text string) { comments = append(comments, text) }

			_, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(comments).To(Equal([]string{"ping", "ping"}))
		})

		It("handles data field with no space after colon", func() {
			r := NewTeeReader(strings.NewReader("data:nospace\n\n"), dst)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Data).To(Equal("nospace"))
		})

		It("yields event when stream ends without trailing blank line", func() {
			r := NewTeeReader(strings.NewReader("event: update\ndata: tail"), dst)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Data).To(Equal("tail"))
		})

		It("returns nil on input with only blank lines", func() {
			r := NewTeeReader(strings.NewReader("\n\n\n"), dst)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(BeNil())
		})

		It("accepts CRLF line endings and copies them untouched", func() {
			input := "event: update\r\ndata: x\r\n\r\n"
			r := NewTeeReader(strings.NewReader(input), dst)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Type).To(Equal("update"))
			Expect(ev.Data).To(Equal("x"))
			Expect(dst.String()).To(Equal(input))
		})

		It("rejects lines over the limit", func() {
			r := NewTeeReader(strings.NewReader("data: "+strings.Repeat("a", maxLine)+"\n\n"), dst)

			_, err := r.Next()
			Expect(err).To(MatchError(ErrLineTooLong))
		})

		It("ignores retry and unknown fields", func() {
			r := NewTeeReader(strings.NewReader("retry: 3000\nfoo: bar\ndata: x\n\n"), dst)

			ev, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Data).To(Equal("x"))
		})
	})

	Describe("tee behavior", func() {
		It("forwards all bytes including comments and delimiters to dst", func() {
			input := ": ping\n\nevent: update\ndata: {\"id\":\"a1\"}\n\n"
			r := NewTeeReader(strings.NewReader(input), dst)

			for {
				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				if ev == nil {
					break
				}
			}

			Expect(dst.String()).To(Equal(input))
		})
	})
})
