package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/missioncontrol/pkg/logger"
)

func decode(buf *bytes.Buffer) map[string]any {
	var parsed map[string]any
	Expect(json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed)).To(Succeed())
	return parsed
}

type failingHandler struct{}

func (failingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }
func (h failingHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h failingHandler) WithGroup(string) slog.Handler           { return h }

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("writes text records by default", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			l.Info("stream opened", "board_id", "b1")

			Expect(buf.String()).To(ContainSubstring("stream opened"))
			Expect(buf.String()).To(ContainSubstring("board_id=b1"))
		})

		It("drops debug records unless debug is on", func() {
			var quiet, loud bytes.Buffer
			logger.New(logger.WithWriter(&quiet)).Debug("poll")
			logger.New(logger.WithWriter(&loud), logger.WithDebug(true)).Debug("poll")

			Expect(quiet.String()).To(BeEmpty())
			Expect(loud.String()).To(ContainSubstring("poll"))
		})

		It("honors an explicit level", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithLevel(slog.LevelWarn))
			l.Info("hidden")
			l.Warn("shown")

			Expect(buf.String()).NotTo(ContainSubstring("hidden"))
			Expect(buf.String()).To(ContainSubstring("shown"))
		})

		It("writes JSON records", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatJSON))
			l.Info("events sent", "count", 3)

			parsed := decode(&buf)
			Expect(parsed["msg"]).To(Equal("events sent"))
			Expect(parsed["count"]).To(BeNumerically("==", 3))
		})

		It("writes pretty records", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatPretty))
			l.Info("listening")

			Expect(buf.String()).To(ContainSubstring("listening"))
		})

		It("tags records with the service name", func() {
			var buf bytes.Buffer
			l := logger.New(
				logger.WithWriter(&buf),
				logger.WithFormat(logger.FormatJSON),
				logger.WithService("mcapi"),
			)
			l.Info("started")

			Expect(decode(&buf)["service"]).To(Equal("mcapi"))
		})

		It("writes to every added writer", func() {
			var a, b bytes.Buffer
			l := logger.New(logger.WithWriter(&a), logger.WithWriter(&b))
			l.Info("both")

			Expect(a.String()).To(ContainSubstring("both"))
			Expect(b.String()).To(ContainSubstring("both"))
		})
	})

	DescribeTable("ParseFormat",
		func(in string, want logger.Format) {
			got, err := logger.ParseFormat(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("empty", "", logger.FormatText),
		Entry("text", "text", logger.FormatText),
		Entry("json", "JSON", logger.FormatJSON),
		Entry("pretty", " pretty ", logger.FormatPretty),
	)

	It("rejects unknown formats", func() {
		_, err := logger.ParseFormat("xml")
		Expect(err).To(MatchError(ContainSubstring("unknown log format")))
	})

	Describe("Nop", func() {
		It("is disabled at every level", func() {
			l := logger.Nop()
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
			Expect(func() {
				l.With("k", "v").WithGroup("g").Error("msg")
			}).NotTo(Panic())
		})
	})

	Describe("Multi", func() {
		It("dispatches to all loggers", func() {
			var text, js bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&text)),
				logger.New(logger.WithWriter(&js), logger.WithFormat(logger.FormatJSON)),
			)
			multi.Info("broadcast", "key", "val")

			Expect(text.String()).To(ContainSubstring("broadcast"))
			Expect(decode(&js)["key"]).To(Equal("val"))
		})

		It("respects each logger's level", func() {
			var info, debug bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&info)),
				logger.New(logger.WithWriter(&debug), logger.WithDebug(true)),
			)
			multi.Debug("tick")

			Expect(info.String()).To(BeEmpty())
			Expect(debug.String()).To(ContainSubstring("tick"))
		})

		It("carries attrs and groups through", func() {
			var buf bytes.Buffer
			multi := logger.Multi(logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatJSON)))
			multi.With("component", "stream").WithGroup("request").Info("done", "method", "GET")

			parsed := decode(&buf)
			Expect(parsed["component"]).To(Equal("stream"))
			group, ok := parsed["request"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(group["method"]).To(Equal("GET"))
		})

		It("keeps writing when one handler fails", func() {
			var buf bytes.Buffer
			h := slog.New(failingHandler{})
			multi := logger.Multi(h, logger.New(logger.WithWriter(&buf)))

			multi.Info("still here")
			Expect(buf.String()).To(ContainSubstring("still here"))

			err := multi.Handler().Handle(context.Background(), slog.Record{})
			Expect(err).To(MatchError("disk full"))
		})

		It("returns a nop logger with nothing to wrap", func() {
			multi := logger.Multi(nil)
			Expect(multi.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
		})
	})
})
