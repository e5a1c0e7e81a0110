// Package cliui holds the terminal styling shared by mc commands: the
// connect spinner, check marks, key/value styles and stream event labels.
package cliui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")

	KeyStyle   = lipgloss.NewStyle().Bold(true)
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	DimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	labelStyle   = lipgloss.NewStyle().Bold(true).Width(10)
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

const spinnerInterval = 80 * time.Millisecond

// Step shows a spinner next to msg while fn runs, then rewrites the line
// with a check mark and the elapsed time. It returns fn's error.
func Step(w io.Writer, msg string, fn func() error) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()

		for frame := 0; ; frame++ {
			fmt.Fprintf(w, "\r  %s %s", spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), msg)
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(stop)
	wg.Wait()

	fmt.Fprintf(w, "\r  %s %s %s\n", Mark(err), msg, DimStyle.Render("("+FormatDuration(elapsed)+")"))
	return err
}

// Mark returns ✓ for a nil error and ✗ otherwise.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration renders short durations in milliseconds and longer ones
// in seconds, e.g. "12ms" or "3.2s".
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

var eventColors = map[string]lipgloss.Color{
	"update":   lipgloss.Color("39"),
	"approval": lipgloss.Color("214"),
	"memory":   lipgloss.Color("141"),
	"comment":  lipgloss.Color("82"),
	"error":    lipgloss.Color("196"),
}

// EventLabel renders a stream event type as a fixed-width colored label.
// Unknown types are dimmed.
func EventLabel(eventType string) string {
	color, ok := eventColors[eventType]
	if !ok {
		color = lipgloss.Color("245")
	}
	return labelStyle.Foreground(color).Render(eventType)
}
