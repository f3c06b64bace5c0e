// Package progress renders run progress for the command line.
package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Reporter matches runner.Reporter.
type Reporter interface {
	Report(current, total int)
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	countStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Terminal draws a single-line progress bar, redrawn in place.
type Terminal struct {
	mu    sync.Mutex
	w     io.Writer
	label string
	bar   bprogress.Model
}

// NewTerminal returns a bar writing to w, prefixed with label.
func NewTerminal(w io.Writer, label string, width int) *Terminal {
	if width <= 0 {
		width = 40
	}
	return &Terminal{
		w:     w,
		label: label,
		bar:   bprogress.New(bprogress.WithDefaultGradient(), bprogress.WithWidth(width)),
	}
}

func (t *Terminal) Report(current, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pct := 0.0
	if total > 0 {
		pct = float64(current) / float64(total)
	}
	line := fmt.Sprintf("\r%s %s %s",
		labelStyle.Render(t.label),
		t.bar.ViewAs(pct),
		countStyle.Render(fmt.Sprintf("%d/%d", current, total)),
	)
	if current >= total {
		line += "\n"
	}
	_, _ = io.WriteString(t.w, line)
}

// Log reports progress as structured log records.
type Log struct {
	logger *slog.Logger
	level  slog.Level
	attrs  []any
}

// NewLog returns a reporter logging at info level with the given attributes.
func NewLog(logger *slog.Logger, attrs ...any) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger, level: slog.LevelInfo, attrs: attrs}
}

// AtLevel sets the level progress records are logged at.
func (l *Log) AtLevel(level slog.Level) *Log {
	l.level = level
	return l
}

func (l *Log) Report(current, total int) {
	args := append([]any{"current", current, "total", total}, l.attrs...)
	l.logger.Log(context.Background(), l.level, "progress", args...)
}

// Multi forwards every report to each of its reporters in order.
type Multi []Reporter

func (m Multi) Report(current, total int) {
	for _, r := range m {
		r.Report(current, total)
	}
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ForStderr returns the reporter for one run. On an interactive stderr it
// draws a bar and keeps the progress records at debug level; otherwise it
// logs them at info level. attrs tag the records.
func ForStderr(label string, logger *slog.Logger, attrs ...any) Reporter {
	return forFile(os.Stderr, label, logger, attrs...)
}

func forFile(f *os.File, label string, logger *slog.Logger, attrs ...any) Reporter {
	if IsTerminal(f) {
		return Multi{NewTerminal(f, label, 0), NewLog(logger, attrs...).AtLevel(slog.LevelDebug)}
	}
	return NewLog(logger, attrs...)
}
