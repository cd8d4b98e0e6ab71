package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar for ingestion and analysis. A disabled
// tracker accepts every call and draws nothing.
type Tracker struct {
	bar   *progressbar.ProgressBar
	label string
	w     io.Writer
}

type settings struct {
	w        io.Writer
	disabled bool
}

// Option configures a Tracker.
type Option func(*settings)

// WithWriter draws to w instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(s *settings) { s.w = w }
}

// Disabled turns the tracker into a no-op, e.g. for --quiet or non-text output.
func Disabled(disabled bool) Option {
	return func(s *settings) { s.disabled = disabled }
}

func apply(opts []Option) settings {
	s := settings{w: os.Stderr}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// NewTracker creates a progress bar with the given label and total count.
// Ingestion ticks once per unit in each of its two phases, so callers pass
// twice the unit count.
func NewTracker(label string, total int, opts ...Option) *Tracker {
	s := apply(opts)
	if s.disabled {
		return &Tracker{label: label, w: s.w}
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(s.w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, label: label, w: s.w}
}

// Tick increments the progress by 1. Safe for concurrent use.
func (t *Tracker) Tick() {
	if t.bar != nil {
		t.bar.Add(1)
	}
}

// FinishSuccess clears the bar completely (no output).
func (t *Tracker) FinishSuccess() {
	if t.bar == nil {
		return
	}
	t.bar.Finish()
	t.bar.Clear()
}

// FinishSkipped clears the bar and prints a skip message, e.g. on a cache hit.
func (t *Tracker) FinishSkipped(reason string) {
	if t.bar == nil {
		return
	}
	t.bar.Finish()
	t.bar.Clear()
	fmt.Fprintf(t.w, "  %s skipped (%s)\n", t.label, reason)
}

// FinishError clears the bar and prints an error message.
func (t *Tracker) FinishError(err error) {
	if t.bar == nil {
		return
	}
	t.bar.Finish()
	t.bar.Clear()
	fmt.Fprintf(t.w, "  %s error: %v\n", t.label, err)
}
