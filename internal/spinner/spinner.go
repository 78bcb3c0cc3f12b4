// Package spinner draws a one line terminal activity indicator.
package spinner

import (
	"fmt"
	"io"
)

// braille arrow frames
var frames = []string{
	"⣀⣀", "⣄⣀", "⣤⣀", "⣦⣄", "⣶⣤", "⣿⣦", "⣿⣷", "⣿⣿",
	"⣿⣿", "⣷⣿", "⣦⣿", "⣤⣷", "⣄⣦", "⣀⣤", "⣀⣄", "⣀⣀",
}

// Spinner writes successive frames over the same line of w.
// It is not safe for concurrent use.
type Spinner struct {
	w      io.Writer
	index  int
	hidden bool
}

// New returns a spinner drawing on w.
func New(w io.Writer) *Spinner {
	return &Spinner{w: w}
}

// Update draws the next frame followed by label.
func (s *Spinner) Update(label string) {
	if !s.hidden {
		fmt.Fprint(s.w, "\033[?25l")
		s.hidden = true
	}
	fmt.Fprintf(s.w, "\r\033[K%s %s", frames[s.index], label)
	s.index = (s.index + 1) % len(frames)
}

// Frame returns the frame the next Update will draw.
func (s *Spinner) Frame() string {
	return frames[s.index]
}

// Cleanup clears the line and restores the cursor.
func (s *Spinner) Cleanup() {
	fmt.Fprint(s.w, "\r\033[K")
	if s.hidden {
		fmt.Fprint(s.w, "\033[?25h")
		s.hidden = false
	}
}
