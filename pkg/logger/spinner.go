package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Spinner represents an animated spinner for long-running operations
type Spinner struct {
	mu       sync.Mutex
	active   bool
	message  string
	frames   []string
	interval time.Duration
	stopChan chan struct{}
	done     chan struct{}
}

// Spinner frame sets
var (
	SpinnerDots  = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	SpinnerLine  = []string{"-", "\\", "|", "/"}
	SpinnerRadar = []string{"◐", "◓", "◑", "◒"}
)

// NewSpinner creates a new spinner with the default frames
func NewSpinner(message string) *Spinner {
	return NewSpinnerWithFrames(message, SpinnerDots)
}

// NewSpinnerWithFrames creates a new spinner with custom frames
func NewSpinnerWithFrames(message string, frames []string) *Spinner {
	return &Spinner{
		message:  message,
		frames:   frames,
		interval: 100 * time.Millisecond,
	}
}

// Start starts the spinner animation
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()
			frame := s.frames[i%len(s.frames)]
			if colorEnabled() {
				fmt.Printf("\r%s%s%s %s", colorCyan, frame, colorReset, msg)
			} else {
				fmt.Printf("\r%s %s", frame, msg)
			}
			select {
			case <-stop:
				fmt.Printf("\r%s\r", strings.Repeat(" ", len(msg)+10))
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop stops the spinner and waits for the line to be cleared
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}

// Success stops the spinner and shows a success message
func (s *Spinner) Success(message string) {
	s.Stop()
	Success(message)
}

// Error stops the spinner and shows an error message
func (s *Spinner) Error(message string) {
	s.Stop()
	Error(message)
}

// UpdateMessage updates the spinner message
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// WithSpinner runs a function with a spinner
func WithSpinner(message string, fn func() error) error {
	spinner := NewSpinner(message)
	spinner.Start()

	err := fn()

	if err != nil {
		spinner.Error(fmt.Sprintf("%s failed: %v", message, err))
	} else {
		spinner.Success(fmt.Sprintf("%s completed", message))
	}

	return err
}

// ProgressBar renders a fraction in [0,1] with a trailing status line.
// Safe for use from a run goroutine while the caller reads it.
type ProgressBar struct {
	mu      sync.Mutex
	writer  io.Writer
	width   int
	message string
	percent float64
	detail  string
}

// NewProgressBar creates a new progress bar on stdout
func NewProgressBar(message string) *ProgressBar {
	return &ProgressBar{writer: os.Stdout, width: 40, message: message}
}

// SetWriter redirects rendering, mostly for tests
func (p *ProgressBar) SetWriter(w io.Writer) {
	p.mu.Lock()
	p.writer = w
	p.mu.Unlock()
}

// Update sets the completed fraction and an optional detail string
func (p *ProgressBar) Update(fraction float64, detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.percent = min(max(fraction, 0), 1)
	p.detail = detail
	p.draw()
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.percent = 1
	p.draw()
	fmt.Fprintln(p.writer)
}

func (p *ProgressBar) draw() {
	filled := int(p.percent * float64(p.width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)

	if colorEnabled() {
		fmt.Fprintf(p.writer, "\r%s: %s%s%s %3.0f%% %s",
			p.message, colorGreen, bar, colorReset, p.percent*100, p.detail)
	} else {
		fmt.Fprintf(p.writer, "\r%s: [%s] %3.0f%% %s", p.message, bar, p.percent*100, p.detail)
	}
}
