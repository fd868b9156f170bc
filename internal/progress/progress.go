// Package progress provides a unified interface for transfer progress
// reporting across CLI (progress bars) and TUI (event bus) modes.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/retribution/retctl/internal/events"
)

// Reporter is the interface for reporting progress in both CLI and TUI modes.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
}

// Factory creates a Reporter for one transfer. stage is "upload" or "download".
type Factory func(name, stage string) Reporter

// CLIProgress implements progress reporting for CLI mode using progress bars.
// It draws nothing when stderr is not a terminal.
type CLIProgress struct {
	out         io.Writer
	interactive bool
	bar         *progressbar.ProgressBar
}

// NewCLIProgress creates a new CLI progress reporter writing to stderr.
func NewCLIProgress() *CLIProgress {
	return &CLIProgress{
		out:         os.Stderr,
		interactive: term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// CLIFactory returns a Factory producing CLIProgress reporters.
func CLIFactory() Factory {
	return func(name, stage string) Reporter {
		return NewCLIProgress()
	}
}

// Start initializes the progress bar with total size and description.
// A total of -1 renders a spinner.
func (p *CLIProgress) Start(total int64, description string) {
	if !p.interactive {
		return
	}
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update updates the progress bar to the current position.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error abandons the bar so the error message starts on a clean line.
func (p *CLIProgress) Error(err error) {
	if p.bar != nil && err != nil {
		_ = p.bar.Exit()
		fmt.Fprint(p.out, "\n")
	}
}

// BusProgress implements progress reporting for the TUI using the event bus.
type BusProgress struct {
	eventBus *events.EventBus
	name     string
	stage    string

	mu    sync.Mutex
	total int64
}

// NewBusProgress creates a reporter publishing ProgressEvents for name.
func NewBusProgress(eventBus *events.EventBus, name, stage string) *BusProgress {
	return &BusProgress{eventBus: eventBus, name: name, stage: stage}
}

// BusFactory returns a Factory producing BusProgress reporters.
func BusFactory(eventBus *events.EventBus) Factory {
	return func(name, stage string) Reporter {
		return NewBusProgress(eventBus, name, stage)
	}
}

// Start publishes the initial progress event.
func (p *BusProgress) Start(total int64, description string) {
	p.mu.Lock()
	p.total = total
	p.mu.Unlock()
	p.eventBus.PublishProgress(p.name, p.stage, 0, total)
}

// Update publishes a progress update.
func (p *BusProgress) Update(current int64) {
	p.mu.Lock()
	total := p.total
	p.mu.Unlock()
	p.eventBus.PublishProgress(p.name, p.stage, current, total)
}

// Finish publishes completion.
func (p *BusProgress) Finish() {
	p.mu.Lock()
	total := p.total
	p.mu.Unlock()
	p.eventBus.PublishProgress(p.name, p.stage, total, total)
}

// Error publishes the failure as a log event; the alert itself comes from the dispatcher.
func (p *BusProgress) Error(err error) {
	if err != nil {
		p.eventBus.PublishLog(events.ErrorLevel, fmt.Sprintf("%s of %s failed", p.stage, p.name), p.stage, err)
	}
}

// NoOpProgress is a progress reporter that does nothing (for background/silent operations).
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

// NoOpFactory returns a Factory producing NoOpProgress reporters.
func NoOpFactory() Factory {
	return func(name, stage string) Reporter {
		return NewNoOpProgress()
	}
}

// Start does nothing.
func (p *NoOpProgress) Start(total int64, description string) {}

// Update does nothing.
func (p *NoOpProgress) Update(current int64) {}

// Finish does nothing.
func (p *NoOpProgress) Finish() {}

// Error does nothing.
func (p *NoOpProgress) Error(err error) {}

// ProgressReader wraps an io.Reader to report progress.
type ProgressReader struct {
	reader   io.Reader
	reporter Reporter
	current  int64
}

// NewProgressReader creates a new progress-reporting reader.
func NewProgressReader(reader io.Reader, reporter Reporter) *ProgressReader {
	return &ProgressReader{
		reader:   reader,
		reporter: reporter,
	}
}

// Read implements io.Reader interface with progress reporting.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.current += int64(n)
		pr.reporter.Update(pr.current)
	}
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (pr *ProgressReader) BytesRead() int64 {
	return pr.current
}
