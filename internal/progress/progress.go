// Package progress provides a unified interface for progress reporting
// across the terminal (progress bars) and embedding hosts (event bus).
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/tagview/tagview/internal/events"
)

// Reporter is the interface for reporting progress of a counted operation.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// CLIProgress implements progress reporting with a terminal progress bar.
type CLIProgress struct {
	bar *progressbar.ProgressBar
	out io.Writer
}

// NewCLIProgress creates a new CLI progress reporter writing to stderr.
func NewCLIProgress() *CLIProgress {
	return &CLIProgress{out: os.Stderr}
}

// NewCLIProgressTo creates a CLI progress reporter writing to w.
func NewCLIProgressTo(w io.Writer) *CLIProgress {
	return &CLIProgress{out: w}
}

// Start initializes the progress bar with total item count and description.
func (p *CLIProgress) Start(total int64, description string) {
	out := p.out
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
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

// Error displays an error message.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// SetDescription updates the progress bar description.
func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// BusProgress implements progress reporting by publishing events.
type BusProgress struct {
	eventBus  *events.EventBus
	operation string

	mu      sync.Mutex
	stage   string
	total   int64
	current int64
}

// NewBusProgress creates a progress reporter that publishes to eventBus.
func NewBusProgress(eventBus *events.EventBus, operation string) *BusProgress {
	return &BusProgress{
		eventBus:  eventBus,
		operation: operation,
	}
}

// Start initializes progress tracking.
func (p *BusProgress) Start(total int64, description string) {
	p.mu.Lock()
	p.total = total
	p.current = 0
	p.stage = description
	p.mu.Unlock()
	p.eventBus.PublishProgress(p.operation, description, 0, total, "")
}

// Update publishes a progress update.
func (p *BusProgress) Update(current int64) {
	p.mu.Lock()
	p.current = current
	stage, total := p.stage, p.total
	p.mu.Unlock()
	p.eventBus.PublishProgress(p.operation, stage, current, total, "")
}

// Finish publishes completion.
func (p *BusProgress) Finish() {
	p.mu.Lock()
	stage, total := p.stage, p.total
	p.current = total
	p.mu.Unlock()
	p.eventBus.PublishProgress(p.operation, stage, total, total, "done")
}

// Error publishes an error log event.
func (p *BusProgress) Error(err error) {
	if err != nil {
		p.eventBus.PublishLog(events.ErrorLevel, err.Error(), p.operation, err)
	}
}

// SetDescription updates the stage description.
func (p *BusProgress) SetDescription(desc string) {
	p.mu.Lock()
	p.stage = desc
	current, total := p.current, p.total
	p.mu.Unlock()
	p.eventBus.PublishProgress(p.operation, desc, current, total, "")
}

// NoOpProgress is a progress reporter that does nothing (for background/silent operations).
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

// Start does nothing.
func (p *NoOpProgress) Start(total int64, description string) {}

// Update does nothing.
func (p *NoOpProgress) Update(current int64) {}

// Finish does nothing.
func (p *NoOpProgress) Finish() {}

// Error does nothing.
func (p *NoOpProgress) Error(err error) {}

// SetDescription does nothing.
func (p *NoOpProgress) SetDescription(desc string) {}
