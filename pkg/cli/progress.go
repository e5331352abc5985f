package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports progress of a batch evaluation.
type ProgressReporter interface {
	// Start begins a batch of total events.
	Start(total int64)
	// Record counts one finished event by its verdict action.
	Record(action string)
	Finish()
	Error(err error)
}

// NopProgress discards all progress updates.
type NopProgress struct{}

func (NopProgress) Start(int64)   {}
func (NopProgress) Record(string) {}
func (NopProgress) Finish()       {}
func (NopProgress) Error(error)   {}

// BatchProgress renders a single status line with a running tally of
// non-allow verdicts:
//
//	Evaluated [████░░░░] 50.0% (2/4) block=1 flag=0 12.5 events/s
type BatchProgress struct {
	mu      sync.Mutex
	total   int64
	done    int64
	tally   map[string]int64
	started time.Time
	writer  io.Writer
}

// NewProgressReporter creates a progress reporter that writes to w.
// If w is nil, it defaults to os.Stderr.
func NewProgressReporter(w io.Writer) *BatchProgress {
	if w == nil {
		w = os.Stderr
	}
	return &BatchProgress{writer: w, tally: make(map[string]int64)}
}

// NewTerminalProgress reports to w only when it is a terminal, so piped
// output stays clean.
func NewTerminalProgress(w io.Writer) ProgressReporter {
	if !IsTerminal(w) {
		return NopProgress{}
	}
	return NewProgressReporter(w)
}

func (p *BatchProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.done = 0
	clear(p.tally)
	p.started = time.Now()
	p.render()
}

func (p *BatchProgress) Record(action string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.tally[action]++
	p.render()
}

// Finish renders the final line and ends it.
func (p *BatchProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.render()
	fmt.Fprintln(p.writer)
}

func (p *BatchProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.writer, "\n✗ Error: %v\n", err)
}

// Count returns how many recorded events had the given action.
func (p *BatchProgress) Count(action string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tally[action]
}

const barWidth = 30

func (p *BatchProgress) render() {
	if p.total == 0 {
		return
	}

	done := min(p.done, p.total)
	filled := int(done * barWidth / p.total)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	rate := 0.0
	if elapsed := time.Since(p.started).Seconds(); elapsed > 0 {
		rate = float64(p.done) / elapsed
	}

	fmt.Fprintf(p.writer, "\rEvaluated [%s] %.1f%% (%d/%d) block=%d flag=%d %.1f events/s",
		bar, float64(done)/float64(p.total)*100, p.done, p.total,
		p.tally["block"], p.tally["flag"], rate)
}
