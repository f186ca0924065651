// Package logger collapses runs of identical log lines. The monitor loop
// emits the same "no new stock arrived" line pass after pass; collapsing
// keeps the log readable without losing the repeat count.
package logger

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Deduplicator buffers the most recent message and flushes it with a count
// once a different message arrives or the flush delay passes.
type Deduplicator struct {
	mu      sync.Mutex
	last    string
	count   int
	delay   time.Duration
	pending *time.Timer
}

func NewDeduplicator(flushDelay time.Duration) *Deduplicator {
	return &Deduplicator{delay: flushDelay}
}

func (d *Deduplicator) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	d.mu.Lock()
	defer d.mu.Unlock()

	if msg != d.last {
		d.flushLocked()
		d.last = msg
	}
	d.count++
	d.rearmLocked()
}

func (d *Deduplicator) flushLocked() {
	switch {
	case d.count == 1:
		log.Print(d.last)
	case d.count > 1:
		log.Printf("%s (x%d)", d.last, d.count)
	}
	d.count = 0
	d.last = ""
}

func (d *Deduplicator) rearmLocked() {
	if d.pending != nil {
		d.pending.Stop()
	}
	d.pending = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.flushLocked()
	})
}

var std = NewDeduplicator(2 * time.Second)

// Dedup logs through the package-level deduplicator.
func Dedup(format string, args ...any) {
	std.Printf(format, args...)
}
