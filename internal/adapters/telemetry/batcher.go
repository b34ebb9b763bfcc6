// Package telemetry provides the tracer implementations behind ports.Tracer.
package telemetry

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

const (
	// DefaultSizeLimit is the default buffer size (4KB) if not specified.
	DefaultSizeLimit = 4096
	// DefaultTimeLimit is the default flush interval if not specified.
	DefaultTimeLimit = 250 * time.Millisecond
)

// ErrBatcherClosed is returned by writes after Close.
var ErrBatcherClosed = errors.New("log batcher is closed")

// LogBatcher groups span output into chunks of whole lines. A chunk is handed
// to onFlush once the buffer reaches sizeLimit or timeLimit elapses. A partial
// trailing line is only flushed on Close.
type LogBatcher struct {
	sizeLimit int
	timeLimit time.Duration
	onFlush   func([]byte)

	mu     sync.Mutex
	buffer bytes.Buffer
	ticker *time.Ticker
	stopCh chan struct{}
	closed bool
}

// NewLogBatcher starts a LogBatcher. Close stops its background ticker.
func NewLogBatcher(sizeLimit int, timeLimit time.Duration, onFlush func([]byte)) *LogBatcher {
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}

	b := &LogBatcher{
		sizeLimit: sizeLimit,
		timeLimit: timeLimit,
		onFlush:   onFlush,
		ticker:    time.NewTicker(timeLimit),
		stopCh:    make(chan struct{}),
	}
	go b.run()
	return b
}

// Write buffers p and flushes the complete lines once the size limit is hit.
func (b *LogBatcher) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrBatcherClosed
	}
	n, _ := b.buffer.Write(p)

	if b.buffer.Len() >= b.sizeLimit {
		if !b.flushLinesLocked() {
			// One line longer than the limit goes out whole.
			b.flushAllLocked()
		}
		b.ticker.Reset(b.timeLimit)
	}
	return n, nil
}

// Flush hands every complete buffered line to the callback.
func (b *LogBatcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.flushLinesLocked()
}

// Close stops the ticker and flushes everything, including a partial line.
func (b *LogBatcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.stopCh)
	b.flushAllLocked()
	return nil
}

func (b *LogBatcher) run() {
	for {
		select {
		case <-b.ticker.C:
			b.Flush()
		case <-b.stopCh:
			b.ticker.Stop()
			return
		}
	}
}

// flushLinesLocked must be called with mu held. It reports whether anything was flushed.
func (b *LogBatcher) flushLinesLocked() bool {
	buf := b.buffer.Bytes()
	end := bytes.LastIndexByte(buf, '\n')
	if end < 0 {
		return false
	}
	b.emit(buf[:end+1])
	b.buffer.Next(end + 1)
	return true
}

// flushAllLocked must be called with mu held.
func (b *LogBatcher) flushAllLocked() {
	if b.buffer.Len() == 0 {
		return
	}
	b.emit(b.buffer.Bytes())
	b.buffer.Reset()
}

func (b *LogBatcher) emit(data []byte) {
	if b.onFlush == nil {
		return
	}
	b.onFlush(bytes.Clone(data))
}
