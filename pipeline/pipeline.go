// Package pipeline coordinates validation, de-duplication, and persistence
// of completed scan results.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopmon/go-shopify-monitor/models"
	"github.com/shopmon/go-shopify-monitor/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// Entry couples a scan result with the store it belongs to.
type Entry struct {
	StoreID int64
	Result  *models.ScanResult
}

// ResultSink defines the interface for scan result output.
type ResultSink interface {
	Write(entries []*Entry) error
	Close() error
	Validate() error
}

// Pipeline fans completed scans out to a sink through a worker pool.
type Pipeline struct {
	sink      ResultSink
	entryCh   chan *Entry
	batchSize int

	wg sync.WaitGroup

	seen   map[string]struct{}
	seenMu sync.Mutex

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline with a modest in-memory buffer.
func NewPipeline(sink ResultSink) *Pipeline {
	return &Pipeline{
		sink:      sink,
		entryCh:   make(chan *Entry, 64),
		batchSize: 8,
		seen:      make(map[string]struct{}),
		metrics:   newMetrics(),
		shutdown:  make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues a scan result for persistence.
func (p *Pipeline) Process(entry *Entry) error {
	if entry == nil || entry.Result == nil {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	return p.enqueue(entry)
}

// Close waits for workers to finish and prevents more submissions.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
	}
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.entryCh)
	})

	p.wg.Wait()

	if err := p.sink.Close(); err != nil {
		return err
	}
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	batch := make([]*Entry, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.sink.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for entry := range p.entryCh {
		prepared := p.prepare(entry)
		if prepared == nil {
			continue
		}
		batch = append(batch, prepared)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(fmt.Errorf("write batch: %w", err))
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.setErr(fmt.Errorf("write batch: %w", err))
	}
}

func (p *Pipeline) prepare(entry *Entry) *Entry {
	if err := parser.ValidateResult(entry.Result); err != nil {
		slog.Error("dropping inconsistent scan result",
			slog.Int64("store_id", entry.StoreID),
			slog.Any("error", err),
		)
		p.metrics.addDropped("invalid_result")
		return nil
	}

	key := fmt.Sprintf("%d@%s", entry.StoreID, entry.Result.Timestamp.Format(time.RFC3339Nano))
	p.seenMu.Lock()
	if _, ok := p.seen[key]; ok {
		p.seenMu.Unlock()
		p.metrics.addDropped("duplicate_result")
		return nil
	}
	p.seen[key] = struct{}{}
	p.seenMu.Unlock()

	p.metrics.incrementProcessed()
	return entry
}

func (p *Pipeline) enqueue(entry *Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case p.entryCh <- entry:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.entryCh)
	})
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu        sync.Mutex
	processed int64
	dropped   map[string]int
}

func newMetrics() metrics {
	return metrics{
		dropped: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addDropped(kind string) {
	m.mu.Lock()
	m.dropped[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyDropped := make(map[string]int, len(m.dropped))
	for k, v := range m.dropped {
		copyDropped[k] = v
	}

	return map[string]interface{}{
		"processed_results": m.processed,
		"dropped_results":   copyDropped,
	}
}
