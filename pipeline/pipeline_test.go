package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopmon/go-shopify-monitor/models"
)

type captureSink struct {
	mu       sync.Mutex
	entries  []*Entry
	closed   bool
	writeErr error
}

func (s *captureSink) Write(entries []*Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *captureSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) Validate() error { return nil }

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func validEntry(storeID int64, ts time.Time) *Entry {
	return &Entry{
		StoreID: storeID,
		Result: &models.ScanResult{
			Success:   true,
			StoreURL:  "http://example-store.test",
			Timestamp: ts,
		},
	}
}

func TestPipelineWritesEntries(t *testing.T) {
	sink := &captureSink{}
	p := NewPipeline(sink)
	p.Start(2)

	base := time.Now().UTC()
	for i := 0; i < 20; i++ {
		if err := p.Process(validEntry(int64(i), base.Add(time.Duration(i)*time.Millisecond))); err != nil {
			t.Fatalf("Process returned error: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	if got := sink.count(); got != 20 {
		t.Fatalf("sink received %d entries, want 20", got)
	}
	if !sink.closed {
		t.Fatal("sink was not closed")
	}
}

func TestPipelineDropsDuplicates(t *testing.T) {
	sink := &captureSink{}
	p := NewPipeline(sink)
	p.Start(1)

	ts := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if err := p.Process(validEntry(7, ts)); err != nil {
			t.Fatalf("Process returned error: %v", err)
		}
	}
	// Same timestamp but different store is not a duplicate.
	if err := p.Process(validEntry(8, ts)); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	if got := sink.count(); got != 2 {
		t.Fatalf("sink received %d entries, want 2", got)
	}
	metrics := p.GetMetrics()
	dropped := metrics["dropped_results"].(map[string]int)
	if dropped["duplicate_result"] != 2 {
		t.Fatalf("duplicate_result = %d, want 2", dropped["duplicate_result"])
	}
}

func TestPipelineDropsInvalidResults(t *testing.T) {
	sink := &captureSink{}
	p := NewPipeline(sink)
	p.Start(1)

	// Failed scan with no error message violates the result contract.
	entry := &Entry{
		StoreID: 1,
		Result: &models.ScanResult{
			Success:   false,
			Timestamp: time.Now().UTC(),
		},
	}
	if err := p.Process(entry); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	if got := sink.count(); got != 0 {
		t.Fatalf("sink received %d entries, want 0", got)
	}
	metrics := p.GetMetrics()
	dropped := metrics["dropped_results"].(map[string]int)
	if dropped["invalid_result"] != 1 {
		t.Fatalf("invalid_result = %d, want 1", dropped["invalid_result"])
	}
}

func TestPipelineRejectsAfterClose(t *testing.T) {
	p := NewPipeline(&captureSink{})
	p.Start(1)
	if err := p.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	err := p.Process(validEntry(1, time.Now().UTC()))
	if !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("Process after close = %v, want ErrPipelineClosed", err)
	}
}

func TestPipelineSurfacesSinkError(t *testing.T) {
	sinkErr := errors.New("disk full")
	sink := &captureSink{writeErr: sinkErr}
	p := NewPipeline(sink)
	p.Start(1)

	if err := p.Process(validEntry(1, time.Now().UTC())); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	err := p.Close()
	if err == nil || !errors.Is(err, sinkErr) {
		t.Fatalf("Close = %v, want wrapped sink error", err)
	}
}

func TestPipelineNilEntriesIgnored(t *testing.T) {
	sink := &captureSink{}
	p := NewPipeline(sink)
	p.Start(1)

	if err := p.Process(nil); err != nil {
		t.Fatalf("Process(nil) returned error: %v", err)
	}
	if err := p.Process(&Entry{StoreID: 1}); err != nil {
		t.Fatalf("Process with nil result returned error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if got := sink.count(); got != 0 {
		t.Fatalf("sink received %d entries, want 0", got)
	}
}
