package storage

import (
	"context"
	"fmt"

	"github.com/shopmon/go-shopify-monitor/pipeline"
)

// ScanSink adapts the store to the pipeline's ResultSink interface. The
// store's lifecycle is owned by the application root, so Close is a no-op.
type ScanSink struct {
	store *Store
}

// NewScanSink wraps a store.
func NewScanSink(store *Store) *ScanSink {
	return &ScanSink{store: store}
}

// Write persists each entry: the scan record always, history rows only for
// successful scans.
func (s *ScanSink) Write(entries []*pipeline.Entry) error {
	ctx := context.Background()
	for _, entry := range entries {
		if _, err := s.store.SaveScanResult(ctx, entry.StoreID, entry.Result); err != nil {
			return fmt.Errorf("save scan result for store %d: %w", entry.StoreID, err)
		}
		if entry.Result.Success {
			if err := s.store.SaveHistory(ctx, entry.StoreID, entry.Result); err != nil {
				return fmt.Errorf("save history for store %d: %w", entry.StoreID, err)
			}
		}
	}
	return nil
}

// Close is a no-op; the underlying store outlives the pipeline.
func (s *ScanSink) Close() error {
	return nil
}

// Validate checks database connectivity.
func (s *ScanSink) Validate() error {
	return s.store.db.Ping()
}
