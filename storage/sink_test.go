package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shopmon/go-shopify-monitor/models"
	"github.com/shopmon/go-shopify-monitor/pipeline"
)

func TestScanSinkWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	store := seedStore(t, s, "Sink", "http://sink.test")
	sink := NewScanSink(s)
	require.NoError(t, sink.Validate())

	failed := &models.ScanResult{
		Success:   false,
		StoreURL:  "http://sink.test",
		Error:     "Failed to fetch products",
		Timestamp: time.Now().UTC(),
	}
	entries := []*pipeline.Entry{
		{StoreID: store.ID, Result: sampleResult(time.Now().UTC())},
		{StoreID: store.ID, Result: failed},
	}
	require.NoError(t, sink.Write(entries))

	scans, err := s.ListScans(ctx, store.ID, 10)
	require.NoError(t, err)
	require.Len(t, scans, 2)

	// History rows only come from the successful scan.
	history, err := s.ListHistory(ctx, store.ID, "111", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
}
