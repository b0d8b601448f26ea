package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ArchiveWriter appends scan results to a newline-delimited JSON file, one
// record per completed scan.
type ArchiveWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

type archiveRecord struct {
	StoreID int64       `json:"store_id"`
	Result  interface{} `json:"result"`
}

// NewArchiveWriter opens (or creates) the archive file for appending.
func NewArchiveWriter(filename string) (*ArchiveWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open archive file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &ArchiveWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends entries in JSONL format.
func (aw *ArchiveWriter) Write(entries []*Entry) error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	for _, entry := range entries {
		record := archiveRecord{StoreID: entry.StoreID, Result: entry.Result}
		if err := aw.encoder.Encode(record); err != nil {
			return fmt.Errorf("encode archive record: %w", err)
		}
	}

	if err := aw.writer.Flush(); err != nil {
		return fmt.Errorf("flush archive writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (aw *ArchiveWriter) Close() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if err := aw.writer.Flush(); err != nil {
		return fmt.Errorf("flush archive writer: %w", err)
	}
	return aw.file.Close()
}

// Validate ensures the archive file is reachable.
func (aw *ArchiveWriter) Validate() error {
	if _, err := aw.file.Stat(); err != nil {
		return fmt.Errorf("stat archive file: %w", err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

// DualSink writes every entry to two sinks, typically the database and a
// JSONL archive.
type DualSink struct {
	primary   ResultSink
	secondary ResultSink
}

// NewDualSink combines two sinks.
func NewDualSink(primary, secondary ResultSink) *DualSink {
	return &DualSink{primary: primary, secondary: secondary}
}

// Write forwards entries to both sinks; the first failure wins.
func (ds *DualSink) Write(entries []*Entry) error {
	if err := ds.primary.Write(entries); err != nil {
		return fmt.Errorf("primary sink: %w", err)
	}
	if err := ds.secondary.Write(entries); err != nil {
		return fmt.Errorf("secondary sink: %w", err)
	}
	return nil
}

// Close closes both sinks, returning the first error.
func (ds *DualSink) Close() error {
	errPrimary := ds.primary.Close()
	errSecondary := ds.secondary.Close()
	if errPrimary != nil {
		return errPrimary
	}
	return errSecondary
}

// Validate validates both sinks.
func (ds *DualSink) Validate() error {
	if err := ds.primary.Validate(); err != nil {
		return err
	}
	return ds.secondary.Validate()
}
