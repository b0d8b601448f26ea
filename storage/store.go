// Package storage persists stores, scan results, inventory history, and
// stock alerts in an embedded sqlite database.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/shopmon/go-shopify-monitor/models"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when a lookup by ID matches no row.
var ErrNotFound = errors.New("not found")

// Store wraps the sqlite connection.
type Store struct {
	db *sqlx.DB
}

// NewStore opens (and if needed initializes) the database at path. Use
// ":memory:" for tests.
func NewStore(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under the monitor's write pattern.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateStore inserts a new monitored store and fills its ID and timestamps.
func (s *Store) CreateStore(ctx context.Context, store *models.Store) error {
	now := time.Now().UTC()
	store.CreatedAt = now
	store.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO stores (name, url, description, scan_interval, enabled,
			notify_low_stock, low_stock_threshold, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		store.Name, store.URL, store.Description, store.ScanInterval, store.Enabled,
		store.NotifyLowStock, store.LowStockThreshold, store.CreatedAt, store.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert store: %w", err)
	}
	store.ID, err = res.LastInsertId()
	return err
}

// GetStore retrieves a store by ID.
func (s *Store) GetStore(ctx context.Context, id int64) (*models.Store, error) {
	var store models.Store
	err := s.db.GetContext(ctx, &store, "SELECT * FROM stores WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// GetStoreByURL retrieves a store by its normalized URL, or nil when absent.
func (s *Store) GetStoreByURL(ctx context.Context, url string) (*models.Store, error) {
	var store models.Store
	err := s.db.GetContext(ctx, &store, "SELECT * FROM stores WHERE url = ?", url)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// ListStores returns stores ordered by ID.
func (s *Store) ListStores(ctx context.Context, enabledOnly bool, limit, offset int) ([]models.Store, error) {
	query := "SELECT * FROM stores"
	if enabledOnly {
		query += " WHERE enabled = 1"
	}
	query += " ORDER BY id LIMIT ? OFFSET ?"

	var stores []models.Store
	err := s.db.SelectContext(ctx, &stores, query, limit, offset)
	return stores, err
}

// ListDueStores returns enabled stores whose next scan time has passed or is
// unset.
func (s *Store) ListDueStores(ctx context.Context, now time.Time) ([]models.Store, error) {
	var stores []models.Store
	err := s.db.SelectContext(ctx, &stores, `
		SELECT * FROM stores
		WHERE enabled = 1 AND (next_scan IS NULL OR next_scan <= ?)
		ORDER BY id`, now.UTC())
	return stores, err
}

// UpdateStore persists the mutable store settings.
func (s *Store) UpdateStore(ctx context.Context, store *models.Store) error {
	store.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE stores SET name = ?, url = ?, description = ?, scan_interval = ?,
			enabled = ?, notify_low_stock = ?, low_stock_threshold = ?, updated_at = ?
		WHERE id = ?`,
		store.Name, store.URL, store.Description, store.ScanInterval,
		store.Enabled, store.NotifyLowStock, store.LowStockThreshold, store.UpdatedAt,
		store.ID,
	)
	return err
}

// MarkScanned records a completed scan on the store row: statistics, last
// scan time, and the next due time.
func (s *Store) MarkScanned(ctx context.Context, storeID int64, stats models.Statistics, last, next time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE stores SET last_scan = ?, next_scan = ?, total_products = ?,
			total_variants = ?, total_stock = ?, updated_at = ?
		WHERE id = ?`,
		last.UTC(), next.UTC(), stats.TotalProducts, stats.ValidVariants,
		stats.TotalStock, time.Now().UTC(), storeID,
	)
	return err
}

// RescheduleScan pushes the next due time without touching statistics; used
// after failed scans so a broken store does not spin on every tick.
func (s *Store) RescheduleScan(ctx context.Context, storeID int64, next time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE stores SET next_scan = ?, updated_at = ? WHERE id = ?",
		next.UTC(), time.Now().UTC(), storeID,
	)
	return err
}

// DeleteStore removes a store and, via cascade, its dependent records.
func (s *Store) DeleteStore(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM stores WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("store %d: %w", id, ErrNotFound)
	}
	return nil
}

// SaveScanResult persists one scan result with its product and inventory
// payloads serialized as JSON.
func (s *Store) SaveScanResult(ctx context.Context, storeID int64, result *models.ScanResult) (*models.ScanRecord, error) {
	productsData, err := json.Marshal(result.Products)
	if err != nil {
		return nil, fmt.Errorf("marshal products: %w", err)
	}
	inventoryData, err := json.Marshal(result.Inventory)
	if err != nil {
		return nil, fmt.Errorf("marshal inventory: %w", err)
	}

	record := &models.ScanRecord{
		StoreID:        storeID,
		Success:        result.Success,
		Error:          result.Error,
		ScanDuration:   result.ScanDuration,
		TotalProducts:  result.Statistics.TotalProducts,
		ValidVariants:  result.Statistics.ValidVariants,
		AddedToCart:    result.Statistics.AddedToCart,
		FailedToAdd:    result.Statistics.FailedToAdd,
		InventoryFound: result.Statistics.InventoryFound,
		TotalStock:     result.Statistics.TotalStock,
		ProductsData:   productsData,
		InventoryData:  inventoryData,
		Timestamp:      result.Timestamp.UTC(),
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_results (store_id, success, error, scan_duration,
			total_products, valid_variants, added_to_cart, failed_to_add,
			inventory_found, total_stock, products_data, inventory_data, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.StoreID, record.Success, record.Error, record.ScanDuration,
		record.TotalProducts, record.ValidVariants, record.AddedToCart,
		record.FailedToAdd, record.InventoryFound, record.TotalStock,
		record.ProductsData, record.InventoryData, record.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert scan result: %w", err)
	}
	record.ID, err = res.LastInsertId()
	return record, err
}

// SaveHistory records per-variant stock observations for the valid variants
// of a successful scan.
func (s *Store) SaveHistory(ctx context.Context, storeID int64, result *models.ScanResult) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO inventory_history (store_id, product_id, product_title,
			variant_id, variant_title, stock, price, sku, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	timestamp := result.Timestamp.UTC()
	for i := range result.Products {
		product := &result.Products[i]
		for j := range product.Variants {
			variant := &product.Variants[j]
			if !variant.IsValid {
				continue
			}
			_, err := stmt.ExecContext(ctx,
				storeID,
				fmt.Sprintf("%d", product.ID), product.Title,
				fmt.Sprintf("%d", variant.ID), variant.Title,
				variant.Stock, variant.Price, variant.SKU,
				timestamp,
			)
			if err != nil {
				return fmt.Errorf("insert history row: %w", err)
			}
		}
	}

	return tx.Commit()
}

// ListScans returns the most recent scan records for a store.
func (s *Store) ListScans(ctx context.Context, storeID int64, limit int) ([]models.ScanRecord, error) {
	var records []models.ScanRecord
	err := s.db.SelectContext(ctx, &records, `
		SELECT * FROM scan_results WHERE store_id = ?
		ORDER BY timestamp DESC, id DESC LIMIT ?`, storeID, limit)
	return records, err
}

// LatestScan returns the most recent scan record, or nil when none exists.
func (s *Store) LatestScan(ctx context.Context, storeID int64) (*models.ScanRecord, error) {
	var record models.ScanRecord
	err := s.db.GetContext(ctx, &record, `
		SELECT * FROM scan_results WHERE store_id = ?
		ORDER BY timestamp DESC, id DESC LIMIT 1`, storeID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListHistory returns recent stock observations for one variant.
func (s *Store) ListHistory(ctx context.Context, storeID int64, variantID string, limit int) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM inventory_history WHERE store_id = ? AND variant_id = ?
		ORDER BY timestamp DESC, id DESC LIMIT ?`, storeID, variantID, limit)
	return entries, err
}

// HasOpenAlert reports whether an unresolved alert exists for a variant.
func (s *Store) HasOpenAlert(ctx context.Context, storeID int64, variantID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM stock_alerts
		WHERE store_id = ? AND variant_id = ? AND resolved = 0`, storeID, variantID)
	return count > 0, err
}

// CreateAlert inserts a new stock alert.
func (s *Store) CreateAlert(ctx context.Context, alert *models.StockAlert) error {
	alert.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_alerts (store_id, product_id, product_title,
			variant_id, variant_title, alert_type, current_stock, threshold, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.StoreID, alert.ProductID, alert.ProductTitle,
		alert.VariantID, alert.VariantTitle, alert.AlertType,
		alert.CurrentStock, alert.Threshold, alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	alert.ID, err = res.LastInsertId()
	return err
}

// ListAlerts returns alerts for a store, optionally filtered by resolution
// state.
func (s *Store) ListAlerts(ctx context.Context, storeID int64, resolved *bool, limit int) ([]models.StockAlert, error) {
	query := "SELECT * FROM stock_alerts WHERE store_id = ?"
	args := []interface{}{storeID}
	if resolved != nil {
		query += " AND resolved = ?"
		args = append(args, *resolved)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	var alerts []models.StockAlert
	err := s.db.SelectContext(ctx, &alerts, query, args...)
	return alerts, err
}

// ResolveAlert marks an alert as resolved.
func (s *Store) ResolveAlert(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE stock_alerts SET resolved = 1, resolved_at = ? WHERE id = ? AND resolved = 0",
		time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("open alert %d: %w", id, ErrNotFound)
	}
	return nil
}

// Cleanup deletes scan results older than resultCutoff and resolved alerts
// older than alertCutoff, returning the deleted row counts.
func (s *Store) Cleanup(ctx context.Context, resultCutoff, alertCutoff time.Time) (int64, int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM scan_results WHERE timestamp < ?", resultCutoff.UTC())
	if err != nil {
		return 0, 0, err
	}
	scansDeleted, _ := res.RowsAffected()

	res, err = s.db.ExecContext(ctx,
		"DELETE FROM stock_alerts WHERE resolved = 1 AND resolved_at < ?", alertCutoff.UTC())
	if err != nil {
		return scansDeleted, 0, err
	}
	alertsDeleted, _ := res.RowsAffected()

	return scansDeleted, alertsDeleted, nil
}
