package models

import "time"

// Store is a monitored storefront record.
type Store struct {
	ID                int64      `db:"id" json:"id"`
	Name              string     `db:"name" json:"name"`
	URL               string     `db:"url" json:"url"`
	Description       string     `db:"description" json:"description,omitempty"`
	ScanInterval      int        `db:"scan_interval" json:"scan_interval"`
	Enabled           bool       `db:"enabled" json:"enabled"`
	LastScan          *time.Time `db:"last_scan" json:"last_scan,omitempty"`
	NextScan          *time.Time `db:"next_scan" json:"next_scan,omitempty"`
	NotifyLowStock    bool       `db:"notify_low_stock" json:"notify_low_stock"`
	LowStockThreshold int        `db:"low_stock_threshold" json:"low_stock_threshold"`
	TotalProducts     int        `db:"total_products" json:"total_products"`
	TotalVariants     int        `db:"total_variants" json:"total_variants"`
	TotalStock        int        `db:"total_stock" json:"total_stock"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// ScanRecord is a persisted scan result.
type ScanRecord struct {
	ID             int64     `db:"id" json:"id"`
	StoreID        int64     `db:"store_id" json:"store_id"`
	Success        bool      `db:"success" json:"success"`
	Error          string    `db:"error" json:"error,omitempty"`
	ScanDuration   float64   `db:"scan_duration" json:"scan_duration"`
	TotalProducts  int       `db:"total_products" json:"total_products"`
	ValidVariants  int       `db:"valid_variants" json:"valid_variants"`
	AddedToCart    int       `db:"added_to_cart" json:"added_to_cart"`
	FailedToAdd    int       `db:"failed_to_add" json:"failed_to_add"`
	InventoryFound int       `db:"inventory_found" json:"inventory_found"`
	TotalStock     int       `db:"total_stock" json:"total_stock"`
	ProductsData   []byte    `db:"products_data" json:"-"`
	InventoryData  []byte    `db:"inventory_data" json:"-"`
	Timestamp      time.Time `db:"timestamp" json:"timestamp"`
}

// HistoryEntry is one per-variant stock observation.
type HistoryEntry struct {
	ID           int64     `db:"id" json:"id"`
	StoreID      int64     `db:"store_id" json:"store_id"`
	ProductID    string    `db:"product_id" json:"product_id"`
	ProductTitle string    `db:"product_title" json:"product_title"`
	VariantID    string    `db:"variant_id" json:"variant_id"`
	VariantTitle string    `db:"variant_title" json:"variant_title"`
	Stock        int       `db:"stock" json:"stock"`
	Price        string    `db:"price" json:"price"`
	SKU          string    `db:"sku" json:"sku"`
	Timestamp    time.Time `db:"timestamp" json:"timestamp"`
}

// Alert types raised by the monitor.
const (
	AlertLowStock   = "low_stock"
	AlertOutOfStock = "out_of_stock"
)

// StockAlert records a low-stock or out-of-stock transition.
type StockAlert struct {
	ID           int64      `db:"id" json:"id"`
	StoreID      int64      `db:"store_id" json:"store_id"`
	ProductID    string     `db:"product_id" json:"product_id"`
	ProductTitle string     `db:"product_title" json:"product_title"`
	VariantID    string     `db:"variant_id" json:"variant_id"`
	VariantTitle string     `db:"variant_title" json:"variant_title"`
	AlertType    string     `db:"alert_type" json:"alert_type"`
	CurrentStock int        `db:"current_stock" json:"current_stock"`
	Threshold    int        `db:"threshold" json:"threshold"`
	Resolved     bool       `db:"resolved" json:"resolved"`
	ResolvedAt   *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
