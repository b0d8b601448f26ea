// Package models defines data structures shared across the monitor.
package models

import "time"

// Product is a raw catalog entry as served by /products.json.
type Product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	Vendor      string    `json:"vendor"`
	ProductType string    `json:"product_type"`
	Images      []Image   `json:"images"`
	Variants    []Variant `json:"variants"`
}

// Image is a product image reference.
type Image struct {
	Src string `json:"src"`
}

// Variant is a purchasable SKU under a product.
type Variant struct {
	ID                  int64  `json:"id"`
	Title               string `json:"title"`
	SKU                 string `json:"sku"`
	Price               string `json:"price"`
	CompareAtPrice      string `json:"compare_at_price"`
	Available           bool   `json:"available"`
	InventoryManagement string `json:"inventory_management"`
	InventoryPolicy     string `json:"inventory_policy"`
	InventoryQuantity   int    `json:"inventory_quantity"`
}

// DisplayTitle returns the variant title Shopify uses in cart error messages.
func (v Variant) DisplayTitle() string {
	if v.Title == "" {
		return "Default"
	}
	return v.Title
}

// Candidate is a variant that passed availability filtering and is queued
// for cart probing.
type Candidate struct {
	VariantID int64
	Quantity  int
	Product   *Product
	Variant   *Variant
}

// InventoryMap maps a variant ID (decimal string) to its inferred maximum
// purchasable quantity.
type InventoryMap map[string]int

// TotalStock sums all inferred quantities.
func (m InventoryMap) TotalStock() int {
	total := 0
	for _, stock := range m {
		total += stock
	}
	return total
}

// EnrichedVariant is a raw variant merged with probe results.
type EnrichedVariant struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	SKU            string `json:"sku"`
	Price          string `json:"price"`
	CompareAtPrice string `json:"compare_at_price"`
	Stock          int    `json:"stock"`
	Available      bool   `json:"available"`
	IsValid        bool   `json:"is_valid"`
}

// EnrichedProduct aggregates probe results per product.
type EnrichedProduct struct {
	ID                 int64             `json:"id"`
	Title              string            `json:"title"`
	Handle             string            `json:"handle"`
	Vendor             string            `json:"vendor"`
	ProductType        string            `json:"type"`
	Image              string            `json:"image,omitempty"`
	Variants           []EnrichedVariant `json:"variants"`
	TotalStock         int               `json:"total_stock"`
	InStockVariants    int               `json:"in_stock_variants"`
	OutOfStockVariants int               `json:"out_of_stock_variants"`
}

// Statistics summarizes one scan.
type Statistics struct {
	TotalProducts  int `json:"total_products"`
	ValidVariants  int `json:"valid_variants"`
	AddedToCart    int `json:"added_to_cart"`
	FailedToAdd    int `json:"failed_to_add"`
	InventoryFound int `json:"inventory_found"`
	TotalStock     int `json:"total_stock"`
}

// ScanResult is the caller-facing outcome of one inventory scan. It is always
/// well-formed: failures carry Success=false and an Error message instead of
// propagating as Go errors.
type ScanResult struct {
	Success      bool              `json:"success"`
	StoreURL     string            `json:"store_url,omitempty"`
	Error        string            `json:"error,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	ScanDuration float64           `json:"scan_duration"`
	Statistics   Statistics        `json:"statistics"`
	Products     []EnrichedProduct `json:"products,omitempty"`
	Inventory    InventoryMap      `json:"inventory,omitempty"`
}
