// Package parser provides normalization and validation helpers for scan data.
package parser

import (
	"fmt"
	"strings"

	"github.com/shopmon/go-shopify-monitor/models"
)

// NormalizeStoreURL strips trailing slashes and surrounding whitespace so
// endpoint paths can be appended directly.
func NormalizeStoreURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// ValidateResult ensures a scan result is internally consistent before it is
// persisted. Failed results only need a populated error and timestamp.
func ValidateResult(r *models.ScanResult) error {
	if r == nil {
		return fmt.Errorf("scan result is nil")
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("scan result missing timestamp")
	}
	if !r.Success {
		if r.Error == "" {
			return fmt.Errorf("failed scan result missing error message")
		}
		return nil
	}
	if r.StoreURL == "" {
		return fmt.Errorf("scan result missing store URL")
	}
	if got, want := r.Statistics.InventoryFound, len(r.Inventory); got != want {
		return fmt.Errorf("inventory found %d does not match inventory map size %d", got, want)
	}
	if got, want := r.Statistics.TotalStock, r.Inventory.TotalStock(); got != want {
		return fmt.Errorf("total stock %d does not match inventory map sum %d", got, want)
	}
	for _, stock := range r.Inventory {
		if stock < 0 {
			return fmt.Errorf("negative stock value in inventory map")
		}
	}
	for i := range r.Products {
		for j := range r.Products[i].Variants {
			v := &r.Products[i].Variants[j]
			if !v.IsValid && v.Stock != 0 {
				return fmt.Errorf("invalid variant %d carries stock %d", v.ID, v.Stock)
			}
		}
	}
	return nil
}
