package scraper

import (
	"testing"

	"github.com/shopmon/go-shopify-monitor/models"
)

func makeVariant(id int64, available bool) models.Variant {
	return models.Variant{ID: id, Title: "Small", Available: available}
}

func TestFilterAvailable(t *testing.T) {
	products := []models.Product{
		{
			ID:    1,
			Title: "Shirt",
			Variants: []models.Variant{
				makeVariant(4000000001, true),
				makeVariant(4000000002, false),
				{
					ID:                  4000000003,
					Available:           true,
					InventoryManagement: "shopify",
					InventoryPolicy:     "deny",
					InventoryQuantity:   0,
				},
				{
					ID:                  4000000004,
					Available:           true,
					InventoryManagement: "shopify",
					InventoryPolicy:     "continue",
					InventoryQuantity:   0,
				},
			},
		},
	}

	candidates := filterAvailable(products, map[int64]struct{}{}, 10)

	got := make(map[int64]bool)
	for _, c := range candidates {
		got[c.VariantID] = true
	}
	if len(candidates) != 2 || !got[4000000001] || !got[4000000004] {
		t.Fatalf("candidates = %v, want variants 4000000001 and 4000000004", got)
	}
}

func TestFilterAvailableBlacklist(t *testing.T) {
	products := []models.Product{
		{ID: 1, Variants: []models.Variant{makeVariant(4000000001, true), makeVariant(4000000002, true)}},
	}
	blacklist := map[int64]struct{}{4000000001: {}}

	candidates := filterAvailable(products, blacklist, 10)
	if len(candidates) != 1 || candidates[0].VariantID != 4000000002 {
		t.Fatalf("expected only non-blacklisted variant, got %v", candidates)
	}
}

func TestFilterAvailableVariantCap(t *testing.T) {
	product := models.Product{ID: 1}
	for i := 0; i < 25; i++ {
		product.Variants = append(product.Variants, makeVariant(4000000000+int64(i), true))
	}

	candidates := filterAvailable([]models.Product{product}, map[int64]struct{}{}, 10)
	if len(candidates) != 10 {
		t.Fatalf("candidates = %d, want 10 (variant cap)", len(candidates))
	}
}

func TestFilterAvailableIdempotent(t *testing.T) {
	products := []models.Product{
		{ID: 1, Variants: []models.Variant{makeVariant(4000000001, true), makeVariant(4000000002, false)}},
		{ID: 2, Variants: []models.Variant{makeVariant(4000000003, true)}},
	}
	blacklist := map[int64]struct{}{4000000003: {}}

	first := filterAvailable(products, blacklist, 10)
	second := filterAvailable(products, blacklist, 10)

	if len(first) != len(second) {
		t.Fatalf("candidate counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].VariantID != second[i].VariantID {
			t.Fatalf("candidate %d differs: %d vs %d", i, first[i].VariantID, second[i].VariantID)
		}
	}
}
