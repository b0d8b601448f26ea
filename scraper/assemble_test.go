package scraper

import (
	"testing"

	"github.com/shopmon/go-shopify-monitor/models"
)

func TestAssembleMergesInventory(t *testing.T) {
	products := []models.Product{
		{
			ID:     1,
			Title:  "Shirt",
			Images: []models.Image{{Src: "https://cdn.example/shirt.jpg"}},
			Variants: []models.Variant{
				{ID: 4000000001, Title: "Small", Available: true},
				{ID: 4000000002, Title: "Large", Available: false},
			},
		},
	}
	candidates := []models.Candidate{
		{VariantID: 4000000001, Product: &products[0], Variant: &products[0].Variants[0]},
	}
	inventory := models.InventoryMap{
		"4000000001": 7,
		"4000000002": 3, // not a candidate, must be ignored
	}

	enriched := assemble(products, inventory, candidates)

	if len(enriched) != 1 {
		t.Fatalf("enriched products = %d, want 1", len(enriched))
	}
	p := enriched[0]
	if p.Image != "https://cdn.example/shirt.jpg" {
		t.Fatalf("image = %q", p.Image)
	}
	if p.Variants[0].Stock != 7 || !p.Variants[0].IsValid {
		t.Fatalf("valid variant stock = %d, is_valid = %v", p.Variants[0].Stock, p.Variants[0].IsValid)
	}
	if p.Variants[1].Stock != 0 || p.Variants[1].IsValid {
		t.Fatalf("invalid variant must report zero stock, got %d", p.Variants[1].Stock)
	}
	if p.TotalStock != 7 || p.InStockVariants != 1 || p.OutOfStockVariants != 0 {
		t.Fatalf("aggregates = total %d in %d out %d", p.TotalStock, p.InStockVariants, p.OutOfStockVariants)
	}
}

func TestAssembleCountsOutOfStockCandidates(t *testing.T) {
	products := []models.Product{
		{ID: 1, Title: "Hat", Variants: []models.Variant{{ID: 4000000009, Available: true}}},
	}
	candidates := []models.Candidate{
		{VariantID: 4000000009, Product: &products[0], Variant: &products[0].Variants[0]},
	}

	enriched := assemble(products, models.InventoryMap{"4000000009": 0}, candidates)

	if enriched[0].OutOfStockVariants != 1 || enriched[0].InStockVariants != 0 {
		t.Fatalf("out-of-stock candidate not counted: %+v", enriched[0])
	}
}
