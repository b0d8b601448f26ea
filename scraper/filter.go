package scraper

import "github.com/shopmon/go-shopify-monitor/models"

// filterAvailable reduces a raw catalog to purchase candidates. Only the
// first variantCap variants per product are considered so pathological
// catalogs cannot explode probe batches. A variant is excluded when it is
// blacklisted, marked unavailable, or the store tracks inventory with a
// "deny" policy and reports zero on hand (adding those always fails).
//
// Pure over the blacklist snapshot: calling it twice with the same inputs
// yields the same candidates.
func filterAvailable(products []models.Product, blacklist map[int64]struct{}, variantCap int) []models.Candidate {
	var candidates []models.Candidate

	for i := range products {
		product := &products[i]
		variants := product.Variants
		if len(variants) > variantCap {
			variants = variants[:variantCap]
		}

		for j := range variants {
			variant := &variants[j]
			if _, skip := blacklist[variant.ID]; skip {
				continue
			}
			if !variant.Available {
				continue
			}
			if variant.InventoryManagement != "" &&
				variant.InventoryPolicy == "deny" &&
				variant.InventoryQuantity == 0 {
				continue
			}

			candidates = append(candidates, models.Candidate{
				VariantID: variant.ID,
				Quantity:  1,
				Product:   product,
				Variant:   variant,
			})
		}
	}

	return candidates
}
