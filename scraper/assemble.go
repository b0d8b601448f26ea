package scraper

import (
	"strconv"

	"github.com/shopmon/go-shopify-monitor/models"
)

// assemble merges the raw catalog with the probe results. Pure: no network,
// no shared state. Variants outside the candidate set always report zero
// stock regardless of what the inventory map contains.
func assemble(products []models.Product, inventory models.InventoryMap, candidates []models.Candidate) []models.EnrichedProduct {
	validIDs := make(map[int64]struct{}, len(candidates))
	for _, candidate := range candidates {
		validIDs[candidate.VariantID] = struct{}{}
	}

	enriched := make([]models.EnrichedProduct, 0, len(products))
	for i := range products {
		product := &products[i]

		out := models.EnrichedProduct{
			ID:          product.ID,
			Title:       product.Title,
			Handle:      product.Handle,
			Vendor:      product.Vendor,
			ProductType: product.ProductType,
			Variants:    make([]models.EnrichedVariant, 0, len(product.Variants)),
		}
		if len(product.Images) > 0 {
			out.Image = product.Images[0].Src
		}

		for j := range product.Variants {
			variant := &product.Variants[j]
			_, isValid := validIDs[variant.ID]

			stock := 0
			if isValid {
				stock = inventory[strconv.FormatInt(variant.ID, 10)]
			}

			out.Variants = append(out.Variants, models.EnrichedVariant{
				ID:             variant.ID,
				Title:          variant.DisplayTitle(),
				SKU:            variant.SKU,
				Price:          variant.Price,
				CompareAtPrice: variant.CompareAtPrice,
				Stock:          stock,
				Available:      variant.Available,
				IsValid:        isValid,
			})

			if isValid {
				out.TotalStock += stock
				if stock > 0 {
					out.InStockVariants++
				} else {
					out.OutOfStockVariants++
				}
			}
		}

		enriched = append(enriched, out)
	}

	return enriched
}
