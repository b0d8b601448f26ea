package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/shopmon/go-shopify-monitor/models"
)

var variantIDPattern = regexp.MustCompile(`\d{10,}`)

// Attribute preference order for quantity inputs on cart pages. Themes vary;
// the first attribute present wins.
var (
	variantAttrs = []string{"data-variant-id", "data-id", "id"}
	stockAttrs   = []string{"max", "data-inventory-quantity", "data-max", "data-stock", "data-inventory"}
)

var emptyCartMarkers = []string{
	"cart is empty",
	"your cart is currently empty",
	"nothing in your cart",
}

// extractInventory reads the revealed per-variant maximums from the cart.
// Parsing strategies are tried in order and the first non-empty result wins;
// the cart.js API is the last resort. An empty map is a valid outcome, not an
// error.
func (s *Scraper) extractInventory(ctx context.Context) models.InventoryMap {
	res, err := s.browser.R().
		SetContext(ctx).
		Get("/cart")
	if err != nil {
		slog.Warn("cart page fetch failed", slog.String("store", s.storeURL), slog.Any("error", err))
		return s.extractFromCartAPI(ctx)
	}
	page := string(res.Body())

	// An empty cart cannot reveal inventory, so skip the parsers outright.
	lowered := strings.ToLower(page)
	for _, marker := range emptyCartMarkers {
		if strings.Contains(lowered, marker) {
			slog.Debug("cart is empty, skipping extraction", slog.String("store", s.storeURL))
			return models.InventoryMap{}
		}
	}

	parsers := []struct {
		name string
		fn   func(string) models.InventoryMap
	}{
		{name: "selector", fn: parseQuantityInputs},
		{name: "dom_walk", fn: parseQuantityNodes},
	}
	for _, p := range parsers {
		if inventory := p.fn(page); len(inventory) > 0 {
			s.metrics.IncExtraction(p.name)
			return inventory
		}
	}

	return s.extractFromCartAPI(ctx)
}

// parseQuantityInputs is the fast structural pass: find numeric quantity
// inputs and read the variant ID and stock ceiling from their attributes.
func parseQuantityInputs(page string) models.InventoryMap {
	inventory := models.InventoryMap{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return inventory
	}

	doc.Find(`input[type="number"]`).Each(func(_ int, sel *goquery.Selection) {
		var rawID string
		for _, attr := range variantAttrs {
			if value, ok := sel.Attr(attr); ok && value != "" {
				rawID = value
				break
			}
		}
		var rawStock string
		for _, attr := range stockAttrs {
			if value, ok := sel.Attr(attr); ok && value != "" {
				rawStock = value
				break
			}
		}
		recordQuantity(inventory, rawID, rawStock)
	})

	return inventory
}

// parseQuantityNodes walks the raw node tree with the same attribute
// heuristics. Slower, but survives markup that trips up selector matching.
func parseQuantityNodes(page string) models.InventoryMap {
	inventory := models.InventoryMap{}

	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return inventory
	}

	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "input" {
			attrs := make(map[string]string, len(node.Attr))
			for _, attr := range node.Attr {
				attrs[attr.Key] = attr.Val
			}
			if attrs["type"] == "number" {
				var rawID, rawStock string
				for _, key := range variantAttrs {
					if attrs[key] != "" {
						rawID = attrs[key]
						break
					}
				}
				for _, key := range stockAttrs {
					if attrs[key] != "" {
						rawStock = attrs[key]
						break
					}
				}
				recordQuantity(inventory, rawID, rawStock)
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	return inventory
}

// recordQuantity validates and stores one observation. The variant ID is the
// first 10+ digit numeral in the attribute; the stock value must be a
// non-negative integer.
func recordQuantity(inventory models.InventoryMap, rawID, rawStock string) {
	if rawID == "" || rawStock == "" {
		return
	}
	id := variantIDPattern.FindString(rawID)
	if id == "" {
		return
	}
	stock, err := strconv.Atoi(strings.TrimSpace(rawStock))
	if err != nil || stock < 0 {
		return
	}
	inventory[id] = stock
}

// extractFromCartAPI reads the cart's JSON representation as a last resort.
func (s *Scraper) extractFromCartAPI(ctx context.Context) models.InventoryMap {
	inventory := models.InventoryMap{}

	res, err := s.browser.R().
		SetContext(ctx).
		Get("/cart.js")
	if err != nil || !res.IsSuccess() {
		return inventory
	}

	var cart struct {
		Items []map[string]json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(res.Body(), &cart); err != nil {
		return inventory
	}

	for _, item := range cart.Items {
		variantID := numberField(item, "variant_id")
		if variantID <= 0 {
			variantID = numberField(item, "id")
		}
		if variantID <= 0 {
			continue
		}
		for _, field := range []string{"inventory_quantity", "max_quantity", "available"} {
			raw, ok := item[field]
			if !ok {
				continue
			}
			stock, ok := decodeQuantity(raw)
			if !ok {
				continue
			}
			inventory[strconv.FormatInt(variantID, 10)] = stock
			break
		}
	}

	if len(inventory) > 0 {
		s.metrics.IncExtraction("cart_api")
	}
	return inventory
}

func numberField(item map[string]json.RawMessage, key string) int64 {
	raw, ok := item[key]
	if !ok {
		return 0
	}
	var value int64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0
	}
	return value
}

// decodeQuantity accepts the number and boolean shapes themes put in cart.js
// line items. Negative counts (oversold lines) clamp to zero.
func decodeQuantity(raw json.RawMessage) (int, bool) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("true")) {
		return 1, true
	}
	if bytes.Equal(trimmed, []byte("false")) {
		return 0, true
	}
	var value int
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return 0, false
	}
	if value < 0 {
		value = 0
	}
	return value, true
}
