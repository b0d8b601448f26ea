package scraper

import (
	"context"
	"testing"

	"github.com/jarcoal/httpmock"
)

func TestParseQuantityInputs(t *testing.T) {
	page := `<html><body>
		<input type="number" data-variant-id="4000000001" max="5">
		<input type="number" data-id="variant-4000000002" data-inventory-quantity="12">
		<input type="number" id="updates_4000000003" data-stock="0">
		<input type="number" data-variant-id="123" max="9">
		<input type="number" data-variant-id="4000000004" max="-2">
		<input type="text" data-variant-id="4000000005" max="3">
	</body></html>`

	inventory := parseQuantityInputs(page)

	want := map[string]int{"4000000001": 5, "4000000002": 12, "4000000003": 0}
	if len(inventory) != len(want) {
		t.Fatalf("inventory = %v, want %v", inventory, want)
	}
	for id, stock := range want {
		if inventory[id] != stock {
			t.Fatalf("inventory[%s] = %d, want %d", id, inventory[id], stock)
		}
	}
}

func TestParseQuantityNodes(t *testing.T) {
	page := `<div><form>
		<input type="number" data-variant-id="4000000001" max="4">
		<input type="number" id="qty-4000000002" data-max="8">
	</form></div>`

	inventory := parseQuantityNodes(page)

	if inventory["4000000001"] != 4 || inventory["4000000002"] != 8 {
		t.Fatalf("inventory = %v", inventory)
	}
}

func TestParsersAgree(t *testing.T) {
	page := `<html><body><input type="number" data-variant-id="4000000007" max="3"></body></html>`

	fast := parseQuantityInputs(page)
	slow := parseQuantityNodes(page)

	if len(fast) != len(slow) || fast["4000000007"] != slow["4000000007"] {
		t.Fatalf("parsers disagree: %v vs %v", fast, slow)
	}
}

func TestExtractInventoryEmptyCartShortCircuit(t *testing.T) {
	s := newTestScraper(t)
	transport := httpmock.NewMockTransport()
	s.setTransport(transport)

	transport.RegisterResponder("GET", storeBase+"/cart",
		htmlResponder(`<html><body><p>Your cart is empty</p>
			<input type="number" data-variant-id="4000000001" max="99"></body></html>`))
	transport.RegisterResponder("GET", storeBase+"/cart.js",
		jsonResponder(200, `{"items":[{"variant_id":4000000001,"inventory_quantity":99}]}`))

	inventory := s.extractInventory(context.Background())

	if len(inventory) != 0 {
		t.Fatalf("empty cart must yield empty inventory, got %v", inventory)
	}
	if calls := transport.GetCallCountInfo()["GET "+storeBase+"/cart.js"]; calls != 0 {
		t.Fatalf("cart.js must not be consulted for an empty cart, got %d calls", calls)
	}
}

func TestExtractInventoryCartAPIFallback(t *testing.T) {
	s := newTestScraper(t)
	transport := httpmock.NewMockTransport()
	s.setTransport(transport)

	transport.RegisterResponder("GET", storeBase+"/cart",
		htmlResponder(`<html><body><p>No quantity widgets here</p></body></html>`))
	transport.RegisterResponder("GET", storeBase+"/cart.js",
		jsonResponder(200, `{"items":[
			{"variant_id":4000000001,"inventory_quantity":6},
			{"id":4000000002,"max_quantity":2},
			{"variant_id":4000000003,"available":true},
			{"variant_id":4000000004,"inventory_quantity":-3}
		]}`))

	inventory := s.extractInventory(context.Background())

	want := map[string]int{"4000000001": 6, "4000000002": 2, "4000000003": 1, "4000000004": 0}
	if len(inventory) != len(want) {
		t.Fatalf("inventory = %v, want %v", inventory, want)
	}
	for id, stock := range want {
		if got := inventory[id]; got != stock {
			t.Fatalf("inventory[%s] = %d, want %d", id, got, stock)
		}
		if inventory[id] < 0 {
			t.Fatalf("inventory[%s] is negative", id)
		}
	}
}
