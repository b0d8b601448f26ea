package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/shopmon/go-shopify-monitor/config"
	"github.com/shopmon/go-shopify-monitor/models"
	"github.com/shopmon/go-shopify-monitor/parser"
)

const storeBase = "http://example-store.test"

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 2 * time.Millisecond
	cfg.BatchDelay = 0
	cfg.PageDelay = 0
	cfg.RequestTimeout = 5 * time.Second
	return cfg
}

func newTestScraper(t *testing.T) *Scraper {
	t.Helper()
	s, err := NewScraper(testConfig(), storeBase, "", NewMetrics())
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	return s
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func jsonResponder(status int, body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "application/json")
	return httpmock.ResponderFromResponse(resp)
}

func catalogJSON(products ...models.Product) string {
	payload, err := json.Marshal(map[string][]models.Product{"products": products})
	if err != nil {
		panic(err)
	}
	return string(payload)
}

func TestNewScraperRejectsBadURL(t *testing.T) {
	if _, err := NewScraper(testConfig(), "not-a-url", "", nil); err == nil {
		t.Fatalf("expected error for URL without scheme")
	}
	if _, err := NewScraper(testConfig(), "", "", nil); err == nil {
		t.Fatalf("expected error for empty URL")
	}
}

func TestNewScraperNormalizesTrailingSlash(t *testing.T) {
	s, err := NewScraper(testConfig(), storeBase+"/", "", nil)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	if s.storeURL != storeBase {
		t.Fatalf("storeURL = %q, want %q", s.storeURL, storeBase)
	}
}

func TestFetchStrategyFallback(t *testing.T) {
	s := newTestScraper(t)
	transport := httpmock.NewMockTransport()
	s.setTransport(transport)

	catalog := catalogJSON(models.Product{ID: 1, Title: "Shirt"})

	// The browser strategy exhausts its retries on 403s; the plain strategy
	// succeeds on its first attempt.
	calls := 0
	transport.RegisterResponder("GET", storeBase+"/products.json",
		func(*http.Request) (*http.Response, error) {
			calls++
			if calls <= s.cfg.MaxRetries {
				return httpmock.NewStringResponse(403, "blocked"), nil
			}
			resp := httpmock.NewStringResponse(200, catalog)
			resp.Header.Set("Content-Type", "application/json")
			return resp, nil
		})

	products, err := s.fetchProducts(context.Background())
	if err != nil {
		t.Fatalf("fetch products: %v", err)
	}
	if len(products) != 1 || products[0].Title != "Shirt" {
		t.Fatalf("products = %v", products)
	}
	if calls != s.cfg.MaxRetries+1 {
		t.Fatalf("calls = %d, want %d (no further attempts after first success)", calls, s.cfg.MaxRetries+1)
	}
}

func TestFetchAllStrategiesExhausted(t *testing.T) {
	s := newTestScraper(t)
	transport := httpmock.NewMockTransport()
	s.setTransport(transport)

	transport.RegisterResponder("GET", storeBase+"/products.json",
		httpmock.NewStringResponder(403, "blocked"))

	if _, err := s.fetchProducts(context.Background()); err != ErrAllStrategiesFailed {
		t.Fatalf("err = %v, want ErrAllStrategiesFailed", err)
	}
}

func TestFetchWithPagination(t *testing.T) {
	s := newTestScraper(t)
	s.cfg.PageSize = 2
	transport := httpmock.NewMockTransport()
	s.setTransport(transport)

	pages := map[string]string{
		"1": catalogJSON(
			models.Product{ID: 1, Title: "A"},
			models.Product{ID: 2, Title: "B"},
		),
		"2": catalogJSON(models.Product{ID: 3, Title: "C"}),
	}
	transport.RegisterResponder("GET", storeBase+"/products.json",
		func(req *http.Request) (*http.Response, error) {
			body, ok := pages[req.URL.Query().Get("page")]
			if !ok {
				return httpmock.NewStringResponse(200, catalogJSON()), nil
			}
			resp := httpmock.NewStringResponse(200, body)
			resp.Header.Set("Content-Type", "application/json")
			return resp, nil
		})

	products, err := s.fetchWithPagination(context.Background())
	if err != nil {
		t.Fatalf("paginated fetch: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("products = %d, want 3 (short page ends pagination)", len(products))
	}
}

// Scenario: two products with one available variant each; the cart reveals a
// maximum of 5 for one and 0 for the other.
func TestScanEndToEnd(t *testing.T) {
	s := newTestScraper(t)
	transport := httpmock.NewMockTransport()
	s.setTransport(transport)

	catalog := catalogJSON(
		models.Product{ID: 1, Title: "Shirt", Variants: []models.Variant{
			{ID: 4000000001, Title: "Small", Available: true},
		}},
		models.Product{ID: 2, Title: "Hat", Variants: []models.Variant{
			{ID: 4000000002, Title: "One Size", Available: true},
		}},
	)
	cartPage := `<html><body>
		<input type="number" data-variant-id="4000000001" max="5">
		<input type="number" data-variant-id="4000000002" max="0">
	</body></html>`

	transport.RegisterResponder("GET", storeBase+"/products.json", jsonResponder(200, catalog))
	transport.RegisterResponder("POST", storeBase+"/cart/clear.js", jsonResponder(200, `{}`))
	transport.RegisterResponder("POST", storeBase+"/cart/add.js", jsonResponder(200, `{}`))
	transport.RegisterResponder("GET", storeBase+"/cart", htmlResponder(cartPage))

	result := s.Scan(context.Background())

	if !result.Success {
		t.Fatalf("scan failed: %s", result.Error)
	}
	if err := parser.ValidateResult(result); err != nil {
		t.Fatalf("result invariants violated: %v", err)
	}

	stats := result.Statistics
	if stats.TotalProducts != 2 || stats.ValidVariants != 2 || stats.AddedToCart != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.InventoryFound != 2 || stats.TotalStock != 5 {
		t.Fatalf("inventory stats = %+v, want found=2 total=5", stats)
	}

	var hat *models.EnrichedProduct
	for i := range result.Products {
		if result.Products[i].Title == "Hat" {
			hat = &result.Products[i]
		}
	}
	if hat == nil {
		t.Fatalf("missing enriched product Hat")
	}
	if hat.OutOfStockVariants != 1 || hat.TotalStock != 0 {
		t.Fatalf("hat aggregates = %+v", hat)
	}
}

// Scenario: every strategy returns an empty catalog; the scan fails fast and
// never touches the cart.
func TestScanFailsFastOnEmptyCatalog(t *testing.T) {
	s := newTestScraper(t)
	transport := httpmock.NewMockTransport()
	s.setTransport(transport)

	transport.RegisterResponder("GET", storeBase+"/products.json", jsonResponder(200, `{"products":[]}`))
	transport.RegisterResponder("POST", storeBase+"/cart/clear.js", jsonResponder(200, `{}`))
	transport.RegisterResponder("POST", storeBase+"/cart/add.js", jsonResponder(200, `{}`))

	result := s.Scan(context.Background())

	if result.Success {
		t.Fatalf("scan should fail on empty catalog")
	}
	if result.Error != "Failed to fetch products" {
		t.Fatalf("error = %q", result.Error)
	}
	info := transport.GetCallCountInfo()
	for _, endpoint := range []string{"POST " + storeBase + "/cart/clear.js", "POST " + storeBase + "/cart/add.js"} {
		if info[endpoint] != 0 {
			t.Fatalf("%s was called %d times during a failed fetch", endpoint, info[endpoint])
		}
	}
}

// Scenario: the add batch 422s with a message naming one candidate; that
// variant is blacklisted and the batch counts as failed, but the scan still
// completes successfully with degraded statistics.
func TestScanSurvives422(t *testing.T) {
	s := newTestScraper(t)
	transport := httpmock.NewMockTransport()
	s.setTransport(transport)

	catalog := catalogJSON(
		models.Product{ID: 1, Title: "Shirt", Variants: []models.Variant{
			{ID: 4000000001, Title: "Small", Available: true},
			{ID: 4000000002, Title: "Large", Available: true},
		}},
	)
	transport.RegisterResponder("GET", storeBase+"/products.json", jsonResponder(200, catalog))
	transport.RegisterResponder("POST", storeBase+"/cart/clear.js", jsonResponder(200, `{}`))
	transport.RegisterResponder("POST", storeBase+"/cart/add.js",
		jsonResponder(422, `{"status":422,"message":"Cart Error","description":"Cannot add Shirt - Large to the cart"}`))
	transport.RegisterResponder("GET", storeBase+"/cart",
		htmlResponder(`<html><body><p>Your cart is empty</p></body></html>`))
	transport.RegisterResponder("GET", storeBase+"/cart.js", jsonResponder(200, `{"items":[]}`))

	result := s.Scan(context.Background())

	if !result.Success {
		t.Fatalf("scan should succeed with degraded data: %s", result.Error)
	}
	if _, ok := s.blacklist[4000000002]; !ok {
		t.Fatalf("variant named in 422 message should be blacklisted")
	}
	stats := result.Statistics
	if stats.AddedToCart != 0 || stats.FailedToAdd != 2 {
		t.Fatalf("stats = %+v, want added=0 failed=2", stats)
	}
	if stats.InventoryFound != 0 || stats.TotalStock != 0 {
		t.Fatalf("stats = %+v, want empty inventory", stats)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "blocked"},
		{name: "service unavailable", err: nil, statusCode: http.StatusServiceUnavailable, expected: "blocked"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "plain status", err: nil, statusCode: http.StatusBadGateway, expected: "http_status"},
		{name: "other", err: fmt.Errorf("boom"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestBackoffCapped(t *testing.T) {
	s := newTestScraper(t)
	s.cfg.RetryBackoff = 200 * time.Millisecond
	s.cfg.RetryBackoffMax = 500 * time.Millisecond

	if delay := s.backoff(4); delay > s.cfg.RetryBackoffMax {
		t.Fatalf("delay %v exceeds max %v", delay, s.cfg.RetryBackoffMax)
	}
	if delay := s.backoff(0); delay != 200*time.Millisecond {
		t.Fatalf("first delay = %v, want base", delay)
	}
}
