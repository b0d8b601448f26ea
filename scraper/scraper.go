// Package scraper implements the cart-probing inventory scan engine.
//
// Shopify does not expose stock counts publicly, so the engine infers an
// upper bound per variant: fetch the catalog, add purchasable variants to a
// throwaway cart, then read back the maximum quantity the storefront reveals.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/shopmon/go-shopify-monitor/config"
	"github.com/shopmon/go-shopify-monitor/models"
	"github.com/shopmon/go-shopify-monitor/parser"
)

// Scraper holds the per-scan state for one target storefront: HTTP clients
// with a shared cookie session and the add-failure blacklist. Instances are
// not safe for concurrent scans of the same store; callers create one
// Scraper per scan and discard it afterwards.
type Scraper struct {
	cfg      *config.Config
	storeURL string
	proxy    string

	browser *resty.Client
	plain   *resty.Client

	blacklist map[int64]struct{}
	metrics   *Metrics
}

// NewScraper builds a scraper for a single store. metrics may be nil, or
// shared across scrapers to aggregate across scans.
func NewScraper(cfg *config.Config, storeURL, proxy string, metrics *Metrics) (*Scraper, error) {
	storeURL = parser.NormalizeStoreURL(storeURL)
	if err := config.ValidateStoreURL(storeURL); err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Scraper{
		cfg:       cfg,
		storeURL:  storeURL,
		proxy:     proxy,
		browser:   newBrowserClient(cfg, storeURL, proxy, jar),
		plain:     newPlainClient(cfg, storeURL, proxy, jar),
		blacklist: make(map[int64]struct{}),
		metrics:   metrics,
	}, nil
}

// Scan runs one complete inventory scan. It never returns an error: any
// failure, including panics in parsing code, is converted into a ScanResult
// with Success=false.
func (s *Scraper) Scan(ctx context.Context) (result *models.ScanResult) {
	start := time.Now()
	slog.Info("starting inventory scan", slog.String("store", s.storeURL))

	defer func() {
		if r := recover(); r != nil {
			slog.Error("scan panicked", slog.String("store", s.storeURL), slog.Any("panic", r))
			result = s.failure(fmt.Sprintf("unexpected error: %v", r))
		}
		s.metrics.ObserveScanDuration(time.Since(start))
		if result != nil && result.Success {
			s.metrics.IncScan("success")
		} else {
			s.metrics.IncScan("failure")
		}
	}()

	products, err := s.fetchProducts(ctx)
	if err != nil || len(products) == 0 {
		slog.Error("catalog fetch failed", slog.String("store", s.storeURL), slog.Any("error", err))
		return s.failure("Failed to fetch products")
	}

	candidates := filterAvailable(products, s.blacklist, s.cfg.VariantCap)
	slog.Info("filtered purchase candidates",
		slog.String("store", s.storeURL),
		slog.Int("products", len(products)),
		slog.Int("candidates", len(candidates)),
	)

	s.clearCart(ctx)

	added, failed := s.batchAdd(ctx, candidates)

	inventory := s.extractInventory(ctx)

	enriched := assemble(products, inventory, candidates)

	elapsed := time.Since(start)
	result = &models.ScanResult{
		Success:      true,
		StoreURL:     s.storeURL,
		Timestamp:    time.Now().UTC(),
		ScanDuration: elapsed.Seconds(),
		Statistics: models.Statistics{
			TotalProducts:  len(products),
			ValidVariants:  len(candidates),
			AddedToCart:    added,
			FailedToAdd:    failed,
			InventoryFound: len(inventory),
			TotalStock:     inventory.TotalStock(),
		},
		Products:  enriched,
		Inventory: inventory,
	}

	slog.Info("scan completed",
		slog.String("store", s.storeURL),
		slog.Duration("elapsed", elapsed),
		slog.Int("inventory_found", len(inventory)),
		slog.Int("total_stock", result.Statistics.TotalStock),
	)
	return result
}

func (s *Scraper) failure(message string) *models.ScanResult {
	return &models.ScanResult{
		Success:   false,
		StoreURL:  s.storeURL,
		Error:     message,
		Timestamp: time.Now().UTC(),
	}
}

// sleep waits for d unless the context is cancelled first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
