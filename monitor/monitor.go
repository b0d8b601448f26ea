// Package monitor schedules inventory scans. The service object replaces the
// original process-wide scheduler singleton: it is owned by the application
// root and injected wherever scans are triggered.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/shopmon/go-shopify-monitor/config"
	"github.com/shopmon/go-shopify-monitor/models"
	"github.com/shopmon/go-shopify-monitor/pipeline"
	"github.com/shopmon/go-shopify-monitor/scraper"
	"github.com/shopmon/go-shopify-monitor/storage"
)

// ErrScanInFlight is returned when a scan for the store is already running.
// A storefront cart is store-side shared state, so one scan per store at a
// time is a hard rule.
var ErrScanInFlight = errors.New("scan already in flight for store")

// ScanFunc runs one inventory scan against a store URL. It is injectable so
// tests can substitute a stub for the real scraper.
type ScanFunc func(ctx context.Context, storeURL string) *models.ScanResult

// Service owns scan scheduling: the in-flight set, the periodic due-store
// check, alert evaluation, and a short-lived cache of latest results.
type Service struct {
	cfg     *config.Config
	store   *storage.Store
	pipe    *pipeline.Pipeline
	scan    ScanFunc
	metrics *scraper.Metrics

	mu       sync.Mutex
	inflight map[int64]struct{}

	cache *expirable.LRU[int64, *models.ScanResult]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService builds the scheduler service. metrics may be shared with the
// rest of the application for the /metrics endpoint.
func NewService(cfg *config.Config, store *storage.Store, pipe *pipeline.Pipeline, metrics *scraper.Metrics) *Service {
	s := &Service{
		cfg:      cfg,
		store:    store,
		pipe:     pipe,
		metrics:  metrics,
		inflight: make(map[int64]struct{}),
		cache:    expirable.NewLRU[int64, *models.ScanResult](cfg.CacheSize, nil, cfg.CacheTTL),
	}
	s.scan = s.runScraper
	return s
}

// SetScanFunc overrides the scan implementation; tests use this.
func (s *Service) SetScanFunc(fn ScanFunc) {
	s.scan = fn
}

// runScraper creates a fresh scraper per scan so blacklist, cookies, and
// inventory state never leak across scans.
func (s *Service) runScraper(ctx context.Context, storeURL string) *models.ScanResult {
	sc, err := scraper.NewScraper(s.cfg, storeURL, "", s.metrics)
	if err != nil {
		return &models.ScanResult{
			Success:   false,
			StoreURL:  storeURL,
			Error:     err.Error(),
			Timestamp: time.Now().UTC(),
		}
	}
	return sc.Scan(ctx)
}

// Start launches the periodic due-store check and cleanup loops when the
// scheduler is enabled. It must be called before TriggerScan.
func (s *Service) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if !s.cfg.EnableScheduler {
		slog.Info("scheduler disabled, scans run on demand only")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		check := time.NewTicker(s.cfg.CheckInterval)
		cleanup := time.NewTicker(s.cfg.CleanupInterval)
		defer check.Stop()
		defer cleanup.Stop()

		slog.Info("scheduler started",
			slog.Duration("check_interval", s.cfg.CheckInterval),
			slog.Duration("cleanup_interval", s.cfg.CleanupInterval),
		)
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-check.C:
				s.checkDueStores()
			case <-cleanup.C:
				s.runCleanup()
			}
		}
	}()
}

// Stop cancels the loops and waits for in-flight scans to finish.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	slog.Info("scheduler stopped")
}

// InFlight reports whether a scan for the store is currently running.
func (s *Service) InFlight(storeID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[storeID]
	return ok
}

// CachedResult returns the most recent scan result still held in memory.
func (s *Service) CachedResult(storeID int64) (*models.ScanResult, bool) {
	return s.cache.Get(storeID)
}

// TriggerScan starts a scan for the store immediately. It returns
// ErrScanInFlight when one is already running.
func (s *Service) TriggerScan(storeID int64) error {
	store, err := s.store.GetStore(s.ctx, storeID)
	if err != nil {
		return err
	}
	if !s.acquire(store.ID) {
		return ErrScanInFlight
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(store.ID)
		s.scanStore(*store)
	}()
	return nil
}

func (s *Service) acquire(storeID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.inflight[storeID]; running {
		return false
	}
	s.inflight[storeID] = struct{}{}
	return true
}

func (s *Service) release(storeID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, storeID)
}

func (s *Service) checkDueStores() {
	stores, err := s.store.ListDueStores(s.ctx, time.Now())
	if err != nil {
		slog.Error("listing due stores", slog.Any("error", err))
		return
	}

	for _, store := range stores {
		if !s.acquire(store.ID) {
			continue
		}
		store := store
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release(store.ID)
			s.scanStore(store)
		}()
	}
}

// scanStore runs one scan and records everything it produced. The scraper
// never returns an error; failed scans are persisted with their message so
// history shows the gap.
func (s *Service) scanStore(store models.Store) {
	slog.Info("scanning store", slog.Int64("store_id", store.ID), slog.String("name", store.Name))

	result := s.scan(s.ctx, store.URL)
	s.cache.Add(store.ID, result)

	// Persistence must outlive a shutdown signal so a finished scan is
	// never lost.
	ctx := context.WithoutCancel(s.ctx)

	if err := s.pipe.Process(&pipeline.Entry{StoreID: store.ID, Result: result}); err != nil {
		slog.Error("queueing scan result", slog.Int64("store_id", store.ID), slog.Any("error", err))
	}

	now := time.Now().UTC()
	next := now.Add(s.scanInterval(store))
	if result.Success {
		if err := s.store.MarkScanned(ctx, store.ID, result.Statistics, now, next); err != nil {
			slog.Error("updating store after scan", slog.Int64("store_id", store.ID), slog.Any("error", err))
		}
		s.evaluateAlerts(ctx, store, result)
	} else {
		// Push the next attempt out so a broken store does not get
		// rescanned on every tick.
		if err := s.store.RescheduleScan(ctx, store.ID, next); err != nil {
			slog.Error("rescheduling store after failed scan", slog.Int64("store_id", store.ID), slog.Any("error", err))
		}
	}
}

func (s *Service) scanInterval(store models.Store) time.Duration {
	if store.ScanInterval > 0 {
		return time.Duration(store.ScanInterval) * time.Second
	}
	return s.cfg.DefaultScanInterval
}

// evaluateAlerts raises low-stock and out-of-stock alerts for valid
// variants, deduplicated against unresolved alerts for the same variant.
func (s *Service) evaluateAlerts(ctx context.Context, store models.Store, result *models.ScanResult) {
	if !store.NotifyLowStock {
		return
	}

	for i := range result.Products {
		product := &result.Products[i]
		for j := range product.Variants {
			variant := &product.Variants[j]
			if !variant.IsValid {
				continue
			}

			var alertType string
			switch {
			case variant.Stock == 0:
				alertType = models.AlertOutOfStock
			case variant.Stock <= store.LowStockThreshold:
				alertType = models.AlertLowStock
			default:
				continue
			}

			variantID := fmt.Sprintf("%d", variant.ID)
			open, err := s.store.HasOpenAlert(ctx, store.ID, variantID)
			if err != nil {
				slog.Error("checking open alerts", slog.Int64("store_id", store.ID), slog.Any("error", err))
				continue
			}
			if open {
				continue
			}

			alert := &models.StockAlert{
				StoreID:      store.ID,
				ProductID:    fmt.Sprintf("%d", product.ID),
				ProductTitle: product.Title,
				VariantID:    variantID,
				VariantTitle: variant.Title,
				AlertType:    alertType,
				CurrentStock: variant.Stock,
				Threshold:    store.LowStockThreshold,
			}
			if err := s.store.CreateAlert(ctx, alert); err != nil {
				slog.Error("creating alert", slog.Int64("store_id", store.ID), slog.Any("error", err))
				continue
			}
			slog.Warn("stock alert",
				slog.String("type", alertType),
				slog.String("product", product.Title),
				slog.String("variant", variant.Title),
				slog.Int("stock", variant.Stock),
			)
		}
	}
}

func (s *Service) runCleanup() {
	now := time.Now()
	scans, alerts, err := s.store.Cleanup(s.ctx,
		now.Add(-s.cfg.ResultRetention),
		now.Add(-s.cfg.AlertRetention),
	)
	if err != nil {
		slog.Error("cleanup failed", slog.Any("error", err))
		return
	}
	slog.Info("cleanup finished",
		slog.Int64("scan_results_deleted", scans),
		slog.Int64("alerts_deleted", alerts),
	)
}
