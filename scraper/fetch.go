package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/shopmon/go-shopify-monitor/models"
)

type productsPayload struct {
	Products []models.Product `json:"products"`
}

type fetchStrategy struct {
	name string
	fn   func(context.Context) ([]models.Product, error)
}

// fetchProducts tries each strategy in order, retrying with exponential
// backoff, and returns the first non-empty catalog. Session cookies set by a
// successful response live in the shared jar and are reused by cart probing.
func (s *Scraper) fetchProducts(ctx context.Context) ([]models.Product, error) {
	strategies := []fetchStrategy{
		{name: "browser", fn: s.fetchWithBrowser},
		{name: "plain", fn: s.fetchWithPlain},
		{name: "paginated", fn: s.fetchWithPagination},
	}

	for _, strategy := range strategies {
		for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
			slog.Debug("fetching catalog",
				slog.String("store", s.storeURL),
				slog.String("strategy", strategy.name),
				slog.Int("attempt", attempt+1),
			)

			products, err := strategy.fn(ctx)
			if err == nil && len(products) > 0 {
				s.metrics.IncFetchAttempt(strategy.name, "success")
				slog.Info("catalog fetched",
					slog.String("store", s.storeURL),
					slog.String("strategy", strategy.name),
					slog.Int("products", len(products)),
				)
				return products, nil
			}

			if err != nil {
				classified := classifyError(err, 0)
				s.metrics.IncFetchAttempt(strategy.name, errorTypeLabel(classified))
				slog.Warn("fetch strategy failed",
					slog.String("store", s.storeURL),
					slog.String("strategy", strategy.name),
					slog.Any("error", classified),
				)
			} else {
				s.metrics.IncFetchAttempt(strategy.name, "empty")
			}

			if err := sleep(ctx, s.backoff(attempt)); err != nil {
				return nil, err
			}
		}
	}

	return nil, ErrAllStrategiesFailed
}

// backoff doubles per attempt starting from the configured base, capped at
// the configured maximum.
func (s *Scraper) backoff(attempt int) time.Duration {
	base := s.cfg.RetryBackoff
	if base <= 0 {
		return 0
	}
	delay := base * time.Duration(1<<attempt)
	if max := s.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (s *Scraper) fetchWithBrowser(ctx context.Context) ([]models.Product, error) {
	return s.fetchPage(ctx, s.browser, 0)
}

func (s *Scraper) fetchWithPlain(ctx context.Context) ([]models.Product, error) {
	return s.fetchPage(ctx, s.plain, 0)
}

// fetchWithPagination accumulates pages until a short, empty, or non-200
// page, with a delay between pages to avoid rate limiting.
func (s *Scraper) fetchWithPagination(ctx context.Context) ([]models.Product, error) {
	var all []models.Product

	for page := 1; page <= s.cfg.MaxPages; page++ {
		products, err := s.fetchPage(ctx, s.browser, page)
		if err != nil || len(products) == 0 {
			break
		}

		all = append(all, products...)
		if len(products) < s.cfg.PageSize {
			break
		}

		if err := sleep(ctx, s.cfg.PageDelay); err != nil {
			return all, err
		}
	}

	return all, nil
}

func (s *Scraper) fetchPage(ctx context.Context, client *resty.Client, page int) ([]models.Product, error) {
	req := client.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(s.cfg.PageSize))
	if page > 0 {
		req.SetQueryParam("page", strconv.Itoa(page))
	}

	res, err := req.Get("/products.json")
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, classifyError(nil, res.StatusCode())
	}

	var payload productsPayload
	if err := json.Unmarshal(res.Body(), &payload); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return payload.Products, nil
}
