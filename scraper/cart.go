package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/shopmon/go-shopify-monitor/models"
)

type cartItem struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

type cartAddPayload struct {
	Items []cartItem `json:"items"`
}

type cartError struct {
	Status      int    `json:"status"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

// clearCart is best effort: a dirty cart degrades probe precision but is not
// scan-fatal, so failures are swallowed.
func (s *Scraper) clearCart(ctx context.Context) {
	res, err := s.browser.R().
		SetContext(ctx).
		Post("/cart/clear.js")
	if err != nil {
		slog.Debug("cart clear failed", slog.String("store", s.storeURL), slog.Any("error", err))
		return
	}
	if !res.IsSuccess() {
		slog.Debug("cart clear rejected", slog.String("store", s.storeURL), slog.Int("status", res.StatusCode()))
	}
}

// batchAdd adds candidates to the cart in fixed-size batches. Every candidate
// ends up counted exactly once: added when its batch succeeds, failed
// otherwise (including candidates dropped by the blacklist re-filter, which
// provably failed in an earlier batch). It never returns an error; network
// and HTTP failures are absorbed into the failed count.
func (s *Scraper) batchAdd(ctx context.Context, candidates []models.Candidate) (added, failed int) {
	for start := 0; start < len(candidates); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		// A 422 in a previous batch may have grown the blacklist.
		batch := make([]models.Candidate, 0, end-start)
		for _, candidate := range candidates[start:end] {
			if _, skip := s.blacklist[candidate.VariantID]; skip {
				failed++
				continue
			}
			batch = append(batch, candidate)
		}
		if len(batch) == 0 {
			continue
		}

		payload := cartAddPayload{Items: make([]cartItem, 0, len(batch))}
		for _, candidate := range batch {
			payload.Items = append(payload.Items, cartItem{ID: candidate.VariantID, Quantity: candidate.Quantity})
		}

		res, err := s.browser.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(payload).
			Post("/cart/add.js")

		switch {
		case err != nil:
			failed += len(batch)
			s.metrics.IncCartBatch("error")
			slog.Error("batch add failed", slog.String("store", s.storeURL), slog.Any("error", err))
		case res.StatusCode() == http.StatusUnprocessableEntity:
			failed += s.handle422(batch, res)
			s.metrics.IncCartBatch("unprocessable")
		case res.IsSuccess():
			added += len(batch)
			s.metrics.IncCartBatch("success")
		default:
			failed += len(batch)
			s.metrics.IncCartBatch("rejected")
			slog.Warn("batch add rejected",
				slog.String("store", s.storeURL),
				slog.Int("status", res.StatusCode()),
				slog.Int("batch_size", len(batch)),
			)
		}

		if err := sleep(ctx, s.cfg.BatchDelay); err != nil {
			// Remaining candidates were never attempted.
			failed += len(candidates) - end
			return added, failed
		}
	}

	return added, failed
}

// handle422 blacklists the variants named in the storefront's error message.
// Shopify reports problem items as "{product title} - {variant title}", so a
// substring match is the best available classifier; since the message does
// not say which subset succeeded, the whole batch counts as failed.
func (s *Scraper) handle422(batch []models.Candidate, res *resty.Response) int {
	var body cartError
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return len(batch)
	}
	message := body.Message + " " + body.Description

	for _, candidate := range batch {
		name := fmt.Sprintf("%s - %s", candidate.Product.Title, candidate.Variant.DisplayTitle())
		if strings.Contains(message, name) {
			s.blacklist[candidate.VariantID] = struct{}{}
			s.metrics.IncBlacklisted()
			slog.Debug("blacklisted variant",
				slog.String("store", s.storeURL),
				slog.Int64("variant_id", candidate.VariantID),
				slog.String("name", name),
			)
		}
	}
	return len(batch)
}
