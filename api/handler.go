// Package api exposes the REST surface over storage and the scan scheduler.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopmon/go-shopify-monitor/config"
	"github.com/shopmon/go-shopify-monitor/models"
	"github.com/shopmon/go-shopify-monitor/monitor"
	"github.com/shopmon/go-shopify-monitor/parser"
	"github.com/shopmon/go-shopify-monitor/scraper"
	"github.com/shopmon/go-shopify-monitor/storage"
)

const defaultListLimit = 50

// Handler contains the HTTP handlers.
type Handler struct {
	cfg     *config.Config
	store   *storage.Store
	svc     *monitor.Service
	metrics *scraper.Metrics
}

// NewHandler creates the HTTP handler set.
func NewHandler(cfg *config.Config, store *storage.Store, svc *monitor.Service, metrics *scraper.Metrics) *Handler {
	return &Handler{cfg: cfg, store: store, svc: svc, metrics: metrics}
}

// SetupRoutes registers all routes on the router.
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())

	router.GET("/health", h.healthCheck)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/stores", h.listStores)
		v1.POST("/stores", h.createStore)
		v1.GET("/stores/:id", h.getStore)
		v1.PUT("/stores/:id", h.updateStore)
		v1.DELETE("/stores/:id", h.deleteStore)

		v1.POST("/stores/:id/scan", h.triggerScan)
		v1.GET("/stores/:id/results", h.listResults)
		v1.GET("/stores/:id/latest", h.latestResult)
		v1.GET("/stores/:id/alerts", h.listAlerts)

		v1.POST("/alerts/:id/resolve", h.resolveAlert)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// storeRequest is the creatable/updatable subset of a store record.
type storeRequest struct {
	Name              string `json:"name" binding:"required"`
	URL               string `json:"url" binding:"required"`
	Description       string `json:"description"`
	ScanInterval      int    `json:"scan_interval"`
	Enabled           *bool  `json:"enabled"`
	NotifyLowStock    *bool  `json:"notify_low_stock"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

func (h *Handler) listStores(c *gin.Context) {
	enabledOnly := c.Query("enabled") == "true"
	limit, offset := listParams(c)

	stores, err := h.store.ListStores(c.Request.Context(), enabledOnly, limit, offset)
	if err != nil {
		internalError(c, "Failed to list stores", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stores": stores, "count": len(stores)})
}

func (h *Handler) createStore(c *gin.Context) {
	var req storeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	url := parser.NormalizeStoreURL(req.URL)
	if err := config.ValidateStoreURL(url); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid store URL",
			"details": err.Error(),
		})
		return
	}

	existing, err := h.store.GetStoreByURL(c.Request.Context(), url)
	if err != nil {
		internalError(c, "Failed to check store", err)
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Store already registered", "id": existing.ID})
		return
	}

	store := &models.Store{
		Name:              req.Name,
		URL:               url,
		Description:       req.Description,
		ScanInterval:      req.ScanInterval,
		Enabled:           true,
		NotifyLowStock:    true,
		LowStockThreshold: req.LowStockThreshold,
	}
	if req.Enabled != nil {
		store.Enabled = *req.Enabled
	}
	if req.NotifyLowStock != nil {
		store.NotifyLowStock = *req.NotifyLowStock
	}
	if store.LowStockThreshold <= 0 {
		store.LowStockThreshold = 5
	}

	if err := h.store.CreateStore(c.Request.Context(), store); err != nil {
		internalError(c, "Failed to create store", err)
		return
	}
	c.JSON(http.StatusCreated, store)
}

func (h *Handler) getStore(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	store, err := h.store.GetStore(c.Request.Context(), id)
	if err != nil {
		notFoundOrError(c, "Store not found", err)
		return
	}
	c.JSON(http.StatusOK, store)
}

func (h *Handler) updateStore(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	store, err := h.store.GetStore(c.Request.Context(), id)
	if err != nil {
		notFoundOrError(c, "Store not found", err)
		return
	}

	var req storeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	url := parser.NormalizeStoreURL(req.URL)
	if err := config.ValidateStoreURL(url); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid store URL",
			"details": err.Error(),
		})
		return
	}

	store.Name = req.Name
	store.URL = url
	store.Description = req.Description
	store.ScanInterval = req.ScanInterval
	if req.Enabled != nil {
		store.Enabled = *req.Enabled
	}
	if req.NotifyLowStock != nil {
		store.NotifyLowStock = *req.NotifyLowStock
	}
	if req.LowStockThreshold > 0 {
		store.LowStockThreshold = req.LowStockThreshold
	}

	if err := h.store.UpdateStore(c.Request.Context(), store); err != nil {
		internalError(c, "Failed to update store", err)
		return
	}
	c.JSON(http.StatusOK, store)
}

func (h *Handler) deleteStore(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteStore(c.Request.Context(), id); err != nil {
		notFoundOrError(c, "Store not found", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// triggerScan starts a scan in the background. A scan already in flight for
// the store yields 409.
func (h *Handler) triggerScan(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	err := h.svc.TriggerScan(id)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "scan started", "store_id": id})
	case errors.Is(err, monitor.ErrScanInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "Scan already in progress", "store_id": id})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Store not found"})
	default:
		internalError(c, "Failed to start scan", err)
	}
}

func (h *Handler) listResults(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	limit, _ := listParams(c)

	scans, err := h.store.ListScans(c.Request.Context(), id, limit)
	if err != nil {
		internalError(c, "Failed to list scan results", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": scans, "count": len(scans)})
}

// latestResult serves the most recent scan, preferring the in-memory cache
// over the database.
func (h *Handler) latestResult(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}

	if result, hit := h.svc.CachedResult(id); hit {
		c.JSON(http.StatusOK, gin.H{"source": "cache", "result": result})
		return
	}

	record, err := h.store.LatestScan(c.Request.Context(), id)
	if err != nil {
		internalError(c, "Failed to load latest scan", err)
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No scans recorded for store"})
		return
	}

	result := recordToResult(record)
	c.JSON(http.StatusOK, gin.H{"source": "database", "result": result})
}

func (h *Handler) listAlerts(c *gin.Context) {
	id, ok := storeID(c)
	if !ok {
		return
	}
	limit, _ := listParams(c)

	var resolved *bool
	if raw := c.Query("resolved"); raw != "" {
		val, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid resolved filter"})
			return
		}
		resolved = &val
	}

	alerts, err := h.store.ListAlerts(c.Request.Context(), id, resolved, limit)
	if err != nil {
		internalError(c, "Failed to list alerts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func (h *Handler) resolveAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}
	if err := h.store.ResolveAlert(c.Request.Context(), id); err != nil {
		notFoundOrError(c, "Open alert not found", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved", "alert_id": id})
}

// recordToResult rebuilds a ScanResult from a persisted record, including the
// stored product and inventory blobs.
func recordToResult(record *models.ScanRecord) *models.ScanResult {
	result := &models.ScanResult{
		Success:      record.Success,
		Error:        record.Error,
		Timestamp:    record.Timestamp,
		ScanDuration: record.ScanDuration,
		Statistics: models.Statistics{
			TotalProducts:  record.TotalProducts,
			ValidVariants:  record.ValidVariants,
			AddedToCart:    record.AddedToCart,
			FailedToAdd:    record.FailedToAdd,
			InventoryFound: record.InventoryFound,
			TotalStock:     record.TotalStock,
		},
	}
	if len(record.ProductsData) > 0 {
		_ = json.Unmarshal(record.ProductsData, &result.Products)
	}
	if len(record.InventoryData) > 0 {
		_ = json.Unmarshal(record.InventoryData, &result.Inventory)
	}
	return result
}

func storeID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid store ID"})
		return 0, false
	}
	return id, true
}

func listParams(c *gin.Context) (limit, offset int) {
	limit = defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

func internalError(c *gin.Context, msg string, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

func notFoundOrError(c *gin.Context, msg string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msg})
		return
	}
	internalError(c, "Unexpected storage error", err)
}
