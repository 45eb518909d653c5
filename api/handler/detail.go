package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/savings/cache"
	"github.com/use-agent/savings/fetcher"
	"github.com/use-agent/savings/models"
)

// PairFetcher fetches one detail page and reports failures.
type PairFetcher interface {
	FetchPairs(ctx context.Context, url string) (models.DetailMapping, error)
}

// Detail returns a handler for POST /api/v1/detail.
//
//  1. Parse and validate the request.
//  2. Serve from the cache when max_age allows.
//  3. Fetch and parse the detail page.
//  4. Store in the cache and respond.
func Detail(f PairFetcher, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.DetailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.DetailResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		// ── 2. Cache lookup ─────────────────────────────────────────
		useCache := cc != nil && req.MaxAge > 0
		if useCache {
			if pairs, hit := cc.Get(cache.Key(req.URL), req.MaxAge); hit {
				c.JSON(http.StatusOK, models.DetailResponse{
					Success:     true,
					URL:         req.URL,
					Data:        pairs,
					Pairs:       pairs.Len(),
					CacheStatus: "hit",
					TotalMs:     time.Since(totalStart).Milliseconds(),
				})
				return
			}
		}

		// ── 3. Fetch ────────────────────────────────────────────────
		pairs, err := f.FetchPairs(c.Request.Context(), req.URL)
		if err != nil {
			respondError(c, req.URL, classifyFetchError(err), totalStart)
			return
		}

		// ── 4. Cache store and respond ──────────────────────────────
		resp := models.DetailResponse{
			Success: true,
			URL:     req.URL,
			Data:    pairs,
			Pairs:   pairs.Len(),
		}
		if useCache {
			cc.Set(cache.Key(req.URL), pairs)
			resp.CacheStatus = "miss"
		}
		resp.TotalMs = time.Since(totalStart).Milliseconds()
		c.JSON(http.StatusOK, resp)
	}
}

// classifyFetchError assigns an error code to a detail fetch failure.
func classifyFetchError(err error) *models.ScrapeError {
	switch {
	case errors.Is(err, fetcher.ErrInvalidURL):
		return models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err)
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, "detail page timed out", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, err.Error(), err)
	}
}

// respondError writes a structured JSON error with the matching status.
func respondError(c *gin.Context, url string, e *models.ScrapeError, totalStart time.Time) {
	c.JSON(mapErrorToStatus(e), models.DetailResponse{
		URL:     url,
		Error:   e.ToDetail(),
		TotalMs: time.Since(totalStart).Milliseconds(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeRunInProgress:
		return http.StatusConflict // 409
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	default:
		return http.StatusInternalServerError // 500
	}
}
