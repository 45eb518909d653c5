package scraper

import (
	"context"
	"errors"

	"github.com/use-agent/savings/models"
)

// categorizeError maps a browser error to a ScrapeError, treating context
// expiry as a timeout and anything else as a navigation failure.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "load canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
