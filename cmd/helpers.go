package main

import (
	"context"
	"time"

	"github.com/home-economics/pricemaps/internal/acquire"
	"github.com/home-economics/pricemaps/internal/config"
	"github.com/home-economics/pricemaps/internal/fetcher"
	"github.com/home-economics/pricemaps/internal/store"
)

// newHTTPFetcher builds the shared HTTP fetcher from config.
func newHTTPFetcher(cfg config.FetchConfig) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.UserAgent,
		Timeout:      time.Duration(cfg.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.MaxRetries,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
}

// openAcquire wires the acquisition service and its store. The caller
// closes the returned store.
func openAcquire(ctx context.Context) (*acquire.Service, store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	return acquire.NewService(newHTTPFetcher(cfg.Fetch), st), st, nil
}
