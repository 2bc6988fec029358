package revocation

import (
	"context"
	"log/slog"
	"time"

	"peticao/internal/platform/config"
)

// Refresher keeps authority snapshots warm so the checker's first tier
// answers most verifications. It covers the configured endpoints plus
// any endpoint the checker discovered from certificates since.
type Refresher struct {
	cache       Cache
	fetcher     *Fetcher
	authorities map[string]config.AuthorityTrust
	interval    time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewRefresher creates a Refresher over the configured authorities.
func NewRefresher(cache Cache, fetcher *Fetcher, authorities map[string]config.AuthorityTrust, interval time.Duration, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		cache:       cache,
		fetcher:     fetcher,
		authorities: authorities,
		interval:    interval,
		logger:      logger,
		now:         time.Now,
	}
}

// Run refreshes immediately, then on every interval tick until the
// context is canceled.
func (r *Refresher) Run(ctx context.Context) {
	r.RefreshAll(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RefreshAll(ctx)
		}
	}
}

// RefreshAll refreshes every configured authority once. Failures are
// logged per authority and do not stop the sweep; the stale tier keeps
// serving until the next attempt.
func (r *Refresher) RefreshAll(ctx context.Context) {
	for key, auth := range r.authorities {
		if err := r.refreshAuthority(ctx, key, auth); err != nil {
			r.logger.Warn("authority refresh failed", "authority", key, "error", err)
		}
	}
}

func (r *Refresher) refreshAuthority(ctx context.Context, key string, auth config.AuthorityTrust) error {
	urls := append([]string(nil), auth.CRLURLs...)
	if discovered, err := r.cache.Endpoints(ctx, key); err == nil {
		urls = append(urls, discovered...)
	}
	urls = dedup(urls)

	var lastErr error
	for _, url := range urls {
		der, err := r.fetcher.Get(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		// No issuer certificate is at hand during a background
		// refresh; the CRL parses unverified here and any revoked
		// verdict is still cross-checked against the issuer when a
		// certificate is actually verified.
		snap, err := SnapshotFromCRL(der, key, url, nil, r.now())
		if err != nil {
			lastErr = err
			continue
		}
		if err := r.cache.PutSnapshot(ctx, snap, snapshotRetention); err != nil {
			return err
		}
		r.logger.Info("revocation snapshot refreshed",
			"authority", key, "source", url, "revoked", len(snap.Revoked))
		return nil
	}
	return lastErr
}
