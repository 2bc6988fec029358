package revocation

import (
	"context"
	"crypto/x509"
	"errors"
	"log/slog"
	"time"

	"peticao/internal/platform/config"
	"peticao/pkg/platform/sentinel"
)

// snapshotRetention is the hard cache expiry. Snapshots older than the
// freshness TTL but younger than this still serve the stale tier.
const snapshotRetention = 7 * 24 * time.Hour

// Checker resolves a certificate's revocation status through the tiers:
//
//  1. fresh cached snapshot              -> method "cached"
//  2. live OCSP query                    -> method "live_fallback"
//  3. on-demand CRL download + cache     -> method "discovered"
//  4. stale snapshot, flagged            -> method "cached", stale
//  5. nothing worked                     -> method "unknown", policy-gated
type Checker struct {
	cache       Cache
	fetcher     *Fetcher
	authorities map[string]config.AuthorityTrust
	aliases     map[string]string
	ttl         time.Duration
	strict      bool
	logger      *slog.Logger
	now         func() time.Time
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithCheckerLogger attaches a logger.
func WithCheckerLogger(l *slog.Logger) CheckerOption {
	return func(c *Checker) { c.logger = l }
}

// WithSnapshotTTL overrides the snapshot freshness window.
func WithSnapshotTTL(d time.Duration) CheckerOption {
	return func(c *Checker) { c.ttl = d }
}

// WithStrict sets the policy for unknown status: strict fails, the
// permissive alternative passes with a warning.
func WithStrict(strict bool) CheckerOption {
	return func(c *Checker) { c.strict = strict }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) CheckerOption {
	return func(c *Checker) { c.now = now }
}

// NewChecker creates a Checker. authorities carries the configured
// endpoints and aliases from the trust file.
func NewChecker(cache Cache, fetcher *Fetcher, authorities map[string]config.AuthorityTrust, opts ...CheckerOption) *Checker {
	c := &Checker{
		cache:       cache,
		fetcher:     fetcher,
		authorities: authorities,
		aliases:     make(map[string]string),
		ttl:         26 * time.Hour,
		strict:      true,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for key, auth := range authorities {
		for _, alias := range auth.Aliases {
			c.aliases[NormalizeAuthority(alias)] = key
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check resolves the revocation status of cert, issued by issuer.
func (c *Checker) Check(ctx context.Context, cert, issuer *x509.Certificate) Outcome {
	now := c.now()
	authority := c.resolveAuthority(issuer.Subject.CommonName)
	log := c.logger.With("authority", authority, "serial", cert.SerialNumber.String())

	// Tier 1: fresh snapshot.
	snap, err := c.cache.GetSnapshot(ctx, authority)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		log.Warn("snapshot lookup failed", "error", err)
		snap = nil
	}
	if snap != nil && snap.Fresh(now, c.ttl) {
		return c.fromSnapshot(snap, cert, MethodCached, false, now)
	}

	// Tier 2: live OCSP.
	for _, url := range c.ocspURLs(cert, authority) {
		status, reason, err := queryOCSP(ctx, c.fetcher, url, cert, issuer)
		if err != nil {
			log.Warn("ocsp query failed", "url", url, "error", err)
			continue
		}
		if status == StatusUnknown {
			continue
		}
		return Outcome{
			Status:    status,
			Method:    MethodLive,
			Authority: authority,
			Reason:    reason,
			Allowed:   status == StatusGood,
			CheckedAt: now,
		}
	}

	// Tier 3: on-demand CRL discovery.
	for _, ep := range c.crlEndpoints(ctx, cert, authority) {
		der, err := c.fetcher.Get(ctx, ep.url)
		if err != nil {
			log.Warn("crl fetch failed", "url", ep.url, "error", err)
			continue
		}
		fresh, err := SnapshotFromCRL(der, authority, ep.url, issuer, now)
		if err != nil {
			log.Warn("crl rejected", "url", ep.url, "error", err)
			continue
		}
		if err := c.cache.PutSnapshot(ctx, fresh, snapshotRetention); err != nil {
			log.Warn("snapshot store failed", "error", err)
		}
		if ep.discovered {
			if err := c.cache.RegisterEndpoint(ctx, authority, ep.url); err != nil {
				log.Warn("endpoint registration failed", "url", ep.url, "error", err)
			}
		}
		return c.fromSnapshot(fresh, cert, MethodDiscovered, false, now)
	}

	// Tier 4: stale snapshot, better than nothing but flagged.
	if snap != nil {
		out := c.fromSnapshot(snap, cert, MethodCached, true, now)
		log.Warn("serving stale revocation snapshot", "fetched_at", snap.FetchedAt)
		return out
	}

	// Tier 5: unknown.
	out := Outcome{
		Status:    StatusUnknown,
		Method:    MethodUnknown,
		Authority: authority,
		Allowed:   !c.strict,
		CheckedAt: now,
	}
	if !c.strict {
		out.Warning = "revocation status unknown, accepted under permissive policy"
	}
	return out
}

func (c *Checker) fromSnapshot(snap *Snapshot, cert *x509.Certificate, method string, stale bool, now time.Time) Outcome {
	out := Outcome{
		Status:    StatusGood,
		Method:    method,
		Authority: snap.Authority,
		Stale:     stale,
		Allowed:   true,
		CheckedAt: now,
	}
	if reason, revoked := snap.Lookup(cert.SerialNumber); revoked {
		out.Status = StatusRevoked
		out.Reason = reason
		out.Allowed = false
	}
	if stale {
		out.Warning = "revocation answer from stale snapshot"
	}
	return out
}

func (c *Checker) resolveAuthority(issuerCN string) string {
	key := NormalizeAuthority(issuerCN)
	if _, ok := c.authorities[key]; ok {
		return key
	}
	if canonical, ok := c.aliases[key]; ok {
		return canonical
	}
	return key
}

func (c *Checker) ocspURLs(cert *x509.Certificate, authority string) []string {
	urls := append([]string(nil), cert.OCSPServer...)
	if auth, ok := c.authorities[authority]; ok && auth.OCSPURL != "" {
		urls = append(urls, auth.OCSPURL)
	}
	return dedup(urls)
}

type crlEndpoint struct {
	url string
	// discovered marks endpoints taken from the certificate rather
	// than from configuration; those get registered for the refresher.
	discovered bool
}

func (c *Checker) crlEndpoints(ctx context.Context, cert *x509.Certificate, authority string) []crlEndpoint {
	var eps []crlEndpoint
	seen := make(map[string]bool)
	add := func(url string, discovered bool) {
		if url == "" || seen[url] {
			return
		}
		seen[url] = true
		eps = append(eps, crlEndpoint{url: url, discovered: discovered})
	}

	for _, url := range cert.CRLDistributionPoints {
		add(url, true)
	}
	if auth, ok := c.authorities[authority]; ok {
		for _, url := range auth.CRLURLs {
			add(url, false)
		}
	}
	if known, err := c.cache.Endpoints(ctx, authority); err == nil {
		for _, url := range known {
			add(url, false)
		}
	}
	return eps
}

func dedup(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
