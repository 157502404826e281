// Package cache provides the two-tier keyed store for launch lists and
// per-launch enrichment. Launch lists expire on a short TTL (minutes),
// enrichment on a long one (about a day). Reads report misses, never errors;
// writes are best-effort and must not fail the surrounding operation.
package cache

import (
	"context"
	"time"

	"github.com/launchfeed/launchfeed/internal/models"
)

const (
	DefaultLaunchTTL     = 5 * time.Minute
	DefaultEnrichmentTTL = 24 * time.Hour
)

// Store is the cache contract consumed by the orchestrator. An absent,
// expired or undecodable entry is a miss (ok=false); callers treat every miss
// as "proceed to fetch".
type Store interface {
	GetLaunches(ctx context.Context) ([]models.Launch, bool)
	PutLaunches(ctx context.Context, launches []models.Launch)
	GetEnrichment(ctx context.Context, id string) (models.Enrichment, bool)
	PutEnrichment(ctx context.Context, id string, e models.Enrichment)
}
