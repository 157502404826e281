package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/launchfeed/launchfeed/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCached_Expired(t *testing.T) {
	at := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	entry := NewCached("v", at)
	ttl := 5 * time.Minute

	tests := []struct {
		name     string
		now      time.Time
		expected bool
	}{
		{"fresh", at.Add(4 * time.Minute), false},
		{"exactly at ttl is not expired", at.Add(5 * time.Minute), false},
		{"one second past ttl", at.Add(5*time.Minute + time.Second), true},
		{"far past", at.Add(time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entry.Expired(ttl, tt.now); got != tt.expected {
				t.Errorf("Expired() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func sampleLaunches() []models.Launch {
	at := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	return []models.Launch{
		{
			ID:                  "launch-1",
			Name:                "Falcon 9 | Starlink Group 12-1",
			LaunchTime:          &at,
			Status:              models.StatusUpcoming,
			RocketName:          "Falcon 9",
			ProviderName:        "SpaceX",
			LocationName:        "Cape Canaveral",
			ImageURL:            "https://img.example/launch-1.png",
			ShortDescription:    "short",
			DetailedDescription: "long",
			OrbitName:           "Low Earth Orbit",
			WikiURL:             "https://en.wikipedia.org/wiki/Starlink",
			Badges:              []models.Badge{models.BadgeLive, models.BadgeNotable},
		},
		// All optional fields absent.
		{
			ID:           "launch-2",
			Name:         "Vulcan | Cert-2",
			Status:       models.StatusUnknown,
			RocketName:   "Vulcan",
			ProviderName: "ULA",
			LocationName: "SLC-41",
		},
	}
}

func TestDiskStore_LaunchRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewDiskStore(dir, time.Minute, time.Hour, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	want := sampleLaunches()
	store.PutLaunches(ctx, want)

	// Fresh store against the same directory forces a disk read.
	reread, err := NewDiskStore(dir, time.Minute, time.Hour, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	got, ok := reread.GetLaunches(ctx)
	if !ok {
		t.Fatal("expected a cache hit from disk")
	}
	if len(got) != len(want) {
		t.Fatalf("got %d launches, want %d", len(got), len(want))
	}
	for i := range want {
		assertLaunchEqual(t, got[i], want[i])
	}
}

func assertLaunchEqual(t *testing.T, got, want models.Launch) {
	t.Helper()
	if got.ID != want.ID || got.Name != want.Name || got.Status != want.Status ||
		got.RocketName != want.RocketName || got.ProviderName != want.ProviderName ||
		got.LocationName != want.LocationName || got.ImageURL != want.ImageURL ||
		got.ShortDescription != want.ShortDescription ||
		got.DetailedDescription != want.DetailedDescription ||
		got.OrbitName != want.OrbitName || got.WikiURL != want.WikiURL {
		t.Errorf("launch %s: round-trip mismatch\n got %+v\nwant %+v", want.ID, got, want)
	}
	if (got.LaunchTime == nil) != (want.LaunchTime == nil) {
		t.Errorf("launch %s: launch time presence mismatch", want.ID)
	} else if got.LaunchTime != nil && !got.LaunchTime.Equal(*want.LaunchTime) {
		t.Errorf("launch %s: launch time %v, want %v", want.ID, got.LaunchTime, want.LaunchTime)
	}
	if len(got.Badges) != len(want.Badges) {
		t.Errorf("launch %s: badges %v, want %v", want.ID, got.Badges, want.Badges)
	}
}

func TestDiskStore_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir(), 5*time.Minute, time.Hour, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	store.PutLaunches(ctx, sampleLaunches())

	store.now = func() time.Time { return base.Add(4 * time.Minute) }
	if _, ok := store.GetLaunches(ctx); !ok {
		t.Error("4 minutes old with 5 minute TTL must hit")
	}

	store.now = func() time.Time { return base.Add(5 * time.Minute) }
	if _, ok := store.GetLaunches(ctx); !ok {
		t.Error("exactly at TTL must still hit")
	}

	store.now = func() time.Time { return base.Add(5*time.Minute + time.Second) }
	if _, ok := store.GetLaunches(ctx); ok {
		t.Error("past TTL must miss")
	}
}

func TestDiskStore_MissesAreNotErrors(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir(), time.Minute, time.Hour, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := store.GetLaunches(ctx); ok {
		t.Error("empty store must miss on launches")
	}
	if _, ok := store.GetEnrichment(ctx, "nope"); ok {
		t.Error("empty store must miss on enrichment")
	}
}

func TestDiskStore_EnrichmentPerID(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewDiskStore(dir, time.Minute, time.Hour, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	status := models.StatusDelayed
	want := models.Enrichment{
		ShortDescription:    "A routine Starlink batch.",
		DetailedDescription: "Sixty satellites to low Earth orbit.",
		Status:              &status,
	}
	store.PutEnrichment(ctx, "launch-1", want)
	store.PutEnrichment(ctx, "launch-2", models.Enrichment{ShortDescription: "other"})

	reread, err := NewDiskStore(dir, time.Minute, time.Hour, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	got, ok := reread.GetEnrichment(ctx, "launch-1")
	if !ok {
		t.Fatal("expected enrichment hit from disk")
	}
	if got.ShortDescription != want.ShortDescription || got.DetailedDescription != want.DetailedDescription {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.Status == nil || *got.Status != status {
		t.Errorf("status override lost: %+v", got.Status)
	}
}

func TestDiskStore_IndependentTTLs(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir(), 5*time.Minute, 24*time.Hour, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	store.PutLaunches(ctx, sampleLaunches())
	store.PutEnrichment(ctx, "launch-1", models.Enrichment{ShortDescription: "s"})

	// An hour later the list is stale but enrichment is still valid.
	store.now = func() time.Time { return base.Add(time.Hour) }
	if _, ok := store.GetLaunches(ctx); ok {
		t.Error("launch list must expire on its own short TTL")
	}
	if _, ok := store.GetEnrichment(ctx, "launch-1"); !ok {
		t.Error("enrichment must survive on its long TTL")
	}
}
