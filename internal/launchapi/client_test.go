package launchapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/launchfeed/launchfeed/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  2 * time.Millisecond,
		MaxDelay:      50 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func pageBody(next string, ids ...string) string {
	results := ""
	for i, id := range ids {
		if i > 0 {
			results += ","
		}
		results += fmt.Sprintf(`{
			"id": %q,
			"name": "Mission %s",
			"net": "2026-09-01T12:00:00Z",
			"status": {"name": "Go for Launch", "abbrev": "Go"},
			"launch_service_provider": {"name": "SpaceX"},
			"rocket": {"configuration": {"name": "Falcon 9", "full_name": "Falcon 9 Block 5"}},
			"mission": {"description": "A mission.", "orbit": {"name": "LEO"}},
			"pad": {"name": "LC-39A", "location": {"name": "Kennedy Space Center"}, "wiki_url": "https://wiki/39a"},
			"image": {"image_url": "https://img/x.png"}
		}`, id, id)
	}
	nextJSON := "null"
	if next != "" {
		nextJSON = fmt.Sprintf("%q", next)
	}
	return fmt.Sprintf(`{"count": %d, "next": %s, "results": [%s]}`, len(ids), nextJSON, results)
}

func TestFetchFirstPage_DecodesAndTracksCursor(t *testing.T) {
	var requests int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("missing Accept header")
		}
		fmt.Fprint(w, pageBody(server.URL+"/?offset=30", "a", "b"))
	}))
	defer server.Close()

	c := NewClient(server.URL, testLogger(), Options{Policy: fastPolicy()})
	launches, err := c.FetchFirstPage(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(launches) != 2 {
		t.Fatalf("got %d launches, want 2", len(launches))
	}
	if launches[0].ID != "a" || launches[0].RocketName != "Falcon 9 Block 5" {
		t.Errorf("unexpected first launch: %+v", launches[0])
	}
	if !c.HasNextPage() {
		t.Error("cursor should be held after a page with next")
	}
}

func TestFetchNextPage_ExhaustionReturnsEmptyWithoutRequest(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		fmt.Fprint(w, pageBody("", "a"))
	}))
	defer server.Close()

	c := NewClient(server.URL, testLogger(), Options{Policy: fastPolicy()})
	if _, err := c.FetchFirstPage(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.HasNextPage() {
		t.Fatal("null next cursor should clear the cursor")
	}

	before := atomic.LoadInt32(&requests)
	launches, err := c.FetchNextPage(context.Background())
	if err != nil {
		t.Fatalf("exhaustion must not be an error: %v", err)
	}
	if len(launches) != 0 {
		t.Errorf("got %d launches, want empty page", len(launches))
	}
	if atomic.LoadInt32(&requests) != before {
		t.Error("exhausted pagination must not make a network request")
	}
}

func TestFetchFirstPage_RetriesRateLimitWithDoublingBackoff(t *testing.T) {
	var requests int32
	var stamps []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stamps = append(stamps, time.Now())
		n := atomic.AddInt32(&requests, 1)
		if n <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, pageBody("", "a"))
	}))
	defer server.Close()

	policy := &RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  20 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}
	c := NewClient(server.URL, testLogger(), Options{Policy: policy})

	launches, err := c.FetchFirstPage(context.Background())
	if err != nil {
		t.Fatalf("fourth attempt should succeed: %v", err)
	}
	if len(launches) != 1 {
		t.Fatalf("got %d launches, want 1", len(launches))
	}
	if got := atomic.LoadInt32(&requests); got != 4 {
		t.Fatalf("made %d requests, want 4", got)
	}

	// Gaps should roughly double: ~20ms, ~40ms, ~80ms.
	gaps := make([]time.Duration, 0, 3)
	for i := 1; i < len(stamps); i++ {
		gaps = append(gaps, stamps[i].Sub(stamps[i-1]))
	}
	for i, want := range []time.Duration{20, 40, 80} {
		min := want * time.Millisecond
		if gaps[i] < min {
			t.Errorf("gap %d = %v, want at least %v", i, gaps[i], min)
		}
	}
}

func TestFetchFirstPage_ServerErrorsRetryThenSurface(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, testLogger(), Options{Policy: fastPolicy()})
	_, err := c.FetchFirstPage(context.Background())
	if err == nil {
		t.Fatal("expected error after retry budget")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusInternalServerError {
		t.Errorf("expected wrapped StatusError 500, got %v", err)
	}
	if got := atomic.LoadInt32(&requests); got != 4 {
		t.Errorf("made %d requests, want 4 (1 + 3 retries)", got)
	}
}

func TestFetchFirstPage_DecodeErrorIsNeverRetried(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		fmt.Fprint(w, `{"results": "this is not a list"`)
	}))
	defer server.Close()

	c := NewClient(server.URL, testLogger(), Options{Policy: fastPolicy()})
	_, err := c.FetchFirstPage(context.Background())
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("made %d requests, decode errors must not be retried", got)
	}
}

func TestFetchFirstPage_UnauthorizedSurfacesDirectly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient(server.URL, testLogger(), Options{Policy: fastPolicy()})
	_, err := c.FetchFirstPage(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestFetchFirstPage_CancellationIsDistinct(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	c := NewClient(server.URL, testLogger(), Options{Policy: fastPolicy()})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.FetchFirstPage(ctx)
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}

func TestFetchLaunch_SingleRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/abc/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{
			"id": "abc",
			"name": "Mission abc",
			"net": "not a timestamp",
			"status": {"name": "Launch Successful"},
			"launch_service_provider": {"name": "Rocket Lab"},
			"rocket": {"configuration": {"name": "Electron"}},
			"pad": {"name": "LC-1A", "location": {"name": "Mahia"}}
		}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, testLogger(), Options{Policy: fastPolicy()})
	launch, err := c.FetchLaunch(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}
	if launch.Status != models.StatusSuccessful {
		t.Errorf("status = %v, want successful", launch.Status)
	}
	if launch.LaunchTime != nil {
		t.Error("unparsable net must map to a nil launch time, never now")
	}
	if launch.RocketName != "Electron" {
		t.Errorf("rocket = %q", launch.RocketName)
	}

	if _, err := c.FetchLaunch(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
