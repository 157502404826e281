package enrichment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/launchfeed/launchfeed/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleLaunch() models.Launch {
	return models.Launch{
		ID:                  "launch-1",
		Name:                "Falcon 9 | Starlink Group 12-1",
		ProviderName:        "SpaceX",
		RocketName:          "Falcon 9 Block 5",
		LocationName:        "Cape Canaveral",
		OrbitName:           "Low Earth Orbit",
		DetailedDescription: "A batch of Starlink satellites.",
	}
}

// completionServer returns an httptest server speaking just enough of the
// chat-completion wire format, and a client pointed at it.
func completionServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = server.URL + "/v1"
	return NewClient(cfg, testLogger())
}

func completionBody(content string) string {
	q := strings.ReplaceAll(content, `\`, `\\`)
	q = strings.ReplaceAll(q, `"`, `\"`)
	q = strings.ReplaceAll(q, "\n", `\n`)
	return fmt.Sprintf(`{"id":"cmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"%s"},"finish_reason":"stop"}]}`, q)
}

func TestEnrich_ParsesStructuredCompletion(t *testing.T) {
	c := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody(`{"shortDescription":"Sixty Starlinks up.","detailedDescription":"A routine Starlink batch to low Earth orbit."}`))
	})

	e, err := c.Enrich(context.Background(), sampleLaunch())
	if err != nil {
		t.Fatal(err)
	}
	if e.ShortDescription != "Sixty Starlinks up." {
		t.Errorf("short = %q", e.ShortDescription)
	}
	if e.DetailedDescription != "A routine Starlink batch to low Earth orbit." {
		t.Errorf("detailed = %q", e.DetailedDescription)
	}
	if e.Status != nil {
		t.Errorf("no status override expected, got %v", *e.Status)
	}
}

func TestEnrich_UnparsableCompletionDegradesToRawText(t *testing.T) {
	raw := "Starlink keeps growing; this flight adds sixty more satellites."
	c := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody(raw))
	})

	e, err := c.Enrich(context.Background(), sampleLaunch())
	if err != nil {
		t.Fatalf("fallback must not error: %v", err)
	}
	if e.DetailedDescription != raw {
		t.Errorf("detailed = %q, want the raw completion text", e.DetailedDescription)
	}
	if !strings.Contains(e.ShortDescription, "SpaceX") || !strings.Contains(e.ShortDescription, "Falcon 9 Block 5") {
		t.Errorf("templated short description missing launch fields: %q", e.ShortDescription)
	}
}

func TestEnrich_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"unauthorized", http.StatusUnauthorized, func(err error) bool { return errors.Is(err, ErrUnauthorized) }},
		{"rate limited", http.StatusTooManyRequests, func(err error) bool { return errors.Is(err, ErrRateLimited) }},
		{"server error", http.StatusBadGateway, func(err error) bool {
			var serverErr *ServerError
			return errors.As(err, &serverErr) && serverErr.Code == http.StatusBadGateway
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error":{"message":"nope","type":"api_error"}}`)
			})

			_, err := c.Enrich(context.Background(), sampleLaunch())
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error mapping: %v", err)
			}
		})
	}
}

func TestParseCompletion_StatusOverride(t *testing.T) {
	e, err := parseCompletion(`{"shortDescription":"s","detailedDescription":"d","status":"Launch was put on hold"}`)
	if err != nil {
		t.Fatal(err)
	}
	if e.Status == nil || *e.Status != models.StatusDelayed {
		t.Errorf("expected delayed status override, got %+v", e.Status)
	}
}

func TestParseCompletion_StripsMarkdownFence(t *testing.T) {
	e, err := parseCompletion("```json\n{\"shortDescription\":\"s\",\"detailedDescription\":\"d\"}\n```")
	if err != nil {
		t.Fatal(err)
	}
	if e.ShortDescription != "s" || e.DetailedDescription != "d" {
		t.Errorf("fence not stripped: %+v", e)
	}
}

func TestBuildLaunchPrompt_ContainsLaunchFields(t *testing.T) {
	prompt := NewPromptTemplates().BuildLaunchPrompt(sampleLaunch())
	for _, want := range []string{"Falcon 9 | Starlink Group 12-1", "SpaceX", "Falcon 9 Block 5", "Cape Canaveral", "Low Earth Orbit", "A batch of Starlink satellites."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestMockEnricher_Deterministic(t *testing.T) {
	m := NewMockEnricher()
	a, err := m.Enrich(context.Background(), sampleLaunch())
	if err != nil {
		t.Fatal(err)
	}
	b, _ := m.Enrich(context.Background(), sampleLaunch())
	if a != b {
		t.Error("mock enrichment must be deterministic")
	}
	if a.ShortDescription == "" || a.DetailedDescription == "" {
		t.Errorf("mock enrichment incomplete: %+v", a)
	}
}
