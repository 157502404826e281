package enrichment

import (
	"context"
	"fmt"

	"github.com/launchfeed/launchfeed/internal/models"
)

// MockEnricher is a deterministic rule-based Enricher for tests and offline
// runs without API credentials.
type MockEnricher struct{}

// NewMockEnricher creates a mock enricher.
func NewMockEnricher() *MockEnricher {
	return &MockEnricher{}
}

// Enrich templates descriptions from the launch fields themselves.
func (m *MockEnricher) Enrich(_ context.Context, launch models.Launch) (models.Enrichment, error) {
	detailed := fmt.Sprintf("%s is launching %s from %s.", launch.ProviderName, launch.RocketName, launch.LocationName)
	if launch.OrbitName != "" {
		detailed += fmt.Sprintf(" The mission targets %s.", launch.OrbitName)
	}
	if launch.DetailedDescription != "" {
		detailed += " " + launch.DetailedDescription
	}
	return models.Enrichment{
		ShortDescription:    fmt.Sprintf("%s aboard %s.", launch.Name, launch.RocketName),
		DetailedDescription: detailed,
	}, nil
}
