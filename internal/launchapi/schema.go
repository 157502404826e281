package launchapi

import (
	"time"

	"github.com/launchfeed/launchfeed/internal/models"
)

// Wire types for the provider's paginated launch list. The schema is nested
// and partially optional; every field we do not consume is simply omitted.

type launchPage struct {
	Count   int          `json:"count"`
	Next    *string      `json:"next"`
	Results []wireLaunch `json:"results"`
}

type wireLaunch struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	NET      string       `json:"net"`
	Status   wireStatus   `json:"status"`
	Provider wireProvider `json:"launch_service_provider"`
	Rocket   wireRocket   `json:"rocket"`
	Mission  *wireMission `json:"mission"`
	Pad      wirePad      `json:"pad"`
	Image    *wireImage   `json:"image"`
}

type wireStatus struct {
	Name   string `json:"name"`
	Abbrev string `json:"abbrev"`
}

type wireProvider struct {
	Name string `json:"name"`
}

type wireRocket struct {
	Configuration wireRocketConfig `json:"configuration"`
}

type wireRocketConfig struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

type wireMission struct {
	Description string     `json:"description"`
	Orbit       *wireOrbit `json:"orbit"`
}

type wireOrbit struct {
	Name string `json:"name"`
}

type wirePad struct {
	Name     string       `json:"name"`
	Location wireLocation `json:"location"`
	WikiURL  string       `json:"wiki_url"`
}

type wireLocation struct {
	Name string `json:"name"`
}

type wireImage struct {
	ImageURL string `json:"image_url"`
}

// toLaunch maps a wire record to the internal Launch. The mapping is pure and
// total: missing optional provider fields become absent internal fields, and
// an unparsable timestamp becomes a nil launch time rather than "now", which
// would silently corrupt ordering.
func toLaunch(w wireLaunch) models.Launch {
	launch := models.Launch{
		ID:           w.ID,
		Name:         w.Name,
		LaunchTime:   parseNET(w.NET),
		Status:       models.ParseStatus(w.Status.Name),
		RocketName:   rocketName(w.Rocket.Configuration),
		ProviderName: w.Provider.Name,
		LocationName: w.Pad.Location.Name,
		WikiURL:      w.Pad.WikiURL,
	}
	if w.Image != nil {
		launch.ImageURL = w.Image.ImageURL
	}
	if w.Mission != nil {
		// Provider mission text is the fallback description; enrichment
		// replaces it when available.
		launch.DetailedDescription = w.Mission.Description
		if w.Mission.Orbit != nil {
			launch.OrbitName = w.Mission.Orbit.Name
		}
	}
	return launch
}

func rocketName(cfg wireRocketConfig) string {
	if cfg.FullName != "" {
		return cfg.FullName
	}
	return cfg.Name
}

func parseNET(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}
