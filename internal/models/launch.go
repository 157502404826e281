package models

import (
	"strings"
	"time"
)

// Launch is the canonical internal launch record. The ID is assigned by the
// data provider and never changes across refresh cycles; every other field is
// replaced wholesale by a newer fetch or an enrichment merge. Merges produce a
// new record, existing records are never mutated in place.
type Launch struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	LaunchTime          *time.Time   `json:"launch_time,omitempty"`
	Status              LaunchStatus `json:"status"`
	RocketName          string       `json:"rocket_name"`
	ProviderName        string       `json:"provider_name"`
	LocationName        string       `json:"location_name"`
	ImageURL            string       `json:"image_url,omitempty"`
	ShortDescription    string       `json:"short_description,omitempty"`
	DetailedDescription string       `json:"detailed_description,omitempty"`
	OrbitName           string       `json:"orbit_name,omitempty"`
	WikiURL             string       `json:"wiki_url,omitempty"`
	Badges              []Badge      `json:"badges,omitempty"`
}

// Badge tags a launch for the consumer surface.
type Badge string

const (
	BadgeNotable     Badge = "notable"
	BadgeLive        Badge = "live"
	BadgeExclusive   Badge = "exclusive"
	BadgeFirstLaunch Badge = "first-launch"
)

// LaunchStatus is the closed internal status enumeration.
type LaunchStatus string

const (
	StatusUpcoming   LaunchStatus = "upcoming"
	StatusLaunching  LaunchStatus = "launching"
	StatusSuccessful LaunchStatus = "successful"
	StatusFailed     LaunchStatus = "failed"
	StatusDelayed    LaunchStatus = "delayed"
	StatusCancelled  LaunchStatus = "cancelled"
	StatusUnknown    LaunchStatus = "unknown"
)

// statusRules maps provider status text fragments to internal statuses in
// priority order: terminal outcomes win over transient ones, so a text
// containing both "hold" and "cancel" maps to cancelled. The order of this
// table is the documented precedence; do not reorder casually.
var statusRules = []struct {
	substr string
	status LaunchStatus
}{
	{"success", StatusSuccessful},
	{"fail", StatusFailed},
	{"cancel", StatusCancelled},
	{"hold", StatusDelayed},
	{"in flight", StatusLaunching},
	{"go", StatusUpcoming},
}

// ParseStatus maps free-text provider status names to the internal
// enumeration. The match is case-insensitive and substring-based; every input
// maps to exactly one status, unrecognized or empty text maps to unknown.
func ParseStatus(text string) LaunchStatus {
	lowered := strings.ToLower(text)
	for _, rule := range statusRules {
		if strings.Contains(lowered, rule.substr) {
			return rule.status
		}
	}
	return StatusUnknown
}

// Enrichment holds AI-generated descriptions for a single launch, keyed by
// launch id. Created once per id, overwritten only by a fresh successful
// enrichment call.
type Enrichment struct {
	ShortDescription    string        `json:"short_description"`
	DetailedDescription string        `json:"detailed_description"`
	Status              *LaunchStatus `json:"status,omitempty"`
}

// Merge returns a copy of the launch with enrichment applied. Enrichment
// descriptions take priority over provider-supplied text, never the reverse;
// a status override replaces the provider status when present.
func Merge(launch Launch, e Enrichment) Launch {
	merged := launch
	if e.ShortDescription != "" {
		merged.ShortDescription = e.ShortDescription
	}
	if e.DetailedDescription != "" {
		merged.DetailedDescription = e.DetailedDescription
	}
	if e.Status != nil {
		merged.Status = *e.Status
	}
	return merged
}

// Differs reports whether the fields a milestone re-check cares about
// (status, launch time, location) changed between two revisions of the same
// launch.
func (l Launch) Differs(other Launch) bool {
	if l.Status != other.Status || l.LocationName != other.LocationName {
		return true
	}
	switch {
	case l.LaunchTime == nil && other.LaunchTime == nil:
		return false
	case l.LaunchTime == nil || other.LaunchTime == nil:
		return true
	default:
		return !l.LaunchTime.Equal(*other.LaunchTime)
	}
}
