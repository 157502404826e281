package enrichment

import (
	"fmt"
	"strings"

	"github.com/launchfeed/launchfeed/internal/models"
)

// PromptTemplates holds the system and user prompts for launch description
// generation.
type PromptTemplates struct {
	SystemPrompt string
}

// NewPromptTemplates creates the default prompts.
func NewPromptTemplates() *PromptTemplates {
	return &PromptTemplates{SystemPrompt: systemPrompt}
}

const systemPrompt = `You MUST output ONLY valid JSON with no text before or after it and no markdown fences.

You are a spaceflight writer producing concise, factual launch descriptions for a launch-tracking app.

Guidelines:
- Stick to the provided mission facts; do not invent payloads, customers, or dates
- Neutral, informative tone; no hype
- The short description is a single sentence under 140 characters
- The detailed description is two to four sentences

Output format, exactly:
{
  "shortDescription": "One sentence describing the launch",
  "detailedDescription": "Two to four sentences with mission context"
}`

// BuildLaunchPrompt renders the fixed-shape user prompt from launch fields.
func (p *PromptTemplates) BuildLaunchPrompt(launch models.Launch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write descriptions for this rocket launch.\n\n")
	fmt.Fprintf(&b, "Mission name: %s\n", launch.Name)
	fmt.Fprintf(&b, "Launch provider: %s\n", launch.ProviderName)
	fmt.Fprintf(&b, "Rocket: %s\n", launch.RocketName)
	fmt.Fprintf(&b, "Launch site: %s\n", launch.LocationName)
	if launch.OrbitName != "" {
		fmt.Fprintf(&b, "Target orbit: %s\n", launch.OrbitName)
	}
	if launch.DetailedDescription != "" {
		fmt.Fprintf(&b, "\nProvider mission notes:\n%s\n", launch.DetailedDescription)
	}
	return b.String()
}
