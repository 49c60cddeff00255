// Package agents holds one content-generation strategy per event
// category. Agents are stateless: they build prompts from an event plus
// a context record and post-process raw model output into a draft.
// They never perform I/O themselves.
package agents

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mochikko/diary-server/internal/models"
)

// Agent is a single category's strategy.
type Agent struct {
	Category models.EventCategory

	// Required lists context keys that must be present before a prompt
	// can be built.
	Required []string

	prompt string
}

// Registry maps each category to its agent.
type Registry struct {
	agents map[models.EventCategory]Agent
}

// NewRegistry builds the full strategy table.
func NewRegistry() *Registry {
	table := []Agent{
		{Category: models.CategoryWeather, Required: []string{"condition"}, prompt: weatherPrompt},
		{Category: models.CategoryHoliday, Required: []string{"holiday_name"}, prompt: holidayPrompt},
		{Category: models.CategoryFriends, Required: []string{"change"}, prompt: friendsPrompt},
		{Category: models.CategorySameFrequency, Required: []string{"peer_name"}, prompt: sameFrequencyPrompt},
		{Category: models.CategoryAdoption, Required: []string{"days_since_adoption"}, prompt: adoptionPrompt},
		{Category: models.CategoryInteraction, Required: []string{"action"}, prompt: interactionPrompt},
		{Category: models.CategoryDialogue, Required: []string{"summary"}, prompt: dialoguePrompt},
		{Category: models.CategoryNeglect, Required: []string{"duration_bucket"}, prompt: neglectPrompt},
		{Category: models.CategoryTrending, Required: []string{"topics"}, prompt: trendingPrompt},
	}

	r := &Registry{agents: make(map[models.EventCategory]Agent, len(table))}
	for _, a := range table {
		r.agents[a.Category] = a
	}
	return r
}

// Lookup returns the agent for a category.
func (r *Registry) Lookup(c models.EventCategory) (Agent, bool) {
	a, ok := r.agents[c]
	return a, ok
}

// BuildPrompt renders the category prompt from the context record.
// strict appends the hardened length constraint used on the single
// regeneration attempt after a format violation.
func (a Agent) BuildPrompt(ev models.Event, rec map[string]string, strict bool) (string, error) {
	for _, key := range a.Required {
		if strings.TrimSpace(rec[key]) == "" {
			return "", fmt.Errorf("agent %s: missing required context %q", a.Category, key)
		}
	}

	p := fmt.Sprintf(a.prompt, formatRecord(rec)) + outputFormat
	if strict {
		p += strictSuffix
	}
	return p, nil
}

// formatRecord renders a context record as sorted "key: value" lines so
// prompts are stable across runs.
func formatRecord(rec map[string]string) string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, rec[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

// PostProcess parses the raw model output into a draft. Models wrap
// JSON in code fences often enough that fences are stripped first.
func (a Agent) PostProcess(raw string) (models.Draft, error) {
	cleaned := stripFences(raw)

	var d models.Draft
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return models.Draft{}, fmt.Errorf("agent %s: parsing draft: %w", a.Category, err)
	}
	d.Title = strings.TrimSpace(d.Title)
	d.Content = strings.TrimSpace(d.Content)
	d.Emotion = strings.ToLower(strings.TrimSpace(d.Emotion))
	if d.Content == "" {
		return models.Draft{}, fmt.Errorf("agent %s: draft has empty content", a.Category)
	}
	return d, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	// Some models prepend prose; cut to the outermost JSON object.
	if start := strings.Index(s, "{"); start > 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
