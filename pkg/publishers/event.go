package publishers

import (
	"encoding/json"
	"time"

	"github.com/samvad-hq/soupchef/internal/domain"
)

// Message attribute keys shared by all sinks that support attributes.
const (
	AttrRecipeID = "recipe_id"
	AttrRunID    = "run_id"
	AttrCategory = "category"
)

// RecipeEvent is the notification published after a recipe has been written
// and indexed.
type RecipeEvent struct {
	RunID     string          `json:"run_id"`
	RecipeID  domain.RecipeID `json:"recipe_id"`
	Title     string          `json:"title"`
	Category  string          `json:"category,omitempty"`
	URL       string          `json:"url"`
	Path      string          `json:"path,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// NewRecipeEvent builds the event for a stored recipe.
func NewRecipeEvent(runID string, recipe domain.Recipe, path string) RecipeEvent {
	fetchedAt := recipe.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	return RecipeEvent{
		RunID:     runID,
		RecipeID:  recipe.ID,
		Title:     recipe.Title,
		Category:  recipe.Category,
		URL:       recipe.URL,
		Path:      path,
		FetchedAt: fetchedAt,
	}
}

// Encode returns the JSON payload sent to every sink.
func (e RecipeEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Attributes returns the routing attributes for the event. Empty values are
// left out.
func (e RecipeEvent) Attributes() map[string]string {
	attrs := map[string]string{AttrRecipeID: e.RecipeID.String()}
	if e.RunID != "" {
		attrs[AttrRunID] = e.RunID
	}
	if e.Category != "" {
		attrs[AttrCategory] = e.Category
	}
	return attrs
}

// DedupKey identifies one delivery of a recipe within a run. A re-fetch in a
// later run yields a new key.
func (e RecipeEvent) DedupKey() string {
	if e.RunID == "" {
		return e.RecipeID.String()
	}
	return e.RunID + "-" + e.RecipeID.String()
}
