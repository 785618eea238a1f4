package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RecipeID is the site's canonical recipe key (numeric ID). It is both the
// index key and the dedup key.
type RecipeID string

var (
	numericIDRe = regexp.MustCompile(`^\d+$`)
	urlIDRe     = regexp.MustCompile(`rezepte/(\d+)(?:/|$)`)
)

// ParseRecipeID validates a raw identifier.
func ParseRecipeID(raw string) (RecipeID, error) {
	raw = strings.TrimSpace(raw)
	if !numericIDRe.MatchString(raw) {
		return "", fmt.Errorf("%w: invalid recipe id %q", ErrArgument, raw)
	}
	return RecipeID(raw), nil
}

// IDFromURL extracts the recipe ID from a recipe page URL or path.
func IDFromURL(raw string) (RecipeID, error) {
	m := urlIDRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", fmt.Errorf("%w: no recipe id in url %q", ErrArgument, raw)
	}
	return RecipeID(m[1]), nil
}

func (id RecipeID) String() string { return string(id) }

// Ingredient is one row of a recipe's ingredient table.
type Ingredient struct {
	Name   string `json:"name" yaml:"name"`
	Amount string `json:"amount" yaml:"amount"`
}

// Comment is a user comment attached to a recipe.
type Comment struct {
	Author    string    `json:"author" yaml:"author"`
	Text      string    `json:"text" yaml:"text"`
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Recipe is the normalized record written to disk for every fetched recipe.
type Recipe struct {
	ID           RecipeID     `json:"id" yaml:"id"`
	URL          string       `json:"url" yaml:"url"`
	Title        string       `json:"title" yaml:"title"`
	Author       string       `json:"author,omitempty" yaml:"author,omitempty"`
	Category     string       `json:"category,omitempty" yaml:"category,omitempty"`
	Breadcrumbs  []string     `json:"category_breadcrumbs,omitempty" yaml:"category_breadcrumbs,omitempty"`
	Keywords     []string     `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Images       []string     `json:"images,omitempty" yaml:"images,omitempty"`
	CreatedAt    time.Time    `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Ingredients  []Ingredient `json:"ingredients" yaml:"ingredients"`
	Instructions string       `json:"text" yaml:"text"`
	Related      []RecipeID   `json:"related,omitempty" yaml:"related,omitempty"`
	CommentCount int          `json:"comment_count" yaml:"comment_count"`
	Comments     []Comment    `json:"comments,omitempty" yaml:"comments,omitempty"`
	FetchedAt    time.Time    `json:"fetched_at" yaml:"fetched_at"`
}

// IndexEntry is the minimal record kept per fetched recipe.
type IndexEntry struct {
	ID        RecipeID
	FetchedAt time.Time
}
