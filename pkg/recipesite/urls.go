package recipesite

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/samvad-hq/soupchef/internal/domain"
)

const (
	// DefaultBaseURL is the recipe portal root.
	DefaultBaseURL = "https://www.chefkoch.de"
	// DefaultAPIBaseURL serves the comments API.
	DefaultAPIBaseURL = "https://api.chefkoch.de"

	// ResultsPerPage is the fixed size of a search or listing page.
	ResultsPerPage = 30

	dailyFeedPath  = "/recipe-of-the-day/rss"
	randomPath     = "/rezepte/zufallsrezept/"
	recipePathTmpl = "/rezepte/%s/"
)

// sortCodes maps sort modes to the order segment of listing URLs.
var sortCodes = map[domain.SortMode]string{
	domain.SortRelevance:  "",
	domain.SortRating:     "o3",
	domain.SortDifficulty: "o4",
	domain.SortPrepTime:   "o5",
	domain.SortDaily:      "o7",
	domain.SortDate:       "o8",
}

// SortCode returns the listing order segment for mode.
func SortCode(mode domain.SortMode) string {
	return sortCodes[mode]
}

func (s *Site) RecipeURL(id domain.RecipeID) string {
	return s.baseURL + fmt.Sprintf(recipePathTmpl, id)
}

func (s *Site) dailyFeedURL() string { return s.baseURL + dailyFeedPath }
func (s *Site) randomURL() string    { return s.baseURL + randomPath }

// SearchURL builds the result page URL for term. An empty term addresses the
// unfiltered catalog listing. Pages are 1-based.
func (s *Site) SearchURL(term string, page int, sort domain.SortMode) string {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * ResultsPerPage
	segment := fmt.Sprintf("/rs/s%d%s", offset, SortCode(sort))

	words := strings.Fields(term)
	if len(words) == 0 {
		return s.baseURL + segment + "/Rezepte.html"
	}
	for i, w := range words {
		words[i] = url.PathEscape(w)
	}
	return s.baseURL + segment + "/" + strings.Join(words, "+") + "/Rezepte.html"
}

func (s *Site) commentsURL(id domain.RecipeID, limit int) string {
	q := url.Values{}
	q.Set("offset", "0")
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	q.Set("order", "1")
	q.Set("orderBy", "1")
	return fmt.Sprintf("%s/v2/recipes/%s/comments?%s", s.apiBaseURL, id, q.Encode())
}
