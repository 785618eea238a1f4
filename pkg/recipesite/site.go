package recipesite

import (
	"context"
	"fmt"
	"strings"

	"github.com/samvad-hq/soupchef/internal/domain"
	"github.com/samvad-hq/soupchef/internal/fetcher"
	"github.com/samvad-hq/soupchef/internal/logger"
)

// Getter issues one rate-limited GET. *fetcher.Fetcher satisfies it.
type Getter interface {
	Get(ctx context.Context, url string) (fetcher.Page, error)
}

// Options configures a Site.
type Options struct {
	BaseURL    string
	APIBaseURL string
	// Comments bounds the comments fetched per recipe: -1 unbounded, 0 none.
	Comments int
}

// Site knows the portal's URL layout and page structure.
type Site struct {
	getter     Getter
	baseURL    string
	apiBaseURL string
	comments   int
	log        logger.Logger
}

// New creates a Site backed by getter.
func New(getter Getter, opts Options, log logger.Logger) *Site {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	api := strings.TrimRight(strings.TrimSpace(opts.APIBaseURL), "/")
	if api == "" {
		api = DefaultAPIBaseURL
	}
	return &Site{
		getter:     getter,
		baseURL:    base,
		apiBaseURL: api,
		comments:   opts.Comments,
		log:        logger.Ensure(log),
	}
}

// DailyID returns the current recipe of the day.
func (s *Site) DailyID(ctx context.Context) (domain.RecipeID, error) {
	page, err := s.getter.Get(ctx, s.dailyFeedURL())
	if err != nil {
		return "", fmt.Errorf("fetch daily feed: %w", err)
	}
	link, err := ParseDailyFeed(page.Body)
	if err != nil {
		return "", err
	}
	id, err := domain.IDFromURL(link)
	if err != nil {
		return "", fmt.Errorf("%w: daily feed link %q has no recipe id", domain.ErrParse, link)
	}
	return id, nil
}

// SearchPage returns the recipe IDs on one result page. An empty term walks
// the unfiltered catalog.
func (s *Site) SearchPage(ctx context.Context, term string, page int, sort domain.SortMode) ([]domain.RecipeID, error) {
	u := s.SearchURL(term, page, sort)
	resp, err := s.getter.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetch result page %d: %w", page, err)
	}
	ids, err := ParseSearchResults(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("result page %s: %w", u, err)
	}
	return ids, nil
}

// RandomID follows the random recipe redirect and returns the landing ID.
func (s *Site) RandomID(ctx context.Context) (domain.RecipeID, error) {
	page, err := s.getter.Get(ctx, s.randomURL())
	if err != nil {
		return "", fmt.Errorf("fetch random recipe: %w", err)
	}
	id, err := domain.IDFromURL(page.FinalURL)
	if err != nil {
		return "", fmt.Errorf("%w: random recipe redirect ended at %q", domain.ErrParse, page.FinalURL)
	}
	return id, nil
}

// FetchRecipe downloads and parses a recipe page plus its comments. Comment
// failures are logged and leave the comment list empty.
func (s *Site) FetchRecipe(ctx context.Context, id domain.RecipeID) (domain.Recipe, error) {
	u := s.RecipeURL(id)
	page, err := s.getter.Get(ctx, u)
	if err != nil {
		return domain.Recipe{}, err
	}
	recipe, err := ParseRecipe(page.Body, id)
	if err != nil {
		return domain.Recipe{}, fmt.Errorf("recipe %s: %w", id, err)
	}
	recipe.URL = u

	if s.comments != 0 {
		comments, err := s.FetchComments(ctx, id, s.comments)
		switch {
		case err == nil:
			recipe.Comments = comments
		case ctx.Err() != nil:
			return domain.Recipe{}, ctx.Err()
		default:
			s.log.WarnObj("could not fetch comments", "comments_error", map[string]any{
				"id":    id,
				"error": err.Error(),
			})
		}
	}
	recipe.CommentCount = len(recipe.Comments)
	return recipe, nil
}

// FetchComments loads up to limit comments, oldest first. A limit of -1
// requests all of them.
func (s *Site) FetchComments(ctx context.Context, id domain.RecipeID, limit int) ([]domain.Comment, error) {
	page, err := s.getter.Get(ctx, s.commentsURL(id, limit))
	if err != nil {
		return nil, fmt.Errorf("fetch comments: %w", err)
	}
	comments, err := ParseComments(page.Body)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(comments) > limit {
		comments = comments[:limit]
	}
	s.log.DebugObj("fetched comments", "comments", map[string]any{"id": id, "count": len(comments)})
	return comments, nil
}
