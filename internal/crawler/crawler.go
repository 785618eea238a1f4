package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/samvad-hq/soupchef/internal/domain"
	"github.com/samvad-hq/soupchef/internal/logger"
	"github.com/samvad-hq/soupchef/internal/resolver"
	"github.com/samvad-hq/soupchef/pkg/publishers"
)

// Deps carries everything a run touches. Nothing is read from globals.
type Deps struct {
	Index     Index
	Site      RecipeSource
	Writer    RecipeWriter
	Publisher EventPublisher
	Metrics   Recorder
	// Probe re-checks the output root after a filesystem error. A failing
	// probe aborts the run.
	Probe func() error
	Log   logger.Logger
	Now   func() time.Time
}

// Options tunes a run.
type Options struct {
	RecursionDepth int
	Force          bool
	IndexOnly      bool
	RunID          string
}

// Summary counts the outcomes of a run.
type Summary struct {
	Fetched int
	Skipped int
	Failed  int
	Indexed int
	Levels  int
}

// Controller walks recipes breadth first: level 0 is the resolver output,
// every further level holds the unvisited related recipes of the previous
// one. Each identifier is visited at most once per run.
type Controller struct {
	deps Deps
	opts Options

	visited map[domain.RecipeID]struct{}
	next    []domain.RecipeID
	summary Summary
}

// New wires a Controller.
func New(deps Deps, opts Options) *Controller {
	deps.Log = logger.Ensure(deps.Log)
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.RecursionDepth < 0 {
		opts.RecursionDepth = 0
	}
	return &Controller{deps: deps, opts: opts}
}

// ShouldFetch is the single skip decision: a recipe is fetched when forced or
// when it is not yet indexed.
func ShouldFetch(id domain.RecipeID, force bool, index Index) bool {
	return force || !index.Contains(id)
}

// Run consumes src and walks related recipes up to the configured depth.
// Per-recipe failures are logged and counted; only cancellation and an
// unusable output root end the run early.
func (c *Controller) Run(ctx context.Context, src resolver.Source) (Summary, error) {
	if c == nil || c.deps.Index == nil {
		return Summary{}, fmt.Errorf("crawler is not initialized")
	}
	if !c.opts.IndexOnly && (c.deps.Site == nil || c.deps.Writer == nil) {
		return Summary{}, fmt.Errorf("crawler requires a recipe source and writer")
	}

	c.visited = make(map[domain.RecipeID]struct{})
	c.next = nil
	c.summary = Summary{}

	if err := c.runRoot(ctx, src); err != nil {
		return c.finish(err)
	}

	for depth := 1; depth <= c.opts.RecursionDepth && len(c.next) > 0; depth++ {
		frontier := c.next
		c.next = nil
		c.deps.Log.InfoObj("fetching recursion level", "level", map[string]any{
			"depth":   depth,
			"of":      c.opts.RecursionDepth,
			"recipes": len(frontier),
		})
		c.summary.Levels = depth
		for _, id := range frontier {
			if err := c.process(ctx, id, depth); err != nil {
				return c.finish(err)
			}
		}
	}

	return c.finish(nil)
}

func (c *Controller) runRoot(ctx context.Context, src resolver.Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !domain.IsItemError(err) {
				return err
			}
			c.deps.Log.WarnObj("input resolution failed", "resolve_error", err.Error())
			continue
		}
		for _, id := range batch {
			if !c.markVisited(id) {
				c.deps.Log.DebugObj("identifier repeated in input", "id", id)
				continue
			}
			if err := c.process(ctx, id, 0); err != nil {
				return err
			}
		}
	}
}

func (c *Controller) markVisited(id domain.RecipeID) bool {
	if _, ok := c.visited[id]; ok {
		return false
	}
	c.visited[id] = struct{}{}
	return true
}

func (c *Controller) process(ctx context.Context, id domain.RecipeID, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !ShouldFetch(id, c.opts.Force, c.deps.Index) {
		c.summary.Skipped++
		c.deps.Metrics.RecipeSkipped()
		if depth == 0 {
			c.deps.Log.WarnObj("skipping duplicate on level 0, use --force to fetch it again", "id", id)
		} else {
			c.deps.Log.DebugObj("skipping duplicate", "id", id)
		}
		return nil
	}

	if c.opts.IndexOnly {
		if err := c.deps.Index.Add(id); err != nil {
			return c.filesystemFailure(id, err)
		}
		c.summary.Indexed++
		c.deps.Metrics.RecipeIndexed()
		c.deps.Log.InfoObj("indexed without fetching", "id", id)
		return nil
	}

	c.deps.Log.InfoObj("fetching recipe", "id", id)
	recipe, err := c.deps.Site.FetchRecipe(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.itemFailure(id, err)
		return nil
	}
	recipe.ID = id
	recipe.FetchedAt = c.deps.Now().UTC()

	path, err := c.deps.Writer.Write(recipe)
	if err != nil {
		return c.filesystemFailure(id, err)
	}
	// the index append is the last step, so a crash before it only costs a re-fetch
	if err := c.deps.Index.Add(id); err != nil {
		return c.filesystemFailure(id, err)
	}
	c.summary.Fetched++
	c.summary.Indexed++
	c.deps.Metrics.RecipeFetched()
	c.deps.Metrics.RecipeIndexed()
	c.deps.Log.DebugObj("recipe stored", "recipe", map[string]any{"id": id, "path": path})

	c.publish(ctx, recipe, path)

	if depth < c.opts.RecursionDepth {
		for _, rel := range recipe.Related {
			if c.markVisited(rel) {
				c.next = append(c.next, rel)
			}
		}
	}
	return nil
}

func (c *Controller) publish(ctx context.Context, recipe domain.Recipe, path string) {
	if c.deps.Publisher == nil {
		return
	}
	evt := publishers.NewRecipeEvent(c.opts.RunID, recipe, path)
	if _, err := c.deps.Publisher.Publish(ctx, evt); err != nil {
		c.deps.Log.WarnObj("recipe event publish failed", "publish_error", map[string]any{
			"id":    recipe.ID,
			"error": err.Error(),
		})
	}
}

func (c *Controller) itemFailure(id domain.RecipeID, err error) {
	c.summary.Failed++
	c.deps.Metrics.RecipeFailed()
	c.deps.Log.WarnObj("recipe failed", "recipe_error", map[string]any{
		"id":    id,
		"error": err.Error(),
	})
}

// filesystemFailure skips the recipe unless the output root itself has become
// unusable, in which case the run aborts.
func (c *Controller) filesystemFailure(id domain.RecipeID, err error) error {
	if c.deps.Probe != nil {
		if perr := c.deps.Probe(); perr != nil {
			return fmt.Errorf("%w: output root unusable after failure on %s: %v", domain.ErrFilesystem, id, errors.Join(err, perr))
		}
	}
	c.itemFailure(id, err)
	return nil
}

func (c *Controller) finish(err error) (Summary, error) {
	c.deps.Log.InfoObj(fmt.Sprintf("fetched %d recipes", c.summary.Fetched), "summary", c.summary)
	return c.summary, err
}
