package resolver

import (
	"context"
	"fmt"
	"io"

	"github.com/samvad-hq/soupchef/internal/domain"
	"github.com/samvad-hq/soupchef/internal/logger"
)

// Site is the remote surface the resolver needs.
type Site interface {
	DailyID(ctx context.Context) (domain.RecipeID, error)
	SearchPage(ctx context.Context, term string, page int, sort domain.SortMode) ([]domain.RecipeID, error)
	RandomID(ctx context.Context) (domain.RecipeID, error)
}

// IndexReader exposes the stored identifiers for refresh runs.
type IndexReader interface {
	AllIDs() []domain.RecipeID
}

// Source yields recipe identifiers in batches. Next returns io.EOF once the
// sequence is exhausted.
type Source interface {
	Next(ctx context.Context) ([]domain.RecipeID, error)
}

// New validates req and returns the Source for its mode. Explicit URLs and IDs
// are checked here so that malformed input fails before any request.
func New(req domain.FetchRequest, site Site, index IndexReader, log logger.Logger) (Source, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	log = logger.Ensure(log)

	switch req.Mode {
	case domain.ModeDaily:
		return &daily{site: site}, nil
	case domain.ModeSearch:
		return newPager(site, req.Inputs, req, log), nil
	case domain.ModeAll:
		return newPager(site, []string{""}, req, log), nil
	case domain.ModeURL:
		ids := make([]domain.RecipeID, 0, len(req.Inputs))
		for _, raw := range req.Inputs {
			id, err := domain.IDFromURL(raw)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return &static{ids: ids}, nil
	case domain.ModeID:
		ids := make([]domain.RecipeID, 0, len(req.Inputs))
		for _, raw := range req.Inputs {
			id, err := domain.ParseRecipeID(raw)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return &static{ids: ids}, nil
	case domain.ModeRandom:
		return &random{site: site, remaining: req.Count, log: log}, nil
	case domain.ModeRefresh:
		if index == nil {
			return nil, fmt.Errorf("%w: refresh requires an index", domain.ErrArgument)
		}
		return &static{ids: index.AllIDs()}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported mode %s", domain.ErrArgument, req.Mode)
	}
}

// Drain reads src to exhaustion.
func Drain(ctx context.Context, src Source) ([]domain.RecipeID, error) {
	var all []domain.RecipeID
	for {
		batch, err := src.Next(ctx)
		all = append(all, batch...)
		if err == io.EOF {
			return all, nil
		}
		if err != nil {
			return all, err
		}
	}
}

type static struct {
	ids  []domain.RecipeID
	done bool
}

func (s *static) Next(context.Context) ([]domain.RecipeID, error) {
	if s.done {
		return nil, io.EOF
	}
	s.done = true
	return s.ids, nil
}

type daily struct {
	done bool
	site Site
}

func (d *daily) Next(ctx context.Context) ([]domain.RecipeID, error) {
	if d.done {
		return nil, io.EOF
	}
	d.done = true
	id, err := d.site.DailyID(ctx)
	if err != nil {
		return nil, err
	}
	return []domain.RecipeID{id}, nil
}

// random draws one identifier per call from the random recipe endpoint.
// Failed draws are logged and count against the total.
type random struct {
	site      Site
	remaining int
	log       logger.Logger
}

func (r *random) Next(ctx context.Context) ([]domain.RecipeID, error) {
	for r.remaining > 0 {
		r.remaining--
		id, err := r.site.RandomID(ctx)
		if err == nil {
			return []domain.RecipeID{id}, nil
		}
		if ctx.Err() != nil || !domain.IsItemError(err) {
			return nil, err
		}
		r.log.WarnObj("random recipe draw failed", "random_error", err.Error())
	}
	return nil, io.EOF
}
