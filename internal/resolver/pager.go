package resolver

import (
	"context"
	"io"

	"github.com/samvad-hq/soupchef/internal/domain"
	"github.com/samvad-hq/soupchef/internal/logger"
)

// maxPageFailures consecutive failed pages end a term.
const maxPageFailures = 3

// pager walks result pages term by term. Each page is one batch. A term ends
// when a page adds no new identifier or after maxPageFailures failed pages in
// a row; the whole walk ends when the count is reached. Identifiers are
// unique across terms.
type pager struct {
	site  Site
	terms []string
	sort  domain.SortMode
	start int
	limit int
	log   logger.Logger

	term     int
	page     int
	emitted  int
	failures int
	seen     map[domain.RecipeID]struct{}
}

func newPager(site Site, terms []string, req domain.FetchRequest, log logger.Logger) *pager {
	return &pager{
		site:  site,
		terms: terms,
		sort:  req.Sort,
		start: req.StartPage,
		limit: req.Count,
		log:   log,
		page:  req.StartPage,
		seen:  make(map[domain.RecipeID]struct{}),
	}
}

func (p *pager) Next(ctx context.Context) ([]domain.RecipeID, error) {
	for p.term < len(p.terms) {
		if p.limit != domain.Unbounded && p.emitted >= p.limit {
			return nil, io.EOF
		}

		term := p.terms[p.term]
		ids, err := p.site.SearchPage(ctx, term, p.page, p.sort)
		if err != nil {
			if ctx.Err() != nil || !domain.IsItemError(err) {
				return nil, err
			}
			p.failures++
			p.log.WarnObj("result page failed", "page_error", map[string]any{
				"term":    term,
				"page":    p.page,
				"attempt": p.failures,
				"error":   err.Error(),
			})
			if p.failures >= maxPageFailures {
				p.nextTerm()
			} else {
				p.page++
			}
			continue
		}
		p.failures = 0

		fresh := make([]domain.RecipeID, 0, len(ids))
		for _, id := range ids {
			if _, ok := p.seen[id]; ok {
				continue
			}
			p.seen[id] = struct{}{}
			fresh = append(fresh, id)
		}
		p.log.DebugObj("result page", "page", map[string]any{
			"term":  term,
			"page":  p.page,
			"found": len(ids),
			"new":   len(fresh),
		})
		if len(fresh) == 0 {
			p.nextTerm()
			continue
		}
		p.page++

		if p.limit != domain.Unbounded && p.emitted+len(fresh) > p.limit {
			fresh = fresh[:p.limit-p.emitted]
		}
		p.emitted += len(fresh)
		return fresh, nil
	}
	return nil, io.EOF
}

func (p *pager) nextTerm() {
	p.term++
	p.page = p.start
	p.failures = 0
}
