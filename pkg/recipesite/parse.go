package recipesite

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/samvad-hq/soupchef/internal/domain"
)

const (
	maxHTMLBodyBytes = 8 << 20 // 8 MiB
)

var (
	spaceRe      = regexp.MustCompile(`\s+`)
	relatedHdrRe = regexp.MustCompile(`^Weitere Rezepte`)
	dateLayouts  = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}
)

func norm(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// ParseRecipe extracts a recipe from its HTML page. Structured JSON-LD data is
// preferred; page markup fills the gaps. A page without a title is a
// domain.ErrParse.
func ParseRecipe(body []byte, id domain.RecipeID) (domain.Recipe, error) {
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return domain.Recipe{}, fmt.Errorf("%w: parse html: %v", domain.ErrParse, err)
	}

	var recipe, crumbs ldNode
	for _, n := range ldNodes(doc) {
		switch {
		case n.is("Recipe") && recipe.Name == "":
			recipe = n
		case n.is("BreadcrumbList") && len(crumbs.Elements) == 0:
			crumbs = n
		}
	}

	r := domain.Recipe{
		ID:    id,
		Title: norm(firstNonEmpty(recipe.Name, doc.Find("h1").First().Text())),
	}
	if r.Title == "" {
		return domain.Recipe{}, fmt.Errorf("%w: no recipe title found", domain.ErrParse)
	}

	if len(recipe.Author) > 0 {
		r.Author = recipe.Author[0]
	}
	r.Keywords = splitKeywords(recipe.Keywords)
	r.Breadcrumbs = breadcrumbs(doc, crumbs)
	switch {
	case len(recipe.Category) > 0:
		r.Category = recipe.Category[0]
	case len(r.Breadcrumbs) > 0:
		r.Category = r.Breadcrumbs[len(r.Breadcrumbs)-1]
	}
	r.CreatedAt = parsePublished(recipe.DatePublished)
	r.Images = images(doc, recipe.Image)
	r.Ingredients = ingredients(doc, recipe.Ingredients)
	r.Instructions = firstNonEmpty(instructionText(recipe.Instructions), sectionText(doc, "Zubereitung"))
	r.Related = relatedIDs(doc, id)

	return r, nil
}

func splitKeywords(raw ldStrings) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, entry := range raw {
		for _, kw := range strings.Split(entry, ",") {
			kw = norm(kw)
			if kw == "" {
				continue
			}
			if _, ok := seen[kw]; ok {
				continue
			}
			seen[kw] = struct{}{}
			out = append(out, kw)
		}
	}
	return out
}

// breadcrumbs returns the navigation trail without the leading home link.
func breadcrumbs(doc *goquery.Document, list ldNode) []string {
	var trail []string
	for _, el := range list.Elements {
		name := norm(el.Name)
		if name == "" && len(el.Item) > 0 {
			var item struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(el.Item, &item); err == nil {
				name = norm(item.Name)
			}
		}
		if name != "" {
			trail = append(trail, name)
		}
	}
	if len(trail) == 0 {
		doc.Find(".ds-container ol").First().Find("li").Each(func(_ int, li *goquery.Selection) {
			if t := norm(li.Text()); t != "" {
				trail = append(trail, t)
			}
		})
	}
	if len(trail) > 1 {
		return trail[1:]
	}
	return nil
}

func parsePublished(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func images(doc *goquery.Document, ld ldURLs) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	for _, u := range ld {
		add(u)
	}
	if len(out) == 0 {
		doc.Find(`amp-img[src*="bilder"], img[src*="/rezepte/"][src*="bilder"]`).Each(func(_ int, s *goquery.Selection) {
			add(s.AttrOr("src", ""))
		})
	}
	return out
}

// ingredients reads the amount/name tables below the "Zutaten" heading. When
// the page has none, the JSON-LD ingredient lines are used as names.
func ingredients(doc *goquery.Document, ld []string) []domain.Ingredient {
	var out []domain.Ingredient
	heading := headingWithText(doc, func(t string) bool { return t == "Zutaten" })
	if heading.Length() > 0 {
		heading.Parent().Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() < 2 {
				return
			}
			name := norm(cells.Eq(1).Text())
			if name == "" {
				return
			}
			out = append(out, domain.Ingredient{Name: name, Amount: norm(cells.Eq(0).Text())})
		})
	}
	if len(out) > 0 {
		return out
	}
	for _, line := range ld {
		if line = norm(line); line != "" {
			out = append(out, domain.Ingredient{Name: line})
		}
	}
	return out
}

func sectionText(doc *goquery.Document, title string) string {
	heading := headingWithText(doc, func(t string) bool { return t == title })
	if heading.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(heading.NextAllFiltered("div").First().Text())
}

func relatedIDs(doc *goquery.Document, self domain.RecipeID) []domain.RecipeID {
	heading := headingWithText(doc, relatedHdrRe.MatchString)
	if heading.Length() == 0 {
		return nil
	}
	var out []domain.RecipeID
	seen := map[domain.RecipeID]struct{}{self: {}}
	heading.NextAllFiltered("div").First().Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		id, err := domain.IDFromURL(a.AttrOr("href", ""))
		if err != nil {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	})
	return out
}

func headingWithText(doc *goquery.Document, match func(string) bool) *goquery.Selection {
	return doc.Find("h2").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return match(norm(s.Text()))
	}).First()
}

// ParseSearchResults returns the recipe IDs listed on a search or catalog
// page in page order. A page without a result list yields no IDs.
func ParseSearchResults(body []byte) ([]domain.RecipeID, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", domain.ErrParse, err)
	}
	var ids []domain.RecipeID
	seen := map[domain.RecipeID]struct{}{}
	for _, n := range ldNodes(doc) {
		if !n.is("ItemList") {
			continue
		}
		for _, el := range n.Elements {
			id, err := domain.IDFromURL(el.URL)
			if err != nil {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type rssFeed struct {
	Channel struct {
		Items []struct {
			Title string `xml:"title"`
			Link  string `xml:"link"`
		} `xml:"item"`
	} `xml:"channel"`
}

// ParseDailyFeed returns the link of the first feed item.
func ParseDailyFeed(body []byte) (string, error) {
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return "", fmt.Errorf("%w: decode daily feed: %v", domain.ErrParse, err)
	}
	for _, item := range feed.Channel.Items {
		if link := strings.TrimSpace(item.Link); link != "" {
			return link, nil
		}
	}
	return "", fmt.Errorf("%w: daily feed has no items", domain.ErrParse)
}

type commentsPayload struct {
	Count   int `json:"count"`
	Results []struct {
		Text      string `json:"text"`
		CreatedAt string `json:"createdAt"`
		Owner     struct {
			Username string `json:"username"`
		} `json:"owner"`
	} `json:"results"`
}

// ParseComments decodes a comments API response.
func ParseComments(body []byte) ([]domain.Comment, error) {
	var payload commentsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode comments: %v", domain.ErrParse, err)
	}
	comments := make([]domain.Comment, 0, len(payload.Results))
	for _, c := range payload.Results {
		comments = append(comments, domain.Comment{
			Author:    strings.TrimSpace(c.Owner.Username),
			Text:      strings.TrimSpace(c.Text),
			CreatedAt: parsePublished(c.CreatedAt),
		})
	}
	return comments, nil
}
