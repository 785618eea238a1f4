package recipesite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/soupchef/internal/domain"
	"github.com/samvad-hq/soupchef/internal/fetcher"
)

const sampleRecipePage = `<!DOCTYPE html>
<html><head>
<script type="application/ld+json">
{"@context":"http://schema.org","@type":"BreadcrumbList","itemListElement":[
 {"@type":"ListItem","position":1,"item":{"@id":"https://www.chefkoch.de/","name":"Chefkoch"}},
 {"@type":"ListItem","position":2,"item":{"@id":"https://www.chefkoch.de/rezepte/","name":"Rezepte"}},
 {"@type":"ListItem","position":3,"item":{"@id":"https://www.chefkoch.de/rs/s0g34/Suppe.html","name":"Suppe"}}
]}
</script>
<script type="application/ld+json">
{"@context":"http://schema.org","@type":"Recipe",
 "name":"Gulaschsuppe à la Oma",
 "author":{"@type":"Person","name":"kochfan"},
 "keywords":"Suppe, Rind, Hauptspeise, Suppe",
 "recipeCategory":"Suppe",
 "datePublished":"2019-11-03",
 "image":["https://img.chefkoch-cdn.de/rezepte/123/bilder/1/crop-960x640/gulasch.jpg"],
 "recipeIngredient":["500 g Rindfleisch","2 Zwiebeln"],
 "recipeInstructions":[{"@type":"HowToStep","text":"Fleisch anbraten."},{"@type":"HowToStep","text":"Zwiebeln dazu."}]}
</script>
</head><body>
<h1>Gulaschsuppe à la Oma</h1>
<article>
  <h2>Zutaten</h2>
  <table><tbody>
    <tr><td>500  g</td><td>Rindfleisch</td></tr>
    <tr><td>2</td><td> Zwiebeln </td></tr>
    <tr><td>etwas</td><td></td></tr>
  </tbody></table>
</article>
<section>
  <h2>Weitere Rezepte aus der Kategorie</h2>
  <div>
    <a href="https://www.chefkoch.de/rezepte/456/Linsensuppe.html">Linsensuppe</a>
    <a href="/rezepte/789/Erbsensuppe.html">Erbsensuppe</a>
    <a href="/rezepte/456/Linsensuppe.html">again</a>
    <a href="/rezepte/123/Gulaschsuppe.html">self</a>
    <a href="/magazin/artikel.html">not a recipe</a>
  </div>
</section>
</body></html>`

func TestParseRecipeExtractsStructuredFields(t *testing.T) {
	r, err := ParseRecipe([]byte(sampleRecipePage), "123")
	if err != nil {
		t.Fatalf("ParseRecipe: %v", err)
	}
	if r.Title != "Gulaschsuppe à la Oma" || r.Author != "kochfan" || r.Category != "Suppe" {
		t.Fatalf("unexpected header fields: %+v", r)
	}
	if got := strings.Join(r.Keywords, "|"); got != "Suppe|Rind|Hauptspeise" {
		t.Fatalf("unexpected keywords %q", got)
	}
	if got := strings.Join(r.Breadcrumbs, "|"); got != "Rezepte|Suppe" {
		t.Fatalf("unexpected breadcrumbs %q", got)
	}
	if !r.CreatedAt.Equal(time.Date(2019, 11, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected created at %v", r.CreatedAt)
	}
	if len(r.Images) != 1 || !strings.HasSuffix(r.Images[0], "gulasch.jpg") {
		t.Fatalf("unexpected images %v", r.Images)
	}
	if len(r.Ingredients) != 2 || r.Ingredients[0] != (domain.Ingredient{Name: "Rindfleisch", Amount: "500 g"}) {
		t.Fatalf("unexpected ingredients %+v", r.Ingredients)
	}
	if r.Instructions != "Fleisch anbraten.\nZwiebeln dazu." {
		t.Fatalf("unexpected instructions %q", r.Instructions)
	}
	if len(r.Related) != 2 || r.Related[0] != "456" || r.Related[1] != "789" {
		t.Fatalf("unexpected related %v", r.Related)
	}
}

func TestParseRecipeFallsBackToMarkup(t *testing.T) {
	page := `<html><body>
<div class="ds-container"><ol><li>Chefkoch</li><li>Backen</li><li>Kuchen</li></ol></div>
<h1> Apfelkuchen </h1>
<h2>Zubereitung</h2>
<div>  Teig kneten. Backen.  </div>
</body></html>`
	r, err := ParseRecipe([]byte(page), "9")
	if err != nil {
		t.Fatalf("ParseRecipe: %v", err)
	}
	if r.Title != "Apfelkuchen" || r.Instructions != "Teig kneten. Backen." {
		t.Fatalf("unexpected recipe %+v", r)
	}
	if r.Category != "Kuchen" || strings.Join(r.Breadcrumbs, "|") != "Backen|Kuchen" {
		t.Fatalf("unexpected category %q breadcrumbs %v", r.Category, r.Breadcrumbs)
	}
	if !r.CreatedAt.IsZero() || len(r.Related) != 0 {
		t.Fatalf("expected no date and no related recipes")
	}
}

func TestParseRecipeWithoutTitleIsParseError(t *testing.T) {
	_, err := ParseRecipe([]byte(`<html><body><p>Seite nicht gefunden</p></body></html>`), "1")
	if !errors.Is(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestParseSearchResults(t *testing.T) {
	page := `<html><head>
<script type="application/ld+json">{"@type":"Organization","name":"Chefkoch"}</script>
<script type="application/ld+json">
{"@context":"http://schema.org","@type":"ItemList","itemListElement":[
 {"@type":"ListItem","position":1,"url":"https://www.chefkoch.de/rezepte/111/A.html"},
 {"@type":"ListItem","position":2,"url":"https://www.chefkoch.de/rezepte/222/B.html"},
 {"@type":"ListItem","position":3,"url":"https://www.chefkoch.de/rezepte/111/A.html"}
]}
</script></head><body></body></html>`
	ids, err := ParseSearchResults([]byte(page))
	if err != nil {
		t.Fatalf("ParseSearchResults: %v", err)
	}
	if len(ids) != 2 || ids[0] != "111" || ids[1] != "222" {
		t.Fatalf("unexpected ids %v", ids)
	}

	empty, err := ParseSearchResults([]byte(`<html><body>Keine Treffer</body></html>`))
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty result, got %v %v", empty, err)
	}
}

func TestParseDailyFeed(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Rezept des Tages</title>
<item><title>Heute</title><link>https://www.chefkoch.de/rezepte/3333/Heute.html</link></item>
<item><title>Gestern</title><link>https://www.chefkoch.de/rezepte/2222/Gestern.html</link></item>
</channel></rss>`
	link, err := ParseDailyFeed([]byte(feed))
	if err != nil || link != "https://www.chefkoch.de/rezepte/3333/Heute.html" {
		t.Fatalf("unexpected link %q err=%v", link, err)
	}

	if _, err := ParseDailyFeed([]byte(`<rss><channel></channel></rss>`)); !errors.Is(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse for empty feed, got %v", err)
	}
}

func TestParseComments(t *testing.T) {
	body := `{"count":2,"results":[
 {"text":" Lecker! ","createdAt":"2020-01-02T10:00:00+01:00","owner":{"username":"anna"}},
 {"text":"Zu salzig","owner":{"username":"ben"}}]}`
	comments, err := ParseComments([]byte(body))
	if err != nil {
		t.Fatalf("ParseComments: %v", err)
	}
	if len(comments) != 2 || comments[0].Author != "anna" || comments[0].Text != "Lecker!" {
		t.Fatalf("unexpected comments %+v", comments)
	}
	if comments[0].CreatedAt.IsZero() || !comments[1].CreatedAt.IsZero() {
		t.Fatalf("unexpected comment dates %+v", comments)
	}
	if _, err := ParseComments([]byte("<html>")); !errors.Is(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestSearchURL(t *testing.T) {
	s := New(nil, Options{BaseURL: "https://example.test/"}, nil)
	cases := []struct {
		term string
		page int
		sort domain.SortMode
		want string
	}{
		{"Gulasch", 1, domain.SortRelevance, "https://example.test/rs/s0/Gulasch/Rezepte.html"},
		{"  Käse  Spätzle ", 3, domain.SortRating, "https://example.test/rs/s60o3/K%C3%A4se+Sp%C3%A4tzle/Rezepte.html"},
		{"", 2, domain.SortDate, "https://example.test/rs/s30o8/Rezepte.html"},
	}
	for _, tc := range cases {
		if got := s.SearchURL(tc.term, tc.page, tc.sort); got != tc.want {
			t.Fatalf("SearchURL(%q, %d, %s) = %s, want %s", tc.term, tc.page, tc.sort, got, tc.want)
		}
	}
	if got := s.RecipeURL("42"); got != "https://example.test/rezepte/42/" {
		t.Fatalf("unexpected recipe url %s", got)
	}
}

type fakeGetter struct {
	pages map[string]fetcher.Page
	errs  map[string]error
	calls []string
}

func (f *fakeGetter) Get(_ context.Context, url string) (fetcher.Page, error) {
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return fetcher.Page{}, err
	}
	page, ok := f.pages[url]
	if !ok {
		return fetcher.Page{}, domain.ErrNetwork
	}
	if page.FinalURL == "" {
		page.FinalURL = url
	}
	return page, nil
}

func TestFetchRecipeAttachesComments(t *testing.T) {
	getter := &fakeGetter{pages: map[string]fetcher.Page{
		"https://example.test/rezepte/123/": {Body: []byte(sampleRecipePage)},
		"https://api.example.test/v2/recipes/123/comments?limit=1&offset=0&order=1&orderBy=1": {
			Body: []byte(`{"results":[{"text":"a","owner":{"username":"x"}},{"text":"b","owner":{"username":"y"}}]}`),
		},
	}}
	s := New(getter, Options{BaseURL: "https://example.test", APIBaseURL: "https://api.example.test", Comments: 1}, nil)

	r, err := s.FetchRecipe(context.Background(), "123")
	if err != nil {
		t.Fatalf("FetchRecipe: %v", err)
	}
	if r.URL != "https://example.test/rezepte/123/" || r.CommentCount != 1 || r.Comments[0].Text != "a" {
		t.Fatalf("unexpected recipe %+v", r)
	}
}

func TestFetchRecipeToleratesCommentFailure(t *testing.T) {
	getter := &fakeGetter{pages: map[string]fetcher.Page{
		"https://example.test/rezepte/123/": {Body: []byte(sampleRecipePage)},
	}}
	s := New(getter, Options{BaseURL: "https://example.test", APIBaseURL: "https://api.example.test", Comments: -1}, nil)

	r, err := s.FetchRecipe(context.Background(), "123")
	if err != nil {
		t.Fatalf("FetchRecipe: %v", err)
	}
	if r.CommentCount != 0 || len(getter.calls) != 2 {
		t.Fatalf("expected comment call without comments, calls=%v", getter.calls)
	}
	if !strings.Contains(getter.calls[1], "offset=0&order=1&orderBy=1") || strings.Contains(getter.calls[1], "limit") {
		t.Fatalf("unbounded comments must not send a limit: %s", getter.calls[1])
	}
}

func TestFetchRecipeSkipsCommentsWhenDisabled(t *testing.T) {
	getter := &fakeGetter{pages: map[string]fetcher.Page{
		"https://example.test/rezepte/123/": {Body: []byte(sampleRecipePage)},
	}}
	s := New(getter, Options{BaseURL: "https://example.test", Comments: 0}, nil)
	if _, err := s.FetchRecipe(context.Background(), "123"); err != nil {
		t.Fatalf("FetchRecipe: %v", err)
	}
	if len(getter.calls) != 1 {
		t.Fatalf("expected a single request, got %v", getter.calls)
	}
}

func TestRandomAndDailyIDs(t *testing.T) {
	getter := &fakeGetter{pages: map[string]fetcher.Page{
		"https://example.test/rezepte/zufallsrezept/": {FinalURL: "https://example.test/rezepte/5555/Zufall.html"},
		"https://example.test/recipe-of-the-day/rss": {Body: []byte(`<rss><channel><item><link>https://example.test/rezepte/77/X.html</link></item></channel></rss>`)},
	}}
	s := New(getter, Options{BaseURL: "https://example.test"}, nil)

	id, err := s.RandomID(context.Background())
	if err != nil || id != "5555" {
		t.Fatalf("RandomID = %q, %v", id, err)
	}
	id, err = s.DailyID(context.Background())
	if err != nil || id != "77" {
		t.Fatalf("DailyID = %q, %v", id, err)
	}
}

func TestRandomIDWithoutRedirectIsParseError(t *testing.T) {
	getter := &fakeGetter{pages: map[string]fetcher.Page{
		"https://example.test/rezepte/zufallsrezept/": {},
	}}
	s := New(getter, Options{BaseURL: "https://example.test"}, nil)
	if _, err := s.RandomID(context.Background()); !errors.Is(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}
