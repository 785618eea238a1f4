package recipesite

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ldNode is the subset of schema.org fields read from JSON-LD blocks.
type ldNode struct {
	Type          ldStrings       `json:"@type"`
	Name          string          `json:"name"`
	Author        ldStrings       `json:"author"`
	Keywords      ldStrings       `json:"keywords"`
	Category      ldStrings       `json:"recipeCategory"`
	DatePublished string          `json:"datePublished"`
	Ingredients   []string        `json:"recipeIngredient"`
	Instructions  json.RawMessage `json:"recipeInstructions"`
	Image         ldURLs          `json:"image"`
	Elements      []ldListItem    `json:"itemListElement"`
}

type ldListItem struct {
	Position int             `json:"position"`
	Name     string          `json:"name"`
	URL      string          `json:"url"`
	Item     json.RawMessage `json:"item"`
}

func (n ldNode) is(typ string) bool {
	for _, t := range n.Type {
		if strings.EqualFold(t, typ) {
			return true
		}
	}
	return false
}

// ldStrings accepts a string, an object carrying a name or text, or an array
// of either.
type ldStrings []string

func (l *ldStrings) UnmarshalJSON(data []byte) error {
	out, err := decodeLDStrings(data, func(o ldObject) string { return firstNonEmpty(o.Name, o.Text, o.URL) })
	*l = append(*l, out...)
	return err
}

// ldURLs is ldStrings for ImageObject-like values, preferring the url.
type ldURLs []string

func (l *ldURLs) UnmarshalJSON(data []byte) error {
	out, err := decodeLDStrings(data, func(o ldObject) string { return firstNonEmpty(o.URL, o.ContentURL) })
	*l = append(*l, out...)
	return err
}

type ldObject struct {
	Name       string `json:"name"`
	Text       string `json:"text"`
	URL        string `json:"url"`
	ContentURL string `json:"contentUrl"`
}

func decodeLDStrings(data []byte, pick func(ldObject) string) ([]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		var out []string
		for _, item := range items {
			sub, err := decodeLDStrings(item, pick)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	case '{':
		var obj ldObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		if v := pick(obj); v != "" {
			return []string{v}, nil
		}
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		if s = strings.TrimSpace(s); s != "" {
			return []string{s}, nil
		}
	}
	return nil, nil
}

// ldNodes decodes every JSON-LD script of doc, flattening arrays and @graph
// containers. Blocks that fail to decode are ignored.
func ldNodes(doc *goquery.Document) []ldNode {
	var nodes []ldNode
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, decodeLD([]byte(s.Text()))...)
	})
	return nodes
}

func decodeLD(raw []byte) []ldNode {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		var out []ldNode
		for _, item := range items {
			out = append(out, decodeLD(item)...)
		}
		return out
	}

	var graph struct {
		Graph []json.RawMessage `json:"@graph"`
	}
	if err := json.Unmarshal(raw, &graph); err == nil && len(graph.Graph) > 0 {
		var out []ldNode
		for _, item := range graph.Graph {
			out = append(out, decodeLD(item)...)
		}
		return out
	}

	var node ldNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil
	}
	return []ldNode{node}
}

// instructionText flattens recipeInstructions, which may be a string, a list
// of HowToStep objects or HowToSection objects nesting further steps.
func instructionText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return ""
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if t := instructionText(item); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, "\n")
	case '{':
		var step struct {
			Text     string          `json:"text"`
			Elements json.RawMessage `json:"itemListElement"`
		}
		if err := json.Unmarshal(raw, &step); err != nil {
			return ""
		}
		if t := strings.TrimSpace(step.Text); t != "" {
			return t
		}
		return instructionText(step.Elements)
	}
	return ""
}
