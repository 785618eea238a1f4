package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"gopkg.in/yaml.v3"

	"github.com/samvad-hq/soupchef/internal/domain"
)

// Format is the serialization used for recipe files.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates an output format. Empty means json.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatYAML, FormatMarkdown:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown output format %q", domain.ErrArgument, raw)
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatYAML:
		return ".yaml"
	case FormatMarkdown:
		return ".md"
	default:
		return ".json"
	}
}

// Encode serializes the recipe in the given format.
func Encode(f Format, r domain.Recipe) ([]byte, error) {
	switch f {
	case FormatYAML:
		return yaml.Marshal(r)
	case FormatMarkdown:
		var buf bytes.Buffer
		if err := encodeMarkdown(&buf, r); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

func encodeMarkdown(w io.Writer, r domain.Recipe) error {
	md := markdown.NewMarkdown(w)
	md.H1(r.Title)
	md.PlainText("")

	facts := [][]string{
		{"ID", r.ID.String()},
		{"URL", r.URL},
	}
	if r.Author != "" {
		facts = append(facts, []string{"Author", r.Author})
	}
	if r.Category != "" {
		facts = append(facts, []string{"Category", r.Category})
	}
	if !r.CreatedAt.IsZero() {
		facts = append(facts, []string{"Created", r.CreatedAt.Format("2006-01-02")})
	}
	facts = append(facts, []string{"Comments", strconv.Itoa(r.CommentCount)})
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   facts,
	})
	md.PlainText("")

	if len(r.Ingredients) > 0 {
		md.H2("Ingredients")
		rows := make([][]string, 0, len(r.Ingredients))
		for _, ing := range r.Ingredients {
			rows = append(rows, []string{ing.Amount, ing.Name})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Amount", "Ingredient"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if r.Instructions != "" {
		md.H2("Instructions")
		md.PlainText(r.Instructions)
		md.PlainText("")
	}

	if len(r.Keywords) > 0 {
		md.H2("Keywords")
		md.BulletList(r.Keywords...)
		md.PlainText("")
	}

	if len(r.Comments) > 0 {
		md.H2("Comments")
		for _, c := range r.Comments {
			md.Blockquote(c.Text)
			md.PlainText("-- " + c.Author)
			md.PlainText("")
		}
	}

	return md.Build()
}
