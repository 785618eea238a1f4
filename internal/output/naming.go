package output

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/samvad-hq/soupchef/internal/domain"
)

// FileConvention controls recipe file names.
type FileConvention string

const (
	// FilesPlain names files after the recipe ID only.
	FilesPlain FileConvention = "plain"
	// FilesTitle appends a sanitized title to the ID.
	FilesTitle FileConvention = "title"
)

// DirConvention controls the subdirectory a recipe lands in.
type DirConvention string

const (
	DirsFlat     DirConvention = "flat"
	DirsCategory DirConvention = "category"
	DirsDate     DirConvention = "date"
)

const (
	maxNameRunes      = 64
	uncategorizedDir  = "uncategorized"
	undatedDir        = "undated"
	untitledName      = "untitled"
	dateDirLayout     = "2006-01"
	fileNameSeparator = "_"
)

// ParseFileConvention validates a file naming convention. Empty means plain.
func ParseFileConvention(raw string) (FileConvention, error) {
	switch c := FileConvention(strings.ToLower(strings.TrimSpace(raw))); c {
	case "":
		return FilesPlain, nil
	case FilesPlain, FilesTitle:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown filename convention %q", domain.ErrArgument, raw)
	}
}

// ParseDirConvention validates a directory convention. Empty means flat.
func ParseDirConvention(raw string) (DirConvention, error) {
	switch c := DirConvention(strings.ToLower(strings.TrimSpace(raw))); c {
	case "":
		return DirsFlat, nil
	case DirsFlat, DirsCategory, DirsDate:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown directory convention %q", domain.ErrArgument, raw)
	}
}

// PathResolver computes where a recipe is written.
type PathResolver struct {
	Root   string
	Dirs   DirConvention
	Files  FileConvention
	Format Format
}

// Dir returns the directory the recipe belongs in.
func (p PathResolver) Dir(r domain.Recipe) string {
	switch p.Dirs {
	case DirsCategory:
		return filepath.Join(p.Root, SanitizeOr(r.Category, uncategorizedDir))
	case DirsDate:
		if r.CreatedAt.IsZero() {
			return filepath.Join(p.Root, undatedDir)
		}
		return filepath.Join(p.Root, r.CreatedAt.UTC().Format(dateDirLayout))
	default:
		return p.Root
	}
}

// FileName returns the base file name for the recipe.
func (p PathResolver) FileName(r domain.Recipe) string {
	name := r.ID.String()
	if p.Files == FilesTitle {
		name += fileNameSeparator + SanitizeOr(r.Title, untitledName)
	}
	return name + p.Format.Ext()
}

// Path returns the full output path for the recipe.
func (p PathResolver) Path(r domain.Recipe) string {
	return filepath.Join(p.Dir(r), p.FileName(r))
}

var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var foldReplacer = strings.NewReplacer("ß", "ss", "æ", "ae", "ø", "o", "œ", "oe", "ł", "l")

// Sanitize turns free text into a filesystem-safe slug: diacritics stripped,
// lower case, runs of other characters collapsed to '-', capped in length.
func Sanitize(in string) string {
	folded, _, err := transform.String(stripMarks, strings.ToLower(in))
	if err != nil {
		folded = strings.ToLower(in)
	}
	folded = foldReplacer.Replace(folded)

	var b strings.Builder
	dash := false
	n := 0
	for _, r := range folded {
		if n >= maxNameRunes {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			n++
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
			n++
		}
	}
	return strings.Trim(b.String(), "-")
}

// SanitizeOr sanitizes in and falls back when nothing usable remains.
func SanitizeOr(in, fallback string) string {
	if s := Sanitize(in); s != "" {
		return s
	}
	return fallback
}
