package storage

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samvad-hq/soupchef/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// indexFile is the part of *os.File the file backend uses.
type indexFile interface {
	io.ReadWriteSeeker
	Truncate(size int64) error
	Sync() error
	Close() error
}

// fileBackend keeps one "id<TAB>fetched-at" line per entry in a plain text
// file. Lines holding only an id are accepted.
type fileBackend struct {
	path string
	f    indexFile
	// broken is set when a failed append could not be rolled back.
	broken error
}

func openFile(path string) (Backend, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open index file %s: %v", domain.ErrFilesystem, path, err)
	}
	return &fileBackend{path: path, f: f}, nil
}

// Load validates the whole file before touching it. A trailing line without
// newline is kept when it parses, dropped when it is an append torn inside
// the timestamp, and rejected otherwise.
func (b *fileBackend) Load() ([]domain.IndexEntry, error) {
	raw, err := io.ReadAll(b.f)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrIndexCorrupt, b.path, err)
	}

	body := bytes.TrimPrefix(raw, utf8BOM)
	bom := int64(len(raw) - len(body))
	cut := bytes.LastIndexByte(body, '\n') + 1

	entries, err := parseIndexLines(body[:cut])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrIndexCorrupt, b.path, err)
	}

	fragment := strings.TrimRight(string(body[cut:]), "\r")
	switch {
	case len(body[cut:]) == 0:
		if _, err := b.f.Seek(0, io.SeekEnd); err != nil {
			return nil, fmt.Errorf("%w: seek index file: %v", domain.ErrFilesystem, err)
		}
	case strings.TrimSpace(fragment) == "" || isTornAppend(fragment):
		if err := b.truncateTo(bom + int64(cut)); err != nil {
			return nil, fmt.Errorf("%w: drop torn index line: %v", domain.ErrFilesystem, err)
		}
	default:
		entry, err := parseIndexLine(fragment)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: last line: %v", domain.ErrIndexCorrupt, b.path, err)
		}
		entries = append(entries, entry)
		if _, err := b.f.Seek(0, io.SeekEnd); err != nil {
			return nil, fmt.Errorf("%w: seek index file: %v", domain.ErrFilesystem, err)
		}
		if _, err := b.f.Write([]byte("\n")); err != nil {
			return nil, fmt.Errorf("%w: terminate last index line: %v", domain.ErrFilesystem, err)
		}
	}
	return entries, nil
}

// isTornAppend reports whether line is a valid id followed by an incomplete
// timestamp, the shape a crash in the middle of Append leaves behind.
func isTornAppend(line string) bool {
	idPart, tsPart, hasTS := strings.Cut(line, "\t")
	if !hasTS {
		return false
	}
	if _, err := domain.ParseRecipeID(idPart); err != nil {
		return false
	}
	_, err := time.Parse(time.RFC3339, strings.TrimSpace(tsPart))
	return err != nil
}

func parseIndexLines(data []byte) ([]domain.IndexEntry, error) {
	var entries []domain.IndexEntry
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		entry, err := parseIndexLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", line, err)
		}
		entries = append(entries, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func parseIndexLine(text string) (domain.IndexEntry, error) {
	if !utf8.ValidString(text) {
		return domain.IndexEntry{}, errors.New("invalid utf-8")
	}
	idPart, tsPart, hasTS := strings.Cut(text, "\t")
	id, err := domain.ParseRecipeID(idPart)
	if err != nil {
		return domain.IndexEntry{}, fmt.Errorf("malformed id %q", idPart)
	}
	entry := domain.IndexEntry{ID: id}
	if hasTS {
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(tsPart))
		if err != nil {
			return domain.IndexEntry{}, fmt.Errorf("malformed timestamp %q", tsPart)
		}
		entry.FetchedAt = ts
	}
	return entry, nil
}

// Append writes one line and syncs it. On failure the file is cut back to
// where the line started, so the next append begins on a clean line.
func (b *fileBackend) Append(e domain.IndexEntry) error {
	if b.broken != nil {
		return b.broken
	}
	off, err := b.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("index offset: %w", err)
	}
	line := e.ID.String() + "\t" + e.FetchedAt.UTC().Format(time.RFC3339) + "\n"
	if _, err := b.f.Write([]byte(line)); err != nil {
		return b.rollback(off, err)
	}
	if err := b.f.Sync(); err != nil {
		return b.rollback(off, err)
	}
	return nil
}

func (b *fileBackend) rollback(off int64, cause error) error {
	if err := b.truncateTo(off); err != nil {
		b.broken = fmt.Errorf("index file %s left unrepaired after failed append: %w", b.path, errors.Join(cause, err))
		return b.broken
	}
	return cause
}

func (b *fileBackend) truncateTo(off int64) error {
	if err := b.f.Truncate(off); err != nil {
		return err
	}
	_, err := b.f.Seek(off, io.SeekStart)
	return err
}

func (b *fileBackend) Close() error {
	if b == nil || b.f == nil {
		return nil
	}
	if err := b.f.Sync(); err != nil {
		b.f.Close()
		return err
	}
	return b.f.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create index directory: %v", domain.ErrFilesystem, err)
		}
	}
	return nil
}
