package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/soupchef/internal/domain"
)

func TestIndexAddIsIdempotent(t *testing.T) {
	idx, err := Open(TypeMemory, "")
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	defer idx.Close()

	for _, id := range []domain.RecipeID{"1", "2", "1", "3", "2"} {
		if err := idx.Add(id); err != nil {
			t.Fatalf("Add %s: %v", id, err)
		}
	}
	if idx.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", idx.Len())
	}
	got := idx.AllIDs()
	want := []domain.RecipeID{"1", "2", "3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("AllIDs[%d]: expected %s, got %s", i, want[i], got[i])
		}
	}
	if !idx.Contains("2") || idx.Contains("4") {
		t.Fatalf("unexpected Contains result")
	}
	if _, ok := idx.FetchedAt("3"); !ok {
		t.Fatalf("expected fetched-at for 3")
	}
}

func TestIndexReopenPersistsAcrossBackends(t *testing.T) {
	for _, typ := range []string{TypeFile, TypeBBolt, TypeSQLite} {
		t.Run(typ, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "index."+typ)

			idx, err := Open(typ, path)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			for _, id := range []domain.RecipeID{"42", "7", "42"} {
				if err := idx.Add(id); err != nil {
					t.Fatalf("Add %s: %v", id, err)
				}
			}
			if err := idx.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			idx, err = Open(typ, path)
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer idx.Close()

			ids := idx.AllIDs()
			if len(ids) != 2 || ids[0] != "42" || ids[1] != "7" {
				t.Fatalf("expected [42 7], got %v", ids)
			}
			if err := idx.Add("99"); err != nil {
				t.Fatalf("Add after reopen: %v", err)
			}
			if idx.Len() != 3 {
				t.Fatalf("expected 3 entries, got %d", idx.Len())
			}
		})
	}
}

func TestFileIndexDropsTornTrailingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.dat")
	content := "10\t2024-01-02T03:04:05Z\n11\t2024-01-02T03:04:06Z\n12\t2024-01"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	idx, err := Open(TypeFile, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if idx.Len() != 2 || idx.Contains("12") {
		t.Fatalf("expected torn entry to be dropped, got %v", idx.AllIDs())
	}
	if err := idx.Add("13"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	idx.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[2], "13\t") {
		t.Fatalf("expected appended entry on its own line, got %q", raw)
	}
}

func TestFileIndexAcceptsBareIDsAndBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.dat")
	content := "\xEF\xBB\xBF100\r\n\n200\t2023-05-06T07:08:09Z\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	idx, err := Open(TypeFile, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if !idx.Contains("100") || !idx.Contains("200") {
		t.Fatalf("expected both ids, got %v", idx.AllIDs())
	}
	at, _ := idx.FetchedAt("200")
	if !at.Equal(time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)) {
		t.Fatalf("unexpected fetched-at %v", at)
	}
}

func TestFileIndexRejectsCorruptContent(t *testing.T) {
	cases := map[string]string{
		"non numeric id": "10\nnot-an-id\n",
		"bad timestamp":  "10\tyesterday\n",
		"invalid utf-8":  "10\n\xff\xfe\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "index.dat")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write fixture: %v", err)
			}
			_, err := Open(TypeFile, path)
			if !errors.Is(err, domain.ErrIndexCorrupt) {
				t.Fatalf("expected ErrIndexCorrupt, got %v", err)
			}
		})
	}
}

func TestNewBackendValidatesType(t *testing.T) {
	if _, err := NewBackend("redis", "x"); !errors.Is(err, domain.ErrArgument) {
		t.Fatalf("expected ErrArgument for unknown type, got %v", err)
	}
	if _, err := NewBackend(TypeFile, " "); !errors.Is(err, domain.ErrArgument) {
		t.Fatalf("expected ErrArgument for missing path, got %v", err)
	}
	b, err := NewBackend("none", "")
	if err != nil {
		t.Fatalf("none backend: %v", err)
	}
	b.Close()
}

type failingBackend struct{ memoryBackend }

func (failingBackend) Append(domain.IndexEntry) error { return errors.New("disk full") }

func TestIndexAddFailureLeavesNoMemoryEntry(t *testing.T) {
	idx, err := Load(&failingBackend{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = idx.Add("5")
	if !errors.Is(err, domain.ErrFilesystem) {
		t.Fatalf("expected ErrFilesystem, got %v", err)
	}
	if idx.Contains("5") {
		t.Fatalf("failed append must not be recorded")
	}
}

func TestFileIndexWithoutNewline(t *testing.T) {
	t.Run("garbage is corrupt and left untouched", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index.dat")
		content := "this is not an index"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		if _, err := Open(TypeFile, path); !errors.Is(err, domain.ErrIndexCorrupt) {
			t.Fatalf("expected ErrIndexCorrupt, got %v", err)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read index: %v", err)
		}
		if string(raw) != content {
			t.Fatalf("corrupt index was modified: %q", raw)
		}
	})

	t.Run("single entry is kept", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index.dat")
		if err := os.WriteFile(path, []byte("12345"), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		idx, err := Open(TypeFile, path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if !idx.Contains("12345") {
			t.Fatalf("expected 12345 to be loaded, got %v", idx.AllIDs())
		}
		if err := idx.Add("6"); err != nil {
			t.Fatalf("Add: %v", err)
		}
		idx.Close()

		reopened, err := Open(TypeFile, path)
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		defer reopened.Close()
		got := reopened.AllIDs()
		if len(got) != 2 || got[0] != "12345" || got[1] != "6" {
			t.Fatalf("expected [12345 6], got %v", got)
		}
	})

	t.Run("torn first append is dropped", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "index.dat")
		if err := os.WriteFile(path, []byte("77\t2024-0"), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		idx, err := Open(TypeFile, path)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer idx.Close()
		if idx.Len() != 0 {
			t.Fatalf("expected empty index, got %v", idx.AllIDs())
		}
	})
}

// shortWriteFile writes half of the next buffer and then fails once.
type shortWriteFile struct {
	*os.File
	failNext bool
}

func (s *shortWriteFile) Write(p []byte) (int, error) {
	if s.failNext {
		s.failNext = false
		n, _ := s.File.Write(p[:len(p)/2])
		return n, errors.New("no space left on device")
	}
	return s.File.Write(p)
}

func TestFileAppendRollsBackPartialWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.dat")
	backend, err := openFile(path)
	if err != nil {
		t.Fatalf("openFile: %v", err)
	}
	fb := backend.(*fileBackend)
	flaky := &shortWriteFile{File: fb.f.(*os.File)}
	fb.f = flaky

	idx, err := Load(fb)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := idx.Add("1"); err != nil {
		t.Fatalf("Add 1: %v", err)
	}
	flaky.failNext = true
	if err := idx.Add("2222222"); !errors.Is(err, domain.ErrFilesystem) {
		t.Fatalf("expected ErrFilesystem, got %v", err)
	}
	if err := idx.Add("3"); err != nil {
		t.Fatalf("Add 3: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(TypeFile, path)
	if err != nil {
		t.Fatalf("reopen after failed append: %v", err)
	}
	defer reopened.Close()
	got := reopened.AllIDs()
	if len(got) != 2 || got[0] != "1" || got[1] != "3" {
		t.Fatalf("expected [1 3], got %v", got)
	}
}
