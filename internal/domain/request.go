package domain

import (
	"fmt"
	"strings"
)

// Mode selects how recipe identifiers are acquired.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeDaily
	ModeSearch
	ModeURL
	ModeID
	ModeRandom
	ModeAll
	ModeRefresh
)

var modeNames = map[Mode]string{
	ModeDaily:   "daily",
	ModeSearch:  "search",
	ModeURL:     "url",
	ModeID:      "id",
	ModeRandom:  "random",
	ModeAll:     "all",
	ModeRefresh: "refresh",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseMode maps a mode name to its Mode.
func ParseMode(raw string) (Mode, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for m, name := range modeNames {
		if name == raw {
			return m, nil
		}
	}
	return ModeUnknown, fmt.Errorf("%w: unknown mode %q", ErrArgument, raw)
}

// SortMode orders search and listing results.
type SortMode string

const (
	SortRelevance  SortMode = "relevance"
	SortDaily      SortMode = "daily"
	SortDate       SortMode = "date"
	SortPrepTime   SortMode = "preptime"
	SortDifficulty SortMode = "difficulty"
	SortRating     SortMode = "rating"
)

// ParseSortMode validates a sort mode name. Empty means relevance.
func ParseSortMode(raw string) (SortMode, error) {
	switch s := SortMode(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return SortRelevance, nil
	case SortRelevance, SortDaily, SortDate, SortPrepTime, SortDifficulty, SortRating:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown sort mode %q", ErrArgument, raw)
	}
}

// Unbounded is the sentinel for "no limit" on counts.
const Unbounded = -1

// FetchRequest is the resolved acquisition request. Only the fields relevant
// to Mode are consulted.
type FetchRequest struct {
	Mode      Mode
	Inputs    []string
	Count     int
	StartPage int
	Sort      SortMode
}

// Validate checks mode-specific requirements.
func (r FetchRequest) Validate() error {
	if r.Count < Unbounded {
		return fmt.Errorf("%w: count must be -1 or non-negative, got %d", ErrArgument, r.Count)
	}
	switch r.Mode {
	case ModeDaily, ModeRefresh:
		if len(r.Inputs) > 0 {
			return fmt.Errorf("%w: %s mode takes no input arguments", ErrArgument, r.Mode)
		}
	case ModeSearch, ModeURL, ModeID:
		if len(r.Inputs) == 0 {
			return fmt.Errorf("%w: %s mode requires at least one input", ErrArgument, r.Mode)
		}
	case ModeRandom:
		if r.Count <= 0 {
			return fmt.Errorf("%w: random mode requires a positive count", ErrArgument)
		}
	case ModeAll:
	default:
		return fmt.Errorf("%w: no acquisition mode selected", ErrArgument)
	}
	if r.Mode == ModeSearch || r.Mode == ModeAll {
		if r.StartPage < 1 {
			return fmt.Errorf("%w: start page must be >= 1, got %d", ErrArgument, r.StartPage)
		}
	}
	return nil
}
