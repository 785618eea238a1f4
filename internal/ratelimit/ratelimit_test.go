package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samvad-hq/soupchef/internal/domain"
)

func TestParseInterval(t *testing.T) {
	cases := []struct {
		raw      string
		min, max time.Duration
	}{
		{"1", time.Second, time.Second},
		{"0.25-4", 250 * time.Millisecond, 4 * time.Second},
		{" 0 - 0.5 ", 0, 500 * time.Millisecond},
	}
	for _, tc := range cases {
		got, err := ParseInterval(tc.raw)
		if err != nil {
			t.Fatalf("ParseInterval(%q): %v", tc.raw, err)
		}
		if got.Min != tc.min || got.Max != tc.max {
			t.Fatalf("ParseInterval(%q) = %v, want %v-%v", tc.raw, got, tc.min, tc.max)
		}
	}
}

func TestParseIntervalRejectsBadInput(t *testing.T) {
	for _, raw := range []string{"", "abc", "4-1", "-1", "1-x"} {
		if _, err := ParseInterval(raw); !errors.Is(err, domain.ErrArgument) {
			t.Fatalf("ParseInterval(%q) err = %v, want ErrArgument", raw, err)
		}
	}
}

func TestSampleStaysInRangeAndVaries(t *testing.T) {
	iv, err := ParseInterval("0.25-4")
	if err != nil {
		t.Fatalf("ParseInterval: %v", err)
	}
	s := NewSleeper(iv)

	seen := make(map[time.Duration]struct{})
	for i := 0; i < 1000; i++ {
		d := s.Sample()
		if d < iv.Min || d > iv.Max {
			t.Fatalf("sample %v outside [%v, %v]", d, iv.Min, iv.Max)
		}
		seen[d] = struct{}{}
	}
	if len(seen) < 2 {
		t.Fatalf("expected varying samples, got %d distinct", len(seen))
	}
}

func TestSampleCollapsesToPoint(t *testing.T) {
	s := NewSleeper(Interval{Min: time.Second, Max: time.Second})
	for i := 0; i < 10; i++ {
		if d := s.Sample(); d != time.Second {
			t.Fatalf("sample = %v, want 1s", d)
		}
	}
}

func TestWaitAlwaysSleepsAndHonoursCancel(t *testing.T) {
	s := NewSleeper(Interval{})
	var waited []time.Duration
	s.newTimer = func(d time.Duration) *time.Timer {
		waited = append(waited, d)
		return time.NewTimer(0)
	}

	if _, err := s.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(waited) != 1 {
		t.Fatalf("expected one timer, got %d", len(waited))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait on cancelled ctx err = %v", err)
	}
}

func TestWaitReturnsWhenCancelledMidSleep(t *testing.T) {
	s := NewSleeper(Interval{Min: time.Hour, Max: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Wait ignored cancellation for %v", elapsed)
	}
}
