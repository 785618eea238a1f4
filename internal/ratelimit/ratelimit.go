package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/soupchef/internal/domain"
)

// Interval is the closed range a pre-request delay is drawn from.
type Interval struct {
	Min time.Duration
	Max time.Duration
}

// ParseInterval accepts "<seconds>" or "<min>-<max>" in (fractional) seconds.
func ParseInterval(raw string) (Interval, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Interval{}, fmt.Errorf("%w: empty rate limit", domain.ErrArgument)
	}

	lo, hi, ranged := strings.Cut(raw, "-")
	from, err := parseSeconds(lo)
	if err != nil {
		return Interval{}, err
	}
	to := from
	if ranged {
		if to, err = parseSeconds(hi); err != nil {
			return Interval{}, err
		}
	}
	if to < from {
		return Interval{}, fmt.Errorf("%w: rate limit range %q is inverted", domain.ErrArgument, raw)
	}
	return Interval{Min: from, Max: to}, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: invalid rate limit value %q", domain.ErrArgument, raw)
	}
	return time.Duration(v * float64(time.Second)), nil
}

func (i Interval) String() string {
	if i.Min == i.Max {
		return i.Min.String()
	}
	return i.Min.String() + "-" + i.Max.String()
}

// Sleeper blocks before each outbound request for a delay sampled from an Interval.
type Sleeper struct {
	interval Interval
	rnd      func() float64
	newTimer func(time.Duration) *time.Timer
}

// NewSleeper builds a Sleeper drawing uniformly from interval.
func NewSleeper(interval Interval) *Sleeper {
	return &Sleeper{
		interval: interval,
		rnd:      rand.Float64,
		newTimer: time.NewTimer,
	}
}

// Interval returns the configured range.
func (s *Sleeper) Interval() Interval { return s.interval }

// Sample draws one delay in [Min, Max].
func (s *Sleeper) Sample() time.Duration {
	span := s.interval.Max - s.interval.Min
	if span <= 0 {
		return s.interval.Min
	}
	return s.interval.Min + time.Duration(s.rnd()*float64(span))
}

// Wait sleeps for one sampled delay and returns early with ctx.Err() on
// cancellation. A zero delay still goes through the timer.
func (s *Sleeper) Wait(ctx context.Context) (time.Duration, error) {
	d := s.Sample()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	timer := s.newTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
		return d, nil
	}
}
