package publishers

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Fanout delivers each recipe event to every configured sink in order. A
// failing sink does not stop delivery to the others.
type Fanout struct {
	sinks  []Publisher
	closed bool
}

// NewFanout drops nil entries from pubs.
func NewFanout(pubs []Publisher) *Fanout {
	f := &Fanout{}
	for _, p := range pubs {
		if p != nil {
			f.sinks = append(f.sinks, p)
		}
	}
	return f
}

// Publish returns how many sinks accepted evt, plus every sink error joined.
func (f *Fanout) Publish(ctx context.Context, evt RecipeEvent) (int, error) {
	if f == nil || f.closed {
		return 0, nil
	}
	delivered := 0
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Publish(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s[%s]: %w", sink.Type(), sink.ID(), err))
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

// Size is the number of sinks.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.sinks)
}

// Close releases sinks holding connections. Later calls are no-ops.
func (f *Fanout) Close() error {
	if f == nil || f.closed {
		return nil
	}
	f.closed = true
	var errs []error
	for _, sink := range f.sinks {
		c, ok := sink.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s[%s]: %w", sink.Type(), sink.ID(), err))
		}
	}
	return errors.Join(errs...)
}
