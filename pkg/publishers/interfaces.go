package publishers

import "context"

// Publisher is one recipe event sink.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt RecipeEvent) error
}
