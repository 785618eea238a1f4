package crawler

import (
	"context"

	"github.com/samvad-hq/soupchef/internal/domain"
	"github.com/samvad-hq/soupchef/pkg/publishers"
)

// RecipeSource downloads and parses one recipe.
type RecipeSource interface {
	FetchRecipe(ctx context.Context, id domain.RecipeID) (domain.Recipe, error)
}

// RecipeWriter persists a recipe and returns the written path.
type RecipeWriter interface {
	Write(recipe domain.Recipe) (string, error)
}

// Index is the durable set of fetched identifiers.
type Index interface {
	Contains(id domain.RecipeID) bool
	Add(id domain.RecipeID) error
}

// EventPublisher publishes stored recipes downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.RecipeEvent) (int, error)
}

// Recorder receives per-recipe outcomes.
type Recorder interface {
	RecipeFetched()
	RecipeSkipped()
	RecipeFailed()
	RecipeIndexed()
}

type nopRecorder struct{}

func (nopRecorder) RecipeFetched() {}
func (nopRecorder) RecipeSkipped() {}
func (nopRecorder) RecipeFailed()  {}
func (nopRecorder) RecipeIndexed() {}
