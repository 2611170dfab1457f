package definition

import (
	"context"
	"fmt"

	"github.com/seantiz/taskflow/internal/model"
	"github.com/seantiz/taskflow/internal/store"
)

// StoreLoader resolves pipelines by name from a definition store.
type StoreLoader struct {
	store store.PipelineStore
}

// NewStoreLoader creates a loader backed by s.
func NewStoreLoader(s store.PipelineStore) *StoreLoader {
	return &StoreLoader{store: s}
}

// Load fetches, parses and validates the named pipeline. A missing pipeline
// yields store.ErrNotFound; a malformed one yields ErrInvalid.
func (l *StoreLoader) Load(ctx context.Context, name string) (*model.Pipeline, error) {
	def, err := l.store.GetPipeline(ctx, name)
	if err != nil {
		return nil, err
	}
	p, err := Parse([]byte(def.Source))
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", name, err)
	}
	return p, nil
}
