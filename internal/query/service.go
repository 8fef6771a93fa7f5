package query

import (
	"context"

	"github.com/mesh-intelligence/sitenotes/pkg/types"
)

// Service runs queries against a store. Results are recomputed on every
// call.
type Service struct {
	store types.Store
}

// NewService returns a Service over store.
func NewService(store types.Store) *Service {
	return &Service{store: store}
}

// Site returns the notes of every kind at site, newest first.
func (s *Service) Site(ctx context.Context, site string) ([]types.Record, error) {
	lists := make([][]types.Record, 0, len(types.Kinds()))
	for _, kind := range types.Kinds() {
		recs, err := s.store.GetBySite(ctx, kind, site)
		if err != nil {
			return nil, err
		}
		lists = append(lists, recs)
	}
	return Merge(lists...), nil
}

// All returns every note of every kind, newest first.
func (s *Service) All(ctx context.Context) ([]types.Record, error) {
	lists := make([][]types.Record, 0, len(types.Kinds()))
	for _, kind := range types.Kinds() {
		recs, err := s.store.GetAll(ctx, kind)
		if err != nil {
			return nil, err
		}
		lists = append(lists, recs)
	}
	return Merge(lists...), nil
}

// Kind returns every note of one kind, newest first.
func (s *Service) Kind(ctx context.Context, kind types.Kind) ([]types.Record, error) {
	recs, err := s.store.GetAll(ctx, kind)
	if err != nil {
		return nil, err
	}
	SortByCreated(recs, true)
	return recs, nil
}

// Search returns the notes matching term, newest first.
func (s *Service) Search(ctx context.Context, term string) ([]types.Record, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return Search(all, term), nil
}

// Sites returns the note count of every site that has notes.
func (s *Service) Sites(ctx context.Context) (map[string]int, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return CountBySite(all), nil
}
