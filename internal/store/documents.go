package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"maml/internal/maml"
	"maml/internal/paper"
)

// MAMLStore persists MAML documents keyed by id.
type MAMLStore struct {
	docs DocumentStore
}

// NewMAMLStore wraps a document store.
func NewMAMLStore(docs DocumentStore) *MAMLStore {
	return &MAMLStore{docs: docs}
}

// Get returns the MAML with id, or ErrNotFound.
func (s *MAMLStore) Get(ctx context.Context, id string) (*maml.MAML, error) {
	data, err := s.docs.Get(ctx, CollectionMAMLs, id)
	if err != nil {
		return nil, err
	}
	return maml.Parse(data)
}

// Put stores m under its id. A MAML without id is rejected before anything is
// written.
func (s *MAMLStore) Put(ctx context.Context, m *maml.MAML) error {
	if m == nil || m.ID == "" {
		return maml.ErrMissingIdentity
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode maml %s: %w", m.ID, err)
	}
	return s.docs.Put(ctx, CollectionMAMLs, m.ID, data)
}

// IDs lists stored MAML ids.
func (s *MAMLStore) IDs(ctx context.Context) ([]string, error) {
	return s.docs.Keys(ctx, CollectionMAMLs)
}

// PaperStore persists parsed papers keyed by id.
type PaperStore struct {
	docs DocumentStore
}

// NewPaperStore wraps a document store.
func NewPaperStore(docs DocumentStore) *PaperStore {
	return &PaperStore{docs: docs}
}

// Get returns the paper with id, or ErrNotFound.
func (s *PaperStore) Get(ctx context.Context, id string) (*paper.Paper, error) {
	data, err := s.docs.Get(ctx, CollectionPapers, id)
	if err != nil {
		return nil, err
	}
	var p paper.Paper
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode paper %s: %w", id, err)
	}
	return &p, nil
}

// Put stores p under its id.
func (s *PaperStore) Put(ctx context.Context, p *paper.Paper) error {
	if p == nil || p.ID == "" {
		return maml.ErrMissingIdentity
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode paper %s: %w", p.ID, err)
	}
	return s.docs.Put(ctx, CollectionPapers, p.ID, data)
}

// FindByLink returns the stored paper loaded from link, or ErrNotFound.
func (s *PaperStore) FindByLink(ctx context.Context, link string) (*paper.Paper, error) {
	ids, err := s.docs.Keys(ctx, CollectionPapers)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		p, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if p.Source.Link == link {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

// ParamsStore persists parameter sets keyed by MAML id.
type ParamsStore struct {
	docs DocumentStore
}

// NewParamsStore wraps a document store.
func NewParamsStore(docs DocumentStore) *ParamsStore {
	return &ParamsStore{docs: docs}
}

// Get returns the params saved for a MAML, or ErrNotFound.
func (s *ParamsStore) Get(ctx context.Context, mamlID string) (maml.Params, error) {
	data, err := s.docs.Get(ctx, CollectionParams, mamlID)
	if err != nil {
		return maml.Params{}, err
	}
	var p maml.Params
	if err := json.Unmarshal(data, &p); err != nil {
		return maml.Params{}, fmt.Errorf("failed to decode params for %s: %w", mamlID, err)
	}
	return p, nil
}

// Put saves params for a MAML.
func (s *ParamsStore) Put(ctx context.Context, mamlID string, p maml.Params) error {
	if mamlID == "" {
		return maml.ErrMissingIdentity
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode params for %s: %w", mamlID, err)
	}
	return s.docs.Put(ctx, CollectionParams, mamlID, data)
}
