// Package builder turns paper text into a MAML process graph in four passes:
// feedstock/target and step resolution, step outputs, novelty parameters, and
// persistence.
package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"maml/internal/catalog"
	"maml/internal/knowledge"
	"maml/internal/logging"
	"maml/internal/maml"
	"maml/internal/paper"
	"maml/internal/store"
)

// ErrNoSteps is returned when step resolution leaves an empty flow.
var ErrNoSteps = errors.New("builder: no process steps resolved")

// DefaultClassificationChars bounds the text used for feedstock/target choices.
const DefaultClassificationChars = 1000

// Repository persists built MAMLs.
type Repository interface {
	Get(ctx context.Context, id string) (*maml.MAML, error)
	Put(ctx context.Context, m *maml.MAML) error
}

// Builder runs the build passes. It holds no per-build state.
type Builder struct {
	catalog             *catalog.Catalog
	kb                  knowledge.KnowledgeBase
	repo                Repository
	classificationChars int
}

// Option configures a Builder.
type Option func(*Builder)

// WithClassificationChars overrides the classification prefix length.
func WithClassificationChars(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.classificationChars = n
		}
	}
}

// New creates a builder.
func New(cat *catalog.Catalog, kb knowledge.KnowledgeBase, repo Repository, opts ...Option) *Builder {
	b := &Builder{
		catalog:             cat,
		kb:                  kb,
		repo:                repo,
		classificationChars: DefaultClassificationChars,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the MAML for a paper. A stored MAML with the paper's id is
// returned as is, without any knowledge base queries, unless force is set.
func (b *Builder) Build(ctx context.Context, p *paper.Paper, force bool) (*maml.MAML, error) {
	if p == nil || p.ID == "" {
		return nil, maml.ErrMissingIdentity
	}

	if !force {
		cached, err := b.repo.Get(ctx, p.ID)
		switch {
		case err == nil:
			logging.Builder("MAML loaded from cache: %s", p.ID)
			cached.Paper = p
			return cached, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("failed to check maml cache: %w", err)
		}
	}

	m := &maml.MAML{
		ID:      p.ID,
		PaperID: p.ID,
		Paper:   p,
		Title:   p.Title,
	}
	if err := b.run(ctx, m, p.FullText()); err != nil {
		return nil, err
	}
	return m, nil
}

// BuildFromText builds a MAML from free text under a fresh id. The cache is
// never consulted.
func (b *Builder) BuildFromText(ctx context.Context, text string) (*maml.MAML, error) {
	m := &maml.MAML{
		ID:    uuid.NewString(),
		Title: titleFromText(text),
	}
	if err := b.run(ctx, m, text); err != nil {
		return nil, err
	}
	return m, nil
}

func (b *Builder) run(ctx context.Context, m *maml.MAML, text string) error {
	timer := logging.StartTimer(logging.CategoryBuilder, "build "+m.ID)
	defer timer.StopWithInfo()

	if err := b.resolveFlow(ctx, m, text); err != nil {
		return fmt.Errorf("step resolution: %w", err)
	}
	if err := b.resolveOutputs(ctx, m); err != nil {
		return fmt.Errorf("output pass: %w", err)
	}
	if err := b.resolveParameters(ctx, m); err != nil {
		return fmt.Errorf("parameter pass: %w", err)
	}
	if err := m.CheckComplete(); err != nil {
		return err
	}
	if err := b.repo.Put(ctx, m); err != nil {
		return fmt.Errorf("failed to save maml: %w", err)
	}
	logging.Builder("Built MAML %s: %s -> %s via %v", m.ID, m.ProcessFeedstock, m.ProcessTarget, m.StepTypes())
	return nil
}

// titleFromText keeps the first line of free text, bounded.
func titleFromText(text string) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	return knowledge.Truncate(line, 200)
}
