// Package pipeline chains paper loading, analysis and MAML building into one
// ingest step, the unit of work for the CLI and the inbox watcher.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"maml/internal/builder"
	"maml/internal/logging"
	"maml/internal/maml"
	"maml/internal/paper"
	"maml/internal/store"
)

// Outcome is the result of ingesting one paper. MAML is nil when the paper
// does not describe a single process.
type Outcome struct {
	Paper *paper.Paper
	MAML  *maml.MAML
}

// Pipeline turns paper links into stored papers and MAMLs.
type Pipeline struct {
	loader   *paper.Loader
	analyzer *paper.Analyzer
	papers   *store.PaperStore
	builder  *builder.Builder
}

// New creates a pipeline.
func New(loader *paper.Loader, analyzer *paper.Analyzer, papers *store.PaperStore, b *builder.Builder) *Pipeline {
	return &Pipeline{loader: loader, analyzer: analyzer, papers: papers, builder: b}
}

// Ingest loads the paper at link (reusing a stored copy unless force is set),
// analyzes and stores it, then builds its MAML if it describes a single process.
func (p *Pipeline) Ingest(ctx context.Context, link string, force bool) (*Outcome, error) {
	doc, err := p.paper(ctx, link, force)
	if err != nil {
		return nil, err
	}
	if err := p.analyzer.Process(ctx, doc, force); err != nil {
		return nil, err
	}
	if err := p.papers.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store paper %s: %w", doc.ID, err)
	}
	if !doc.IsSingleProcess() {
		logging.Builder("Skipping MAML for %s: paper is %s", doc.ID, doc.DescribesProcess)
		return &Outcome{Paper: doc}, nil
	}

	m, err := p.builder.Build(ctx, doc, force)
	if err != nil {
		return nil, err
	}
	return &Outcome{Paper: doc, MAML: m}, nil
}

func (p *Pipeline) paper(ctx context.Context, link string, force bool) (*paper.Paper, error) {
	if !force {
		cached, err := p.papers.FindByLink(ctx, link)
		switch {
		case err == nil:
			logging.PaperDebug("Using stored paper %s for %s", cached.ID, link)
			return cached, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}
	return p.loader.Load(ctx, link)
}

// FromText builds a MAML from a free-text process summary plus optional
// novelty notes. Text builds are never cached.
func (p *Pipeline) FromText(ctx context.Context, summary, novelty string) (*maml.MAML, error) {
	text := strings.TrimSpace(summary)
	if n := strings.TrimSpace(novelty); n != "" {
		text = strings.TrimSuffix(text, ".") + ". " + n
	}
	if text == "" {
		return nil, fmt.Errorf("pipeline: empty process description")
	}
	return p.builder.BuildFromText(ctx, text)
}
