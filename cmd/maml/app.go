package main

import (
	"context"
	"errors"
	"fmt"

	"maml/internal/builder"
	"maml/internal/catalog"
	"maml/internal/config"
	"maml/internal/knowledge"
	"maml/internal/llm"
	"maml/internal/maml"
	"maml/internal/paper"
	"maml/internal/pipeline"
	"maml/internal/render"
	"maml/internal/store"
	"maml/internal/tea"
)

// app holds the components one command invocation needs. The knowledge base
// is only created by commands that query it.
type app struct {
	cfg    *config.Config
	docs   store.DocumentStore
	mamls  *store.MAMLStore
	papers *store.PaperStore
	params *store.ParamsStore
	ledger *store.Ledger
	kb     knowledge.KnowledgeBase
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}
	docs, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	return &app{
		cfg:    cfg,
		docs:   docs,
		mamls:  store.NewMAMLStore(docs),
		papers: store.NewPaperStore(docs),
		params: store.NewParamsStore(docs),
		ledger: store.NewLedger(docs),
	}, nil
}

func (a *app) Close() error {
	return a.docs.Close()
}

func (a *app) knowledge(ctx context.Context) (knowledge.KnowledgeBase, error) {
	if a.kb != nil {
		return a.kb, nil
	}
	client, err := llm.NewClientFromConfig(ctx, a.cfg.LLM, a.cfg.GetLLMTimeout())
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.kb = knowledge.NewOracle(client)
	return a.kb, nil
}

func (a *app) pipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	kb, err := a.knowledge(ctx)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Default()
	if err != nil {
		return nil, err
	}
	fetcher := paper.NewFetcher(a.cfg.Paper, a.cfg.GetFetchTimeout())
	b := builder.New(cat, kb, a.mamls, builder.WithClassificationChars(a.cfg.Builder.ClassificationChars))
	return pipeline.New(
		paper.NewLoader(kb, fetcher),
		paper.NewAnalyzer(kb, a.cfg.Builder.AssessmentChars),
		a.papers,
		b,
	), nil
}

func (a *app) artifacts(ctx context.Context) (*render.Artifacts, error) {
	sink, err := render.NewSink(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	return render.NewArtifacts(sink), nil
}

func (a *app) agent(ctx context.Context, artifacts *render.Artifacts) (*tea.Agent, error) {
	kb, err := a.knowledge(ctx)
	if err != nil {
		return nil, err
	}
	sim := tea.NewSimulator(kb,
		tea.WithProfitMargin(a.cfg.Simulator.ProfitMargin),
		tea.WithDiscountRate(a.cfg.Simulator.DiscountRate),
	)
	opts := []tea.AgentOption{
		tea.WithOutputDir(a.cfg.Artifacts.Dir),
		tea.WithWorksheet(artifacts),
	}
	if a.cfg.IsLevel7Configured() {
		opts = append(opts, tea.WithLevel7(tea.NewExternalSimulator(a.cfg)))
	}
	return tea.NewAgent(sim, a.ledger, opts...), nil
}

// loadMAML fetches a stored MAML, naming the id in the not-found error.
func (a *app) loadMAML(ctx context.Context, id string) (*maml.MAML, error) {
	m, err := a.mamls.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no MAML with id %q (see `maml build`)", id)
	}
	return m, err
}
