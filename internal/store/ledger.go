package store

import (
	"context"
	"encoding/json"
	"fmt"

	"maml/internal/logging"
	"maml/internal/maml"
)

// Ledger is the append-only record of TEA evaluations per MAML. Identical runs
// are recorded again; nothing is deduplicated.
type Ledger struct {
	docs DocumentStore
}

// NewLedger wraps a document store.
func NewLedger(docs DocumentStore) *Ledger {
	return &Ledger{docs: docs}
}

// Append records one evaluation at the end of the MAML's ledger.
func (l *Ledger) Append(ctx context.Context, mamlID string, eval maml.TEAEval) error {
	if mamlID == "" {
		return maml.ErrMissingIdentity
	}
	data, err := json.Marshal(eval)
	if err != nil {
		return fmt.Errorf("failed to encode eval: %w", err)
	}
	if err := l.docs.Append(ctx, CollectionEvals, mamlID, data); err != nil {
		return err
	}
	logging.Store("Recorded level %d eval for %s", eval.Level, mamlID)
	return nil
}

// Replace clears the MAML's ledger and records evals in order.
func (l *Ledger) Replace(ctx context.Context, mamlID string, evals ...maml.TEAEval) error {
	if mamlID == "" {
		return maml.ErrMissingIdentity
	}
	items := make([][]byte, 0, len(evals))
	for _, e := range evals {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode eval: %w", err)
		}
		items = append(items, data)
	}
	if err := l.docs.SetList(ctx, CollectionEvals, mamlID, items); err != nil {
		return err
	}
	logging.Store("Replaced ledger for %s with %d evals", mamlID, len(evals))
	return nil
}

// List returns the MAML's evaluations in recording order.
func (l *Ledger) List(ctx context.Context, mamlID string) ([]maml.TEAEval, error) {
	items, err := l.docs.List(ctx, CollectionEvals, mamlID)
	if err != nil {
		return nil, err
	}
	evals := make([]maml.TEAEval, 0, len(items))
	for i, it := range items {
		var e maml.TEAEval
		if err := json.Unmarshal(it, &e); err != nil {
			return nil, fmt.Errorf("failed to decode eval %d for %s: %w", i, mamlID, err)
		}
		evals = append(evals, e)
	}
	return evals, nil
}
