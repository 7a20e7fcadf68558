// Package store persists MAMLs, papers, parameter sets and TEA ledgers behind a
// keyed JSON document store with file, SQLite, Postgres and Redis backends.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key holds no document.
var ErrNotFound = errors.New("store: not found")

// Collections.
const (
	CollectionMAMLs  = "mamls"
	CollectionPapers = "papers"
	CollectionParams = "params"
	CollectionEvals  = "tea_evals"
)

// DocumentStore is a keyed JSON document store. Documents and lists live in
// separate namespaces; a key may hold a document in one collection and a list
// in another. Implementations assume a single writer.
type DocumentStore interface {
	// Get returns the document at collection/key or ErrNotFound.
	Get(ctx context.Context, collection, key string) ([]byte, error)
	// Put stores a document, replacing any previous one.
	Put(ctx context.Context, collection, key string, doc []byte) error
	// Delete removes a document. Deleting a missing key is not an error.
	Delete(ctx context.Context, collection, key string) error
	// Keys returns the document keys of a collection, sorted.
	Keys(ctx context.Context, collection string) ([]string, error)

	// Append adds an item to the end of the list at collection/key.
	Append(ctx context.Context, collection, key string, item []byte) error
	// List returns the list at collection/key in append order; empty when absent.
	List(ctx context.Context, collection, key string) ([][]byte, error)
	// SetList replaces the list at collection/key.
	SetList(ctx context.Context, collection, key string, items [][]byte) error

	Close() error
}
