package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"maml/internal/logging"
)

// FileStore keeps one JSON file per collection under a directory. Documents
// live in <collection>.json, lists in <collection>.lists.json.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) docPath(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

func (s *FileStore) listPath(collection string) string {
	return filepath.Join(s.dir, collection+".lists.json")
}

func readMap[T any](path string) (map[string]T, error) {
	out := make(map[string]T)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return out, nil
}

// writeMap replaces path atomically through a temp file.
func writeMap[T any](path string, m map[string]T) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func checkKey(collection, key string) error {
	if collection == "" || key == "" {
		return fmt.Errorf("store: empty collection or key (%q/%q)", collection, key)
	}
	return nil
}

func checkJSON(doc []byte) error {
	if !json.Valid(doc) {
		return fmt.Errorf("store: document is not valid JSON")
	}
	return nil
}

// Get implements DocumentStore.
func (s *FileStore) Get(_ context.Context, collection, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := readMap[json.RawMessage](s.docPath(collection))
	if err != nil {
		return nil, err
	}
	doc, ok := docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Put implements DocumentStore.
func (s *FileStore) Put(_ context.Context, collection, key string, doc []byte) error {
	if err := checkKey(collection, key); err != nil {
		return err
	}
	if err := checkJSON(doc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.docPath(collection)
	docs, err := readMap[json.RawMessage](path)
	if err != nil {
		return err
	}
	docs[key] = json.RawMessage(doc)
	logging.StoreDebug("file: put %s/%s", collection, key)
	return writeMap(path, docs)
}

// Delete implements DocumentStore.
func (s *FileStore) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.docPath(collection)
	docs, err := readMap[json.RawMessage](path)
	if err != nil {
		return err
	}
	if _, ok := docs[key]; !ok {
		return nil
	}
	delete(docs, key)
	return writeMap(path, docs)
}

// Keys implements DocumentStore.
func (s *FileStore) Keys(_ context.Context, collection string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := readMap[json.RawMessage](s.docPath(collection))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Append implements DocumentStore.
func (s *FileStore) Append(_ context.Context, collection, key string, item []byte) error {
	if err := checkKey(collection, key); err != nil {
		return err
	}
	if err := checkJSON(item); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.listPath(collection)
	lists, err := readMap[[]json.RawMessage](path)
	if err != nil {
		return err
	}
	lists[key] = append(lists[key], json.RawMessage(item))
	logging.StoreDebug("file: append %s/%s (len=%d)", collection, key, len(lists[key]))
	return writeMap(path, lists)
}

// List implements DocumentStore.
func (s *FileStore) List(_ context.Context, collection, key string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lists, err := readMap[[]json.RawMessage](s.listPath(collection))
	if err != nil {
		return nil, err
	}
	items := lists[key]
	out := make([][]byte, 0, len(items))
	for _, it := range items {
		out = append(out, []byte(it))
	}
	return out, nil
}

// SetList implements DocumentStore.
func (s *FileStore) SetList(_ context.Context, collection, key string, items [][]byte) error {
	if err := checkKey(collection, key); err != nil {
		return err
	}
	raw := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		if err := checkJSON(it); err != nil {
			return err
		}
		raw = append(raw, json.RawMessage(it))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.listPath(collection)
	lists, err := readMap[[]json.RawMessage](path)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		delete(lists, key)
	} else {
		lists[key] = raw
	}
	return writeMap(path, lists)
}

// Close implements DocumentStore.
func (s *FileStore) Close() error { return nil }
