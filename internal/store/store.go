// Package store persists document chunks with vector search on top of
// an embedded chromem-go database.
//
// Store is the single owner of the on-disk collection. A file lock on
// the store directory prevents two processes from corrupting the same
// database. All operations are safe for concurrent use.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/gofrs/flock"
	chromem "github.com/philippgille/chromem-go"

	"github.com/kestrel0/ragdex/internal/log"
)

// Sentinel errors for store failures callers branch on.
var (
	// ErrLocked means another process holds the store directory.
	ErrLocked = errors.New("store directory locked by another process")

	// ErrLengthMismatch means ids, contents and metadatas differ in length.
	ErrLengthMismatch = errors.New("ids, contents and metadatas must have equal length")
)

const lockFileName = ".ragdex.lock"

// Result is a single similarity search hit.
type Result struct {
	ID         string
	Content    string
	Metadata   map[string]string
	Similarity float32
}

// Store wraps a persistent chromem collection and tracks which chunk IDs
// belong to which source file.
//
// The source index is rebuilt from scratch each session by the folder
// scan; cross-session cleanup of vanished sources goes through
// DeleteBySource, which filters on persisted metadata instead.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	lock       *flock.Flock
	logger     log.Logger

	mu       sync.RWMutex
	bySource map[string]map[string]struct{}
	sourceOf map[string]string
}

// Open opens (or creates) the persistent store at path and binds the
// named collection to the given embedding function.
//
// Open fails with ErrLocked when another process already owns the
// directory.
func Open(path, collection string, embed chromem.EmbeddingFunc, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory %q: %w", path, err)
	}

	lock := flock.New(filepath.Join(path, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open vector database at %q: %w", path, err)
	}

	col, err := db.GetOrCreateCollection(collection, nil, embed)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open collection %q: %w", collection, err)
	}

	logger.Info("vector store opened",
		"path", path,
		"collection", collection,
		"documents", col.Count())

	return &Store{
		db:         db,
		collection: col,
		lock:       lock,
		logger:     logger,
		bySource:   make(map[string]map[string]struct{}),
		sourceOf:   make(map[string]string),
	}, nil
}

// Close releases the store directory lock.
func (s *Store) Close() error {
	if s.lock == nil {
		return nil
	}
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("release store lock: %w", err)
	}
	return nil
}

// Add upserts documents into the collection. Existing IDs are replaced,
// so re-adding a file's chunks after a change converges on the new
// content. Each metadata map must carry a "source" key for the source
// index.
func (s *Store) Add(ctx context.Context, ids []string, contents []string, metadatas []map[string]string) error {
	if len(ids) != len(contents) || len(ids) != len(metadatas) {
		return fmt.Errorf("%w: got %d ids, %d contents, %d metadatas",
			ErrLengthMismatch, len(ids), len(contents), len(metadatas))
	}
	if len(ids) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(ids))
	for i := range ids {
		docs[i] = chromem.Document{
			ID:       ids[i],
			Content:  contents[i],
			Metadata: metadatas[i],
		}
	}

	concurrency := runtime.NumCPU()
	if concurrency > len(docs) {
		concurrency = len(docs)
	}
	if err := s.collection.AddDocuments(ctx, docs, concurrency); err != nil {
		return fmt.Errorf("add %d documents: %w", len(docs), err)
	}

	s.mu.Lock()
	for i, id := range ids {
		s.trackLocked(id, metadatas[i]["source"])
	}
	s.mu.Unlock()

	s.logger.Debug("documents added", "count", len(ids))
	return nil
}

// Delete removes the given chunk IDs. Unknown IDs and an empty slice
// are no-ops.
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	// Unknown IDs are a no-op, not an error.
	known := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := s.collection.GetByID(ctx, id); err == nil {
			known = append(known, id)
		}
	}
	if len(known) == 0 {
		return nil
	}

	if err := s.collection.Delete(ctx, nil, nil, known...); err != nil {
		return fmt.Errorf("delete %d documents: %w", len(known), err)
	}

	s.mu.Lock()
	for _, id := range known {
		s.untrackLocked(id)
	}
	s.mu.Unlock()

	s.logger.Debug("documents deleted", "count", len(known))
	return nil
}

// DeleteBySource removes every chunk whose metadata source matches the
// given path. Unlike Delete this works across sessions because it
// filters on persisted metadata, not the in-memory index.
func (s *Store) DeleteBySource(ctx context.Context, source string) error {
	if source == "" {
		return nil
	}
	if s.collection.Count() == 0 {
		return nil
	}

	if err := s.collection.Delete(ctx, map[string]string{"source": source}, nil); err != nil {
		return fmt.Errorf("delete documents for source %q: %w", source, err)
	}

	s.mu.Lock()
	for id := range s.bySource[source] {
		delete(s.sourceOf, id)
	}
	delete(s.bySource, source)
	s.mu.Unlock()

	s.logger.Debug("source removed from store", "source", source)
	return nil
}

// IDsBySource returns the chunk IDs recorded for a source this session,
// sorted for stable output. An unknown source yields an empty slice.
func (s *Store) IDsBySource(source string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.bySource[source]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sources returns all source paths indexed this session, sorted.
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sources := make([]string, 0, len(s.bySource))
	for src := range s.bySource {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	return sources
}

// Count returns the number of documents in the collection.
func (s *Store) Count() int {
	return s.collection.Count()
}

// Query returns up to k documents most similar to text, ordered by
// descending cosine similarity. An empty collection yields no results
// rather than an error, and k is clamped to the collection size.
func (s *Store) Query(ctx context.Context, text string, k int) ([]Result, error) {
	count := s.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	hits, err := s.collection.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			ID:         hit.ID,
			Content:    hit.Content,
			Metadata:   hit.Metadata,
			Similarity: hit.Similarity,
		})
	}
	return results, nil
}

// trackLocked records id under source. Caller holds s.mu.
func (s *Store) trackLocked(id, source string) {
	if source == "" {
		return
	}
	if prev, ok := s.sourceOf[id]; ok && prev != source {
		delete(s.bySource[prev], id)
	}
	set := s.bySource[source]
	if set == nil {
		set = make(map[string]struct{})
		s.bySource[source] = set
	}
	set[id] = struct{}{}
	s.sourceOf[id] = source
}

// untrackLocked drops id from the source index. Caller holds s.mu.
func (s *Store) untrackLocked(id string) {
	source, ok := s.sourceOf[id]
	if !ok {
		return
	}
	delete(s.sourceOf, id)
	if set := s.bySource[source]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(s.bySource, source)
		}
	}
}
