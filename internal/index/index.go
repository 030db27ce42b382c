// Package index keeps a watched folder and the vector store in sync.
//
// The Indexer owns the full pipeline for one folder: parse a file into
// units, split units into chunks, assign deterministic chunk IDs and
// upsert them, replacing whatever the store previously held for that
// file. A startup scan indexes the folder's current contents and the
// watch loop applies filesystem changes as they happen.
package index

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kestrel0/ragdex/internal/chunker"
	"github.com/kestrel0/ragdex/internal/log"
	"github.com/kestrel0/ragdex/internal/parser"
)

// DefaultSettleDelay is how long the watcher waits after a filesystem
// event before reading the file, so writers have a chance to finish.
const DefaultSettleDelay = 500 * time.Millisecond

// Store is the slice of the vector store the indexer needs.
type Store interface {
	Add(ctx context.Context, ids []string, contents []string, metadatas []map[string]string) error
	DeleteBySource(ctx context.Context, source string) error
	IDsBySource(source string) []string
}

// Parser is the document parsing surface the indexer consumes.
type Parser interface {
	Parse(ctx context.Context, path string) ([]parser.Unit, error)
	ParseURL(ctx context.Context, rawURL string) ([]parser.Unit, error)
}

// ScanResult summarizes one pass over the watched folder.
type ScanResult struct {
	Indexed int
	Skipped int
	Failed  int
	Chunks  int
}

// Indexer orchestrates parse, chunk and store for one watched folder.
type Indexer struct {
	folder  string
	settle  time.Duration
	parser  Parser
	chunker *chunker.Chunker
	store   Store
	logger  log.Logger
}

// New creates an Indexer for folder. The folder is created on first
// scan if it does not exist yet.
func New(folder string, p Parser, c *chunker.Chunker, s Store, settle time.Duration, logger log.Logger) (*Indexer, error) {
	if folder == "" {
		return nil, errors.New("watch folder must not be empty")
	}
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("resolve watch folder %q: %w", folder, err)
	}
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &Indexer{
		folder:  abs,
		settle:  settle,
		parser:  p,
		chunker: c,
		store:   s,
		logger:  logger,
	}, nil
}

// Folder returns the absolute path of the watched folder.
func (ix *Indexer) Folder() string { return ix.folder }

// ChunkID builds the deterministic ID for one chunk of a source: the
// source's base name, the first 8 hex characters of the source path's
// MD5, and the chunk ordinal. Two files with the same name in different
// places never collide, and re-indexing a file reproduces its IDs so
// upserts replace stale chunks in place.
func ChunkID(source, base string, ordinal int) string {
	sum := md5.Sum([]byte(source))
	return base + "_" + hex.EncodeToString(sum[:])[:8] + "_" + strconv.Itoa(ordinal)
}

// IndexFile parses, chunks and stores one file, replacing any chunks
// the store already holds for it. The path is resolved to an absolute
// path before use so chunk IDs stay stable regardless of how the file
// was referenced.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (int, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("resolve %q: %w", path, err)
	}

	units, err := ix.parser.Parse(ctx, abs)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", abs, err)
	}

	ids, contents, metadatas := ix.assemble(units, abs, filepath.Base(abs))

	// Stale chunks from a previous version of the file may outnumber the
	// new ones, so clear the source before upserting. Best-effort: the
	// upsert overwrites overlapping ordinals even when the delete fails.
	if err := ix.store.DeleteBySource(ctx, abs); err != nil {
		ix.logger.Warn("clearing stale chunks failed", "path", abs, "error", err)
	}
	if len(ids) == 0 {
		ix.logger.Info("file produced no chunks", "path", abs)
		return 0, nil
	}
	if err := ix.store.Add(ctx, ids, contents, metadatas); err != nil {
		return 0, fmt.Errorf("store chunks for %s: %w", abs, err)
	}

	ix.logger.Info("file indexed", "path", abs, "chunks", len(ids))
	return len(ids), nil
}

// IndexURL fetches and indexes a web page. The URL itself is the
// source, so re-indexing the same URL replaces its previous chunks.
func (ix *Indexer) IndexURL(ctx context.Context, rawURL string) (int, error) {
	units, err := ix.parser.ParseURL(ctx, rawURL)
	if err != nil {
		return 0, fmt.Errorf("parse url %s: %w", rawURL, err)
	}

	ids, contents, metadatas := ix.assemble(units, rawURL, urlBase(rawURL))

	if err := ix.store.DeleteBySource(ctx, rawURL); err != nil {
		ix.logger.Warn("clearing stale chunks failed", "url", rawURL, "error", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := ix.store.Add(ctx, ids, contents, metadatas); err != nil {
		return 0, fmt.Errorf("store chunks for %s: %w", rawURL, err)
	}

	ix.logger.Info("url indexed", "url", rawURL, "chunks", len(ids))
	return len(ids), nil
}

// Remove drops every stored chunk belonging to path.
func (ix *Indexer) Remove(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", path, err)
	}

	known := len(ix.store.IDsBySource(abs))
	if err := ix.store.DeleteBySource(ctx, abs); err != nil {
		return fmt.Errorf("remove chunks for %s: %w", abs, err)
	}

	ix.logger.Info("file removed from index", "path", abs, "chunks", known)
	return nil
}

// ScanFolder indexes every eligible file directly inside the watched
// folder. Subdirectories, hidden files and unsupported extensions are
// skipped. A missing folder is created empty rather than treated as an
// error. Per-file failures are logged and counted, not fatal.
func (ix *Indexer) ScanFolder(ctx context.Context) (ScanResult, error) {
	var res ScanResult

	if err := os.MkdirAll(ix.folder, 0o755); err != nil {
		return res, fmt.Errorf("create watch folder %q: %w", ix.folder, err)
	}

	entries, err := os.ReadDir(ix.folder)
	if err != nil {
		return res, fmt.Errorf("read watch folder %q: %w", ix.folder, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		name := entry.Name()
		if entry.IsDir() || !ix.eligible(name) {
			res.Skipped++
			continue
		}

		chunks, err := ix.IndexFile(ctx, filepath.Join(ix.folder, name))
		if err != nil {
			ix.logger.Error("initial indexing failed", "file", name, "error", err)
			res.Failed++
			continue
		}
		res.Indexed++
		res.Chunks += chunks
	}

	ix.logger.Info("folder scan complete",
		"folder", ix.folder,
		"indexed", res.Indexed,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"chunks", res.Chunks)
	return res, nil
}

// Watch blocks, applying filesystem events to the store until ctx is
// canceled. Events are handled one at a time in arrival order. Handler
// errors are logged and the loop continues; only watcher setup failures
// and cancellation end the loop.
func (ix *Indexer) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(ix.folder); err != nil {
		return fmt.Errorf("watch folder %q: %w", ix.folder, err)
	}

	ix.logger.Info("watching folder", "folder", ix.folder)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if err := ix.handleEvent(ctx, event); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				ix.logger.Error("event handling failed",
					"op", event.Op.String(),
					"path", event.Name,
					"error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ix.logger.Error("watcher error", "error", err)
		}
	}
}

// handleEvent maps one fsnotify event onto an index operation.
func (ix *Indexer) handleEvent(ctx context.Context, event fsnotify.Event) error {
	name := filepath.Base(event.Name)
	if !ix.eligible(name) {
		return nil
	}

	switch {
	case event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Write):
		// Give the writer time to finish before reading.
		if err := ix.sleep(ctx); err != nil {
			return err
		}
		info, err := os.Stat(event.Name)
		if err != nil {
			// Gone again already. A Remove event will follow if it was
			// ever indexed.
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("stat %s: %w", event.Name, err)
		}
		if info.IsDir() {
			return nil
		}
		_, err = ix.IndexFile(ctx, event.Name)
		return err

	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		return ix.Remove(ctx, event.Name)
	}

	return nil
}

// eligible reports whether a file name should be indexed: not hidden
// and carrying a supported extension.
func (ix *Indexer) eligible(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	return parser.Supported(name)
}

// assemble flattens parsed units into aligned id, content and metadata
// slices with ordinals running across the whole source.
func (ix *Indexer) assemble(units []parser.Unit, source, base string) ([]string, []string, []map[string]string) {
	var ids, contents []string
	var metadatas []map[string]string

	ordinal := 0
	for _, unit := range units {
		for _, ch := range ix.chunker.Chunk(unit) {
			md := make(map[string]string, len(ch.Metadata)+1)
			for k, v := range ch.Metadata {
				md[k] = v
			}
			md["source"] = source

			ids = append(ids, ChunkID(source, base, ordinal))
			contents = append(contents, ch.Content)
			metadatas = append(metadatas, md)
			ordinal++
		}
	}
	return ids, contents, metadatas
}

// sleep waits the settle delay or until ctx is canceled.
func (ix *Indexer) sleep(ctx context.Context) error {
	timer := time.NewTimer(ix.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// urlBase derives a readable ID prefix from a URL. Falls back to the
// whole string when the URL has no path segment worth using.
func urlBase(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 && i < len(trimmed)-1 {
		if seg := trimmed[i+1:]; seg != "" && !strings.Contains(seg, ":") {
			return seg
		}
	}
	return "url"
}
