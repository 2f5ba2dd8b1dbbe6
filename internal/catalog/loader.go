// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// loader.go - TOML file-backed catalog store with fsnotify hot reload.
package catalog

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// FILE STORE
// =============================================================================

// catalogFile mirrors the on-disk TOML layout:
//
//	[[model]]
//	id = "gpt-4o-mini"
//	name = "GPT-4o Mini"
//	provider = "openai"
//	tier = 6
//	cost_input_per_k = 0.00015
//	cost_output_per_k = 0.0006
//	co2_grams = 1.2
//	task_types = ["chat", "code"]
type catalogFile struct {
	Models []ModelRecord `toml:"model"`
}

// FileStore loads model records from a TOML catalog file.
type FileStore struct {
	// Path is the catalog file location.
	Path string
}

// NewFileStore creates a file-backed catalog store.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// ListModels reads and decodes the catalog file.
func (s *FileStore) ListModels(ctx context.Context) ([]ModelRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file catalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", s.Path, err)
	}

	return file.Models, nil
}

// =============================================================================
// HOT RELOAD
// =============================================================================

// reloadDebounce coalesces bursts of file events into a single reload.
const reloadDebounce = 500 * time.Millisecond

// Provider serves the current catalog snapshot and reloads it when the
// backing file changes. New requests see new data eventually; in-flight
// requests keep the snapshot they started with.
type Provider struct {
	store   *FileStore
	current atomic.Pointer[Catalog]
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewProvider loads the initial snapshot from the catalog file.
// The initial load is strict: a missing or empty catalog is a startup error.
func NewProvider(ctx context.Context, path string) (*Provider, error) {
	store := NewFileStore(path)
	cat, err := Load(ctx, store)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		store: store,
		done:  make(chan struct{}),
	}
	p.current.Store(cat)
	return p, nil
}

// Current returns the active catalog snapshot.
func (p *Provider) Current() *Catalog {
	return p.current.Load()
}

// Watch starts watching the catalog file for changes and hot-reloads the
// snapshot. A reload that fails (unreadable or invalid file) keeps the
// previous snapshot and logs the error; it never takes routing down.
func (p *Provider) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}

	// Watch the directory, not the file: editors replace files on save and
	// the watch on the old inode would be lost.
	dir := filepath.Dir(p.store.Path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch catalog directory: %w", err)
	}

	p.watcher = watcher
	go p.watchLoop()
	return nil
}

// watchLoop applies debounced reloads on file events.
func (p *Provider) watchLoop() {
	var timer *time.Timer
	target := filepath.Clean(p.store.Path)

	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, p.reload)

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("CATALOG: watcher error: %v", err)

		case <-p.done:
			return
		}
	}
}

// reload swaps in a fresh snapshot from disk.
func (p *Provider) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cat, err := Load(ctx, p.store)
	if err != nil {
		log.Printf("CATALOG: reload failed, keeping previous snapshot: %v", err)
		return
	}

	p.current.Store(cat)
	log.Printf("CATALOG: reloaded %d models from %s", cat.Len(), p.store.Path)
}

// Close stops the watcher, if one was started.
func (p *Provider) Close() error {
	select {
	case <-p.done:
		// already closed
	default:
		close(p.done)
	}
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}
