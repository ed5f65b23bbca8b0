/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package cfgreg is the root of trust for per-tree concurrency state: it
// owns the one Entry per loaded tree that tracks outstanding readers, the
// single writer (if any), the request queue waiting on that tree, and
// whether the tree has a pending delete.  cfgtree.Tree itself stays a pure
// data model; Entry is what scheduling (common/cfgsched) and sessions
// (common/cfgsession) actually hold references to.
package cfgreg

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"bg/common/cfgtree"
)

// Request is the minimal shape a queued scheduler request must present so
// an Entry can notice its session has disconnected without cfgreg needing
// to import cfgsched.
type Request interface {
	SessionClosed() bool
}

// Entry is the live, in-memory state for one tree: its data plus
// everything about who is touching it right now.
type Entry struct {
	Tree *cfgtree.Tree

	Readers       int
	Writer        bool
	DeletePending bool

	// Queue holds requests admission has not yet let through; cfgsched
	// owns what a Request actually is and drains this slice.
	Queue []Request
}

// Registry loads, tracks, and persists every named tree a process
// manages.  One Registry is owned by the single event-loop goroutine that
// runs a configuration core; it is never accessed concurrently.
type Registry struct {
	dir string
	log *zap.SugaredLogger

	entries map[string]*Entry
}

// New creates a registry rooted at dir, where each tree's revision files
// live as "<dir>/<name>.paper|rock|scissors".
func New(dir string, log *zap.SugaredLogger) *Registry {
	return &Registry{
		dir:     dir,
		log:     log,
		entries: make(map[string]*Entry),
	}
}

// GetTree returns name's Entry, loading it from disk on first access. A
// name with no revision files on disk yet is not an error -- it loads as a
// fresh, empty tree, matching the first time anything references it.
func (r *Registry) GetTree(name string) (*Entry, error) {
	if e, ok := r.entries[name]; ok {
		return e, nil
	}
	if err := cfgtree.ValidateName(name); err != nil {
		return nil, err
	}
	if len(name) > cfgtree.MaxTreeNameLength {
		return nil, fmt.Errorf("%w: tree name %q exceeds %d bytes", cfgtree.ErrOverflow, name, cfgtree.MaxTreeNameLength)
	}
	t, err := cfgtree.Load(r.dir, name)
	if err != nil {
		return nil, err
	}
	e := &Entry{Tree: t}
	r.entries[name] = e
	return e, nil
}

// Loaded reports whether name is currently resident in memory, without
// loading it.
func (r *Registry) Loaded(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Persist writes name's current tree state to disk, advancing its
// revision.
func (r *Registry) Persist(name string) error {
	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: tree %q is not loaded", cfgtree.ErrNotFound, name)
	}
	return cfgtree.Save(r.dir, e.Tree)
}

// MarkDeletePending flags name for deletion once its last reader or
// writer releases it, re-evaluating immediately if it is already idle.
func (r *Registry) MarkDeletePending(name string) error {
	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: tree %q is not loaded", cfgtree.ErrNotFound, name)
	}
	e.DeletePending = true
	r.reevaluateDelete(name, e)
	return nil
}

// ReleaseReader tells the registry that one reader of name has finished,
// re-evaluating a pending delete.
func (r *Registry) ReleaseReader(name string) {
	if e, ok := r.entries[name]; ok && e.Readers > 0 {
		e.Readers--
		r.reevaluateDelete(name, e)
	}
}

// ReleaseWriter tells the registry the writer of name has finished.
func (r *Registry) ReleaseWriter(name string) {
	if e, ok := r.entries[name]; ok {
		e.Writer = false
		r.reevaluateDelete(name, e)
	}
}

func (r *Registry) reevaluateDelete(name string, e *Entry) {
	if !e.DeletePending || e.Readers > 0 || e.Writer {
		return
	}
	delete(r.entries, name)
	for _, rev := range []cfgtree.Revision{cfgtree.RevPaper, cfgtree.RevRock, cfgtree.RevScissors} {
		_ = os.Remove(filepath.Join(r.dir, name+"."+rev.String()))
	}
	r.log.Infow("tree deleted", "tree", name)
}

// Names returns the union of resident trees and file-backed trees found
// under the registry's directory, sorted and deduplicated: the snapshot a
// tree-enumeration iterator (spec.md's C7) walks.
func (r *Registry) Names() []string {
	seen := make(map[string]bool)
	for name := range r.entries {
		seen[name] = true
	}
	entries, err := os.ReadDir(r.dir)
	if err == nil {
		for _, fi := range entries {
			if fi.IsDir() {
				continue
			}
			ext := filepath.Ext(fi.Name())
			switch ext {
			case ".paper", ".rock", ".scissors":
				seen[fi.Name()[:len(fi.Name())-len(ext)]] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
