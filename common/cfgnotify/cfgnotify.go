/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package cfgnotify implements change-notification: clients register a
// handler against a tree-qualified path, and the engine fires it once a
// write transaction touching that path commits.  A registration's target
// does not need to exist -- a handler can be armed for a node before it is
// ever created.
package cfgnotify

import (
	"fmt"
	"strings"

	"github.com/satori/uuid"
	"go.uber.org/zap"
)

// Handler is a client's change callback.  It runs synchronously inside the
// post-merge firing pass; it must not call back into the core.
type Handler func(treeName, path string)

// key canonicalizes a registration target as "tree:/abs/path".
func key(treeName, path string) string {
	return treeName + ":" + path
}

type handlerEntry struct {
	id      uuid.UUID
	session string // opaque session token; used to mass-cancel on disconnect
	fn      Handler
}

// registration is one path's list of handlers, plus the dirty bit merge
// sets and FireTriggered clears.
type registration struct {
	treeName, path string
	triggered      bool
	handlers       []*handlerEntry
}

// Engine is the change-notification core.  One Engine serves every tree a
// process manages; it is not safe for concurrent use from more than the
// single-threaded scheduler goroutine that owns the configuration core.
type Engine struct {
	log  *zap.SugaredLogger
	regs map[string]*registration

	// byID lets RemoveHandler find a registration in O(1) instead of
	// scanning every path's handler list.
	byID map[uuid.UUID]*registration
}

// New creates an empty notification engine.
func New(log *zap.SugaredLogger) *Engine {
	return &Engine{
		log:  log,
		regs: make(map[string]*registration),
		byID: make(map[uuid.UUID]*registration),
	}
}

// AddHandler arms fn against treeName:path, creating the registration if
// this is the first handler for that target.  The returned id is passed to
// RemoveHandler.
func (e *Engine) AddHandler(treeName, path, session string, fn Handler) uuid.UUID {
	k := key(treeName, path)
	r, ok := e.regs[k]
	if !ok {
		r = &registration{treeName: treeName, path: path}
		e.regs[k] = r
	}
	h := &handlerEntry{id: uuid.NewV4(), session: session, fn: fn}
	r.handlers = append(r.handlers, h)
	e.byID[h.id] = r
	return h.id
}

// RemoveHandler disarms a previously added handler.  Removing an unknown
// id is a no-op, matching a client racing a disconnect against an explicit
// removal.
func (e *Engine) RemoveHandler(id uuid.UUID) {
	r, ok := e.byID[id]
	if !ok {
		return
	}
	delete(e.byID, id)
	for i, h := range r.handlers {
		if h.id == id {
			r.handlers = append(r.handlers[:i:i], r.handlers[i+1:]...)
			break
		}
	}
	if len(r.handlers) == 0 {
		delete(e.regs, key(r.treeName, r.path))
	}
}

// RemoveSession disarms every handler registered under session, called
// when a client session closes.
func (e *Engine) RemoveSession(session string) {
	var dead []uuid.UUID
	for id, r := range e.byID {
		for _, h := range r.handlers {
			if h.id == id && h.session == session {
				dead = append(dead, id)
			}
		}
	}
	for _, id := range dead {
		e.RemoveHandler(id)
	}
}

// Touch marks path's own registration (if one exists) dirty.  It implements
// cfgtree.MergeNotifier and is meant to be called only from inside a
// merge.
func (e *Engine) Touch(treeName, path string) {
	if r, ok := e.regs[key(treeName, path)]; ok {
		r.triggered = true
	}
}

// TouchSubtree marks path's registration and every descendant
// registration dirty.  A merge calls this when a subtree is about to be
// overwritten or removed wholesale, since every registration under it may
// now observe a different value (or none at all).
func (e *Engine) TouchSubtree(treeName, path string) {
	prefix := path + "/"
	for _, r := range e.regs {
		if r.treeName != treeName {
			continue
		}
		if r.path == path || path == "" || strings.HasPrefix(r.path, prefix) {
			r.triggered = true
		}
	}
}

// ForTree adapts Engine to cfgtree.MergeNotifier for a single named tree,
// so cfgtree.Tree.Merge need not know tree names itself.
func (e *Engine) ForTree(treeName string) TreeNotifier {
	return TreeNotifier{engine: e, treeName: treeName}
}

// TreeNotifier is the narrow, tree-bound view of Engine that
// cfgtree.Tree.Merge consumes as a cfgtree.MergeNotifier.
type TreeNotifier struct {
	engine   *Engine
	treeName string
}

func (t TreeNotifier) Touch(path string)        { t.engine.Touch(t.treeName, path) }
func (t TreeNotifier) TouchSubtree(path string) { t.engine.TouchSubtree(t.treeName, path) }

// FireTriggered runs every handler on a registration whose triggered flag
// was set since the last call, in insertion order, then clears the flag.
// It is called exactly once after a write transaction commits -- never
// from inside the merge itself -- so a handler that reads the tree always
// sees the fully merged result.
func (e *Engine) FireTriggered() {
	for _, r := range e.regs {
		if !r.triggered {
			continue
		}
		r.triggered = false
		for _, h := range r.handlers {
			func() {
				defer func() {
					if p := recover(); p != nil {
						e.log.Errorw("change handler panicked",
							"tree", r.treeName, "path", r.path, "panic", p)
					}
				}()
				h.fn(r.treeName, r.path)
			}()
		}
	}
}

// String is used only for diagnostics (e.g. an admin dump of live
// registrations).
func (r *registration) String() string {
	return fmt.Sprintf("%s:%s (%d handlers, triggered=%v)", r.treeName, r.path, len(r.handlers), r.triggered)
}
