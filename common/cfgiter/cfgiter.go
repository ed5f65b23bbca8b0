/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package cfgiter implements cursors over a cfgtree.Tree: stateful
// positions that navigate by name, read and write typed values, and --
// for a write iterator -- lazily create the nodes they visit.
package cfgiter

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/satori/uuid"

	"bg/common/cfgtree"
)

// Mode distinguishes a read-only cursor from one allowed to create nodes
// and write values; a write iterator's tree is always a shadow tree.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// State is the iterator's lifecycle: Open accepts navigation and
// read/write calls, Closed no longer does but is still known to its
// owner, Released has been fully forgotten.
type State int

const (
	StateOpen State = iota
	StateClosed
	StateReleased
)

// Iterator is a single client's cursor into one tree.  It is not safe for
// concurrent use; the scheduler serializes all operations against it.
type Iterator struct {
	ID      uuid.UUID
	Session string
	Tree    *cfgtree.Tree
	Mode    Mode

	cur     *cfgtree.Node
	path    string // cached absolute path of cur, '/'-joined
	created time.Time
	deadline time.Time // zero means "no timeout armed"

	state      State
	terminated bool // set when the owning session or tree went away

	// heapIndex is owned by a timeoutQueue this iterator is armed in; see
	// heap.go.  -1 means "not currently in a heap."
	heapIndex int
}

// New creates an iterator positioned at tree's root.
func New(session string, tree *cfgtree.Tree, mode Mode) *Iterator {
	return &Iterator{
		ID:        uuid.NewV4(),
		Session:   session,
		Tree:      tree,
		Mode:      mode,
		cur:       tree.Root(),
		path:      "",
		created:   time.Time{},
		state:     StateOpen,
		heapIndex: -1,
	}
}

// Path returns the absolute path of the iterator's current position; the
// root is "/".
func (it *Iterator) Path() string {
	if it.path == "" {
		return "/"
	}
	return it.path
}

// Node returns the node currently under the cursor.
func (it *Iterator) Node() *cfgtree.Node { return it.cur }

func (it *Iterator) checkLive() error {
	if it.terminated {
		return ErrTerminated
	}
	if it.state != StateOpen {
		return ErrClosed
	}
	return nil
}

func (it *Iterator) checkWritable() error {
	if err := it.checkLive(); err != nil {
		return err
	}
	if it.Mode != ReadWrite {
		return ErrReadOnly
	}
	return nil
}

// GoToParent moves the cursor to its parent.  It fails at the root.
func (it *Iterator) GoToParent() error {
	if err := it.checkLive(); err != nil {
		return err
	}
	p := it.cur.Parent()
	if p == nil {
		return ErrAtRoot
	}
	it.cur = p
	it.path = parentPath(it.path)
	return nil
}

// GoToFirstChild moves to the first child, tombstoned or not.
func (it *Iterator) GoToFirstChild() error {
	return it.descend(it.cur.FirstChild)
}

// GoToFirstActiveChild moves to the first non-tombstoned child.
func (it *Iterator) GoToFirstActiveChild() error {
	return it.descend(it.cur.FirstActiveChild)
}

func (it *Iterator) descend(pick func() *cfgtree.Node) error {
	if err := it.checkLive(); err != nil {
		return err
	}
	c := pick()
	if c == nil {
		return ErrNoSuchChild
	}
	it.cur = c
	it.path = it.path + "/" + c.Name()
	return nil
}

// GoToNextSibling moves to the next sibling, tombstoned or not.
func (it *Iterator) GoToNextSibling() error {
	return it.sibling(it.cur.NextSibling)
}

// GoToNextActiveSibling moves to the next non-tombstoned sibling.
func (it *Iterator) GoToNextActiveSibling() error {
	return it.sibling(it.cur.NextActiveSibling)
}

func (it *Iterator) sibling(pick func() *cfgtree.Node) error {
	if err := it.checkLive(); err != nil {
		return err
	}
	s := pick()
	if s == nil {
		return ErrNoSuchChild
	}
	it.cur = s
	it.path = parentPath(it.path) + "/" + s.Name()
	return nil
}

// GoToChild moves to the named child.  A write iterator creates the child
// (and, if necessary, turns the current node into a stem) when it does
// not already exist; a read-only iterator fails with ErrNoSuchChild.  A
// move whose absolute path would exceed cfgtree.MaxPathLength fails with
// cfgtree.ErrOverflow and leaves the cursor where it was.
func (it *Iterator) GoToChild(name string) error {
	if err := it.checkLive(); err != nil {
		return err
	}
	if len(it.path)+1+len(name) > cfgtree.MaxPathLength {
		return cfgtree.ErrOverflow
	}
	c := it.cur.ActiveChild(name)
	if c == nil {
		if it.Mode != ReadWrite {
			return ErrNoSuchChild
		}
		nc, err := it.cur.InsertChild(name)
		if err != nil {
			return err
		}
		c = nc
	}
	it.cur = c
	it.path = it.path + "/" + name
	return nil
}

// GoTo repositions the cursor at an absolute, '/'-separated path from the
// tree root, e.g. "/svc/http/port".  The root itself is "" or "/".
func (it *Iterator) GoTo(path string) error {
	if err := it.checkLive(); err != nil {
		return err
	}
	it.cur = it.Tree.Root()
	it.path = ""
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	for _, name := range strings.Split(path, "/") {
		if err := it.GoToChild(name); err != nil {
			return err
		}
	}
	return nil
}

func parentPath(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// GetString returns the current node's value coerced to a string.
func (it *Iterator) GetString(def string) string { return it.cur.GetString(def) }

// GetInt returns the current node's value coerced to int64.
func (it *Iterator) GetInt(def int64) int64 { return it.cur.GetInt(def) }

// GetFloat returns the current node's value coerced to float64.
func (it *Iterator) GetFloat(def float64) float64 { return it.cur.GetFloat(def) }

// GetBool returns the current node's value coerced to bool.
func (it *Iterator) GetBool(def bool) bool { return it.cur.GetBool(def) }

// GetBinary decodes the current node's string value as base64, returning
// def if the node holds no string or the value is not valid base64.
func (it *Iterator) GetBinary(def []byte) []byte {
	s := it.cur.GetString("")
	if s == "" {
		return def
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return def
	}
	return b
}

// SetString stores v as the current node's value.
func (it *Iterator) SetString(v string) error {
	if err := it.checkWritable(); err != nil {
		return err
	}
	return it.cur.SetString(v)
}

// SetInt stores v as the current node's value.
func (it *Iterator) SetInt(v int64) error {
	if err := it.checkWritable(); err != nil {
		return err
	}
	it.cur.SetInt(v)
	return nil
}

// SetFloat stores v as the current node's value.
func (it *Iterator) SetFloat(v float64) error {
	if err := it.checkWritable(); err != nil {
		return err
	}
	it.cur.SetFloat(v)
	return nil
}

// SetBool stores v as the current node's value.
func (it *Iterator) SetBool(v bool) error {
	if err := it.checkWritable(); err != nil {
		return err
	}
	it.cur.SetBool(v)
	return nil
}

// SetBinary base64-encodes v and stores it as the current node's string
// value.  Binary values too large once encoded are rejected with
// cfgtree.ErrOverflow, surfaced through SetString.
func (it *Iterator) SetBinary(v []byte) error {
	if err := it.checkWritable(); err != nil {
		return err
	}
	if len(v) > cfgtree.MaxBinaryLength {
		return cfgtree.ErrOverflow
	}
	return it.cur.SetString(base64.StdEncoding.EncodeToString(v))
}

// Delete removes the current node.
func (it *Iterator) Delete() error {
	if err := it.checkWritable(); err != nil {
		return err
	}
	it.cur.Delete()
	return nil
}

// ArmTimeout gives the iterator a deadline; the owner is responsible for
// actually watching it (see heap.go) and calling Terminate when it
// elapses.
func (it *Iterator) ArmTimeout(d time.Duration) { it.deadline = time.Now().Add(d) }

// Deadline returns the iterator's armed deadline, or the zero Time if
// none is armed.
func (it *Iterator) Deadline() time.Time { return it.deadline }

// Terminate forcibly ends the iterator, independent of its State --
// called when the owning session disconnects, the target tree is
// deleted, or the timeout watchdog fires.
func (it *Iterator) Terminate() { it.terminated = true }

// Terminated reports whether Terminate has been called.
func (it *Iterator) Terminated() bool { return it.terminated }

// Close moves an Open iterator to Closed.  A write iterator's shadow tree
// is merged or discarded by its owner before or after this call; Close
// itself only changes the iterator's own bookkeeping state.
func (it *Iterator) Close() error {
	if it.state != StateOpen {
		return ErrClosed
	}
	it.state = StateClosed
	return nil
}

// Release moves a Closed iterator to Released, after which its owner may
// forget it entirely.
func (it *Iterator) Release() error {
	if it.state == StateReleased {
		return ErrClosed
	}
	it.state = StateReleased
	return nil
}

// StateOf reports the iterator's current lifecycle state.
func (it *Iterator) StateOf() State { return it.state }
