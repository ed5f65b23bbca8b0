/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package cfgcore assembles the configuration store's components -- the
// tree registry, the change-notification engine, the request scheduler,
// and the session manager -- into one Core value.  A Core is owned
// entirely by the single goroutine that runs its event loop; there is no
// process-level singleton, so a process embedding two independent stores
// (as a test harness might) simply holds two Cores.
package cfgcore

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"bg/common/cfgiter"
	"bg/common/cfgnotify"
	"bg/common/cfgreg"
	"bg/common/cfgsched"
	"bg/common/cfgsession"
	"bg/common/cfgtree"
)

// defaultTransactionTimeout is used when /configTree/transactionTimeout
// is absent from the system tree.
const defaultTransactionTimeout = 30 * time.Second

// Core is the assembled configuration store.
type Core struct {
	log     *zap.SugaredLogger
	reg     *cfgreg.Registry
	notify  *cfgnotify.Engine
	sched   *cfgsched.Scheduler
	session *cfgsession.Manager
	watch   *cfgiter.TimeoutWatchdog

	// shadows tracks the one in-flight write shadow per tree name; spec
	// §4.5 allows only a single writer, so at most one entry exists per
	// tree at a time.
	shadows map[string]*cfgtree.Tree

	// writeIters tracks the write iterator handed out for each tree's
	// in-flight shadow, so Commit/Cancel can disarm its watchdog timeout.
	writeIters map[string]*cfgiter.Iterator

	// readIters tracks every still-open read iterator per tree, so
	// ReleaseRead and a session Disconnect can each release exactly the
	// reader slot their own iterator holds.
	readIters map[string][]*cfgiter.Iterator
}

// New assembles a Core rooted at dir, where every tree's revision files
// live.
func New(dir string, log *zap.SugaredLogger, met *cfgsched.Metrics) *Core {
	reg := cfgreg.New(dir, log)
	notify := cfgnotify.New(log)
	c := &Core{
		log:        log,
		reg:        reg,
		notify:     notify,
		sched:      cfgsched.New(reg, log, met),
		watch:      cfgiter.NewTimeoutWatchdog(),
		shadows:    make(map[string]*cfgtree.Tree),
		writeIters: make(map[string]*cfgiter.Iterator),
		readIters:  make(map[string][]*cfgiter.Iterator),
	}
	c.session = cfgsession.New(log, notify, c)
	return c
}

// OpenRead admits (or queues) a read transaction against treeName and, once
// admitted, hands back a read-only iterator over the live tree.  run is
// invoked synchronously once the iterator is ready; the caller must call
// Core.ReleaseRead(it) once it is done with the iterator, so the reader
// slot this transaction holds is freed for a waiting writer.
//
// user is checked against CheckACL's "ro" permission before the
// transaction is even submitted; an empty user identifies a trusted
// internal caller (bootstrap code, the daemon itself) and skips the check.
func (c *Core) OpenRead(session cfgsession.ID, user, treeName string, run func(it *cfgiter.Iterator)) error {
	if user != "" && !c.CheckACL(user, treeName, "ro") {
		return fmt.Errorf("%w: %q has no read access to %q", cfgtree.ErrPermission, user, treeName)
	}
	req := &cfgsched.Request{Kind: cfgsched.CreateReadTxn, TreeName: treeName, Session: string(session)}
	req.Run = func() {
		e, err := c.reg.GetTree(treeName)
		if err != nil {
			c.log.Errorw("read transaction failed to load tree", "tree", treeName, "error", err)
			return
		}
		it := cfgiter.New(string(session), e.Tree, cfgiter.ReadOnly)
		c.readIters[treeName] = append(c.readIters[treeName], it)
		c.session.TrackIterator(session, it)
		run(it)
	}
	c.session.TrackQueued(session, req)
	return c.sched.Submit(req)
}

// OpenWrite admits (or queues) a write transaction against treeName and,
// once admitted, hands back a write iterator over a fresh shadow of the
// live tree.  The caller must follow with exactly one of Commit or
// Cancel.
//
// user is checked against CheckACL's "rw" permission before the
// transaction is even submitted; an empty user identifies a trusted
// internal caller (bootstrap code, the daemon itself) and skips the check.
// A user holding only "ro" on treeName is refused here even though
// CheckACL("ro") would pass for them -- spec property 8.
func (c *Core) OpenWrite(session cfgsession.ID, user, treeName string, run func(it *cfgiter.Iterator)) error {
	if user != "" && !c.CheckACL(user, treeName, "rw") {
		return fmt.Errorf("%w: %q has no write access to %q", cfgtree.ErrPermission, user, treeName)
	}
	req := &cfgsched.Request{Kind: cfgsched.CreateWriteTxn, TreeName: treeName, Session: string(session)}
	req.Run = func() {
		e, err := c.reg.GetTree(treeName)
		if err != nil {
			c.log.Errorw("write transaction failed to load tree", "tree", treeName, "error", err)
			return
		}
		shadow := cfgtree.NewShadow(e.Tree)
		c.shadows[treeName] = shadow
		it := cfgiter.New(string(session), shadow, cfgiter.ReadWrite)
		it.ArmTimeout(c.TransactionTimeout())
		c.watch.Arm(it)
		c.writeIters[treeName] = it
		c.session.TrackIterator(session, it)
		run(it)
	}
	c.session.TrackQueued(session, req)
	return c.sched.Submit(req)
}

// Commit merges treeName's in-flight shadow into the live tree, persists
// it, and fires any change notification the merge triggered.  It releases
// the writer slot the transaction held, draining any requests the release
// unblocks.
//
// A commit does not necessarily run before Commit returns: if a reader is
// still active on treeName the request parks behind it (spec.md's
// Scenario S1 -- "the commit reply is parked"), and only actually merges
// once the last reader releases.  A nil return here therefore means the
// commit was accepted, not that the live tree has changed yet; the merge
// and its notification fire together, whenever the request finally runs.
func (c *Core) Commit(treeName string) error {
	shadow, ok := c.shadows[treeName]
	if !ok {
		return fmt.Errorf("%w: no write transaction open on %q", cfgtree.ErrNotFound, treeName)
	}
	delete(c.shadows, treeName)
	if it, ok := c.writeIters[treeName]; ok {
		c.watch.Disarm(it)
		_ = it.Close()
		delete(c.writeIters, treeName)
	}

	var mergeErr error
	req := &cfgsched.Request{Kind: cfgsched.CommitWriteTxn, TreeName: treeName}
	req.Run = func() {
		if mergeErr = shadow.Merge(c.notify.ForTree(treeName)); mergeErr != nil {
			return
		}
		if mergeErr = c.reg.Persist(treeName); mergeErr != nil {
			return
		}
		if e, err := c.reg.GetTree(treeName); err == nil {
			e.Tree.Root().Rehash()
		}
		c.notify.FireTriggered()
	}
	if err := c.sched.Submit(req); err != nil {
		return err
	}
	return mergeErr
}

// ValidateTree reports whether treeName's in-core tree is internally
// consistent -- every stem's stored hash still matches its children's.  A
// mismatch means a node was mutated without going through the shadow/merge
// path and is a bug, not a user-facing condition.
func (c *Core) ValidateTree(treeName string) bool {
	e, err := c.reg.GetTree(treeName)
	if err != nil {
		return false
	}
	return e.Tree.Root().Validate()
}

// Cancel discards treeName's in-flight shadow without merging or
// persisting anything, and releases the writer slot the transaction held.
func (c *Core) Cancel(treeName string) {
	delete(c.shadows, treeName)
	if it, ok := c.writeIters[treeName]; ok {
		c.watch.Disarm(it)
		_ = it.Close()
		delete(c.writeIters, treeName)
	}
	req := &cfgsched.Request{Kind: cfgsched.CancelTxn, TreeName: treeName, Run: func() {}}
	_ = c.sched.Submit(req)
}

// ReleaseRead tells the core that a read transaction opened with OpenRead
// is done with it, freeing the reader slot it held.  Releasing an iterator
// more than once (e.g. once explicitly and once via a later session
// Disconnect) is harmless: only the first call, while it is still Open,
// does anything.
func (c *Core) ReleaseRead(it *cfgiter.Iterator) {
	if it.StateOf() != cfgiter.StateOpen {
		return
	}
	_ = it.Close()
	treeName := it.Tree.Name()
	list := c.readIters[treeName]
	for i, x := range list {
		if x == it {
			c.readIters[treeName] = append(list[:i], list[i+1:]...)
			break
		}
	}
	c.sched.ReleaseRead(treeName)
}

// ReleaseIterator satisfies cfgsession.TreeReleaser: it lets a
// disconnecting session give back whatever tree-level slot it is an
// iterator still holds, instead of merely flagging the iterator
// terminated.  A write iterator's tree is cancelled outright -- the
// single-writer invariant means an Open write iterator is always the
// current writer of its tree, so Cancel is never stealing someone else's
// transaction.
func (c *Core) ReleaseIterator(it *cfgiter.Iterator) {
	if it.StateOf() != cfgiter.StateOpen {
		return
	}
	if it.Mode == cfgiter.ReadWrite {
		c.Cancel(it.Tree.Name())
		return
	}
	c.ReleaseRead(it)
}

// AddHandler registers fn to fire whenever treeName's tree changes at or
// beneath path, crediting the registration to session so Disconnect
// removes it automatically.
func (c *Core) AddHandler(session cfgsession.ID, treeName, path string, fn cfgnotify.Handler) {
	id := c.notify.AddHandler(treeName, path, string(session), fn)
	c.session.TrackHandler(session, id)
}

// Disconnect unwinds everything a departing session holds open.
func (c *Core) Disconnect(session cfgsession.ID) {
	c.session.Disconnect(session)
}

// TransactionTimeout returns the configured write-transaction timeout from
// the system tree's /configTree/transactionTimeout, or the default if
// absent.
func (c *Core) TransactionTimeout() time.Duration {
	e, err := c.reg.GetTree(cfgtree.SystemTreeName)
	if err != nil {
		return defaultTransactionTimeout
	}
	n := e.Tree.Root().Child("configTree")
	if n == nil {
		return defaultTransactionTimeout
	}
	tt := n.Child("transactionTimeout")
	if tt == nil {
		return defaultTransactionTimeout
	}
	secs := tt.GetInt(int64(defaultTransactionTimeout / time.Second))
	return time.Duration(secs) * time.Second
}

// CheckACL reports whether user may access treeName with the given
// permission ("ro" or "rw"), per the system tree keys documented in
// spec.md §6:
//
//	/apps/<user>/configLimits/allAccess
//	/apps/<user>/configLimits/acl/<tree>
//	/users/<user>/configLimits/allAccess
//	/users/<user>/configLimits/acl/<tree>
//
// allAccess grants every tree; acl/<tree> grants exactly that one.  A user
// found under neither /apps nor /users has no access, except that every
// user implicitly has read access to the tree carrying their own name.
func (c *Core) CheckACL(user, treeName, permission string) bool {
	if permission == "ro" && treeName == user {
		return true
	}
	e, err := c.reg.GetTree(cfgtree.SystemTreeName)
	if err != nil {
		return false
	}
	for _, base := range []string{"apps", "users"} {
		root := e.Tree.Root().Child(base)
		if root == nil {
			continue
		}
		u := root.Child(user)
		if u == nil {
			continue
		}
		limits := u.Child("configLimits")
		if limits == nil {
			continue
		}
		if all := limits.Child("allAccess"); all != nil {
			if granted := all.GetString(""); granted == permission || granted == "rw" {
				return true
			}
		}
		if acl := limits.Child("acl"); acl != nil {
			if grant := acl.Child(treeName); grant != nil {
				granted := grant.GetString("")
				if granted == permission || granted == "rw" {
					return true
				}
			}
		}
	}
	return false
}

// Watchdog exposes the core's iterator-timeout watchdog so the owning
// event loop can drive it off its own timer.
func (c *Core) Watchdog() *cfgiter.TimeoutWatchdog { return c.watch }

// ExpireTimeouts terminates every write iterator whose transaction timeout
// has elapsed as of now, cancelling its shadow so the writer slot it held
// is freed for the next queued request.  The owning event loop is expected
// to call this periodically; confd's main.go does so off a ticker.
func (c *Core) ExpireTimeouts(now time.Time) {
	for _, it := range c.watch.ExpireDue(now) {
		for tree, tracked := range c.writeIters {
			if tracked == it {
				c.log.Warnw("write transaction timed out", "tree", tree)
				c.Cancel(tree)
				break
			}
		}
	}
}

// Registry exposes the core's tree registry, e.g. for an admin endpoint
// that lists trees via a TreeIterator.
func (c *Core) Registry() *cfgreg.Registry { return c.reg }
