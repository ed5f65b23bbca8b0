/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package cfgapi is the convenience surface a client embeds instead of
// driving cfgcore.Core and cfgiter.Iterator directly: one call per
// operation, taking and returning plain values rather than a cursor, in
// the shape of the original configTreeApi.c's per-type Get/Set functions
// -- not a generic get_value_as<T>, since callers on the wire don't carry
// generics. Every call here opens its own short-lived transaction; a
// caller doing several operations in one atomic unit should use
// cfgcore.Core.OpenWrite directly instead.
package cfgapi

import (
	"fmt"
	"time"

	"bg/common/cfgcore"
	"bg/common/cfgiter"
	"bg/common/cfgsession"
	"bg/common/cfgtree"
)

// AccessLevel represents a level of privilege needed or obtained for an
// operation against a tree.  Values are part of the wire contract, so
// iota is not used.
type AccessLevel int32

// Recognized access levels, lowest to highest privilege.
const (
	AccessNone      AccessLevel = 0
	AccessUser      AccessLevel = 10
	AccessAdmin     AccessLevel = 20
	AccessService   AccessLevel = 30
	AccessDeveloper AccessLevel = 40
	AccessInternal  AccessLevel = 50
)

// AccessLevels maps user-friendly access level names to their numeric
// values.
var AccessLevels = map[string]AccessLevel{
	"none":      AccessNone,
	"user":      AccessUser,
	"admin":     AccessAdmin,
	"service":   AccessService,
	"developer": AccessDeveloper,
	"internal":  AccessInternal,
}

// AccessLevelNames maps numeric access levels back to their names.
var AccessLevelNames = map[AccessLevel]string{
	AccessNone:      "none",
	AccessUser:      "user",
	AccessAdmin:     "admin",
	AccessService:   "service",
	AccessDeveloper: "developer",
	AccessInternal:  "internal",
}

// Handle is a client endpoint bound to one tree within a core.  It is the
// type client code is expected to hold; cfgcore.Core and cfgiter.Iterator
// stay internal plumbing.
type Handle struct {
	core    *cfgcore.Core
	tree    string
	session cfgsession.ID
	user    string
}

// NewHandle binds a Handle to treeName within core, identifying itself to
// the core as session for notification and timeout bookkeeping, and as
// user for ACL checks on every subsequent read or write.  An empty user
// identifies a trusted internal caller and bypasses ACL enforcement
// entirely.
func NewHandle(core *cfgcore.Core, treeName string, session cfgsession.ID, user string) *Handle {
	return &Handle{core: core, tree: treeName, session: session, user: user}
}

// Close disconnects the handle's session, terminating any iterators and
// handlers it still owns.
func (h *Handle) Close() {
	h.core.Disconnect(h.session)
}

func (h *Handle) readAt(path string, do func(it *cfgiter.Iterator) error) error {
	var opErr error
	var captured *cfgiter.Iterator
	err := h.core.OpenRead(h.session, h.user, h.tree, func(it *cfgiter.Iterator) {
		captured = it
		if err := it.GoTo(path); err != nil {
			// A missing path is not an error: do is simply not run, so
			// the caller's default stands.
			if err != cfgiter.ErrNoSuchChild {
				opErr = err
			}
			return
		}
		opErr = do(it)
	})
	if err != nil {
		return err
	}
	h.core.ReleaseRead(captured)
	return opErr
}

func (h *Handle) writeAt(path string, do func(it *cfgiter.Iterator) error) error {
	var opErr error
	err := h.core.OpenWrite(h.session, h.user, h.tree, func(it *cfgiter.Iterator) {
		opErr = it.GoTo(path)
		if opErr == nil {
			opErr = do(it)
		}
	})
	if err != nil {
		return err
	}
	if opErr != nil {
		h.core.Cancel(h.tree)
		return opErr
	}
	return h.core.Commit(h.tree)
}

// GetString retrieves path's value coerced to a string, or def if path
// does not exist.
func (h *Handle) GetString(path string, def string) (string, error) {
	val := def
	err := h.readAt(path, func(it *cfgiter.Iterator) error {
		val = it.GetString(def)
		return nil
	})
	return val, err
}

// GetInt retrieves path's value coerced to int64, or def if path does not
// exist.
func (h *Handle) GetInt(path string, def int64) (int64, error) {
	val := def
	err := h.readAt(path, func(it *cfgiter.Iterator) error {
		val = it.GetInt(def)
		return nil
	})
	return val, err
}

// GetFloat retrieves path's value coerced to float64, or def if path does
// not exist.
func (h *Handle) GetFloat(path string, def float64) (float64, error) {
	val := def
	err := h.readAt(path, func(it *cfgiter.Iterator) error {
		val = it.GetFloat(def)
		return nil
	})
	return val, err
}

// GetBool retrieves path's value coerced to bool, or def if path does not
// exist.
func (h *Handle) GetBool(path string, def bool) (bool, error) {
	val := def
	err := h.readAt(path, func(it *cfgiter.Iterator) error {
		val = it.GetBool(def)
		return nil
	})
	return val, err
}

// GetBinary retrieves path's value base64-decoded, or def if path does
// not exist or is not valid base64.
func (h *Handle) GetBinary(path string, def []byte) ([]byte, error) {
	val := def
	err := h.readAt(path, func(it *cfgiter.Iterator) error {
		val = it.GetBinary(def)
		return nil
	})
	return val, err
}

// SetString stores val at path, creating path (and any missing parents)
// if needed.
func (h *Handle) SetString(path, val string) error {
	return h.writeAt(path, func(it *cfgiter.Iterator) error {
		return it.SetString(val)
	})
}

// SetInt stores val at path, creating path if needed.
func (h *Handle) SetInt(path string, val int64) error {
	return h.writeAt(path, func(it *cfgiter.Iterator) error {
		return it.SetInt(val)
	})
}

// SetFloat stores val at path, creating path if needed.
func (h *Handle) SetFloat(path string, val float64) error {
	return h.writeAt(path, func(it *cfgiter.Iterator) error {
		return it.SetFloat(val)
	})
}

// SetBool stores val at path, creating path if needed.
func (h *Handle) SetBool(path string, val bool) error {
	return h.writeAt(path, func(it *cfgiter.Iterator) error {
		return it.SetBool(val)
	})
}

// SetBinary base64-encodes val and stores it at path, creating path if
// needed.
func (h *Handle) SetBinary(path string, val []byte) error {
	return h.writeAt(path, func(it *cfgiter.Iterator) error {
		return it.SetBinary(val)
	})
}

// DeleteProp removes path and everything beneath it.  Deleting a path
// that does not exist is not an error.
func (h *Handle) DeleteProp(path string) error {
	return h.writeAt(path, func(it *cfgiter.Iterator) error {
		return it.Delete()
	})
}

// HandleChange registers handler to be called with the registered path
// (not the descendant that changed) whenever anything at or beneath path
// is touched by a commit.  The
// registration is torn down automatically when the handle is closed.
func (h *Handle) HandleChange(path string, handler func(path string)) {
	h.core.AddHandler(h.session, h.tree, path, func(_, changed string) {
		handler(changed)
	})
}

// WaitOn blocks until path exists or ctx-equivalent timeout d elapses,
// polling at the given interval.  It exists for callers bootstrapping
// against a tree another process is still populating.
func (h *Handle) WaitOn(path string, d, interval time.Duration) error {
	deadline := time.Now().Add(d)
	for {
		var found bool
		err := h.readAt(path, func(it *cfgiter.Iterator) error {
			found = true
			return nil
		})
		if found {
			return nil
		}
		if err != nil && err != cfgiter.ErrNoSuchChild {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %q did not appear within %s", cfgtree.ErrNotFound, path, d)
		}
		time.Sleep(interval)
	}
}
