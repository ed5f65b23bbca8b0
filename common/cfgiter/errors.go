/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

package cfgiter

import "errors"

var (
	// ErrReadOnly is returned by any write operation on a read-only
	// iterator.
	ErrReadOnly = errors.New("iterator is read-only")
	// ErrClosed is returned by any operation on an iterator that has
	// already been closed or released.
	ErrClosed = errors.New("iterator is closed")
	// ErrTerminated is returned by any operation on an iterator whose
	// underlying session or tree went away out from under it.
	ErrTerminated = errors.New("iterator was terminated")
	// ErrNoSuchChild is returned by navigation that cannot find (and, for
	// a read-only iterator, cannot create) the requested child.
	ErrNoSuchChild = errors.New("no such child")
	// ErrAtRoot is returned by GoToParent at the tree root.
	ErrAtRoot = errors.New("already at the root")
)
