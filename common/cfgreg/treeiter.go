/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

package cfgreg

import (
	"github.com/satori/uuid"
)

// TreeIterator enumerates every tree name the registry knows about --
// resident or merely present on disk -- as of the moment it was created.
// A tree created or deleted after that moment is invisible to an
// already-open TreeIterator, so a long-lived client walking the list
// never sees it shift under foot.
type TreeIterator struct {
	ID    uuid.UUID
	names []string
	pos   int
}

// NewTreeIterator snapshots the registry's current tree names.
func (r *Registry) NewTreeIterator() *TreeIterator {
	return &TreeIterator{
		ID:    uuid.NewV4(),
		names: r.Names(),
		pos:   0,
	}
}

// Current returns the name at the cursor, or "" if the iterator has run
// past the end of its snapshot.
func (it *TreeIterator) Current() (string, bool) {
	if it.pos >= len(it.names) {
		return "", false
	}
	return it.names[it.pos], true
}

// Next advances the cursor, returning false once it has passed the last
// name in the snapshot.
func (it *TreeIterator) Next() bool {
	if it.pos >= len(it.names) {
		return false
	}
	it.pos++
	return it.pos < len(it.names)
}

// Remaining reports how many names (including the current one) are left
// to visit.
func (it *TreeIterator) Remaining() int {
	if it.pos >= len(it.names) {
		return 0
	}
	return len(it.names) - it.pos
}
