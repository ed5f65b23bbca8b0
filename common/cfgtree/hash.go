/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

package cfgtree

import (
	"bytes"
	"crypto/md5"
)

// Path returns the node's full slash-separated path from the tree root.
// The root node's path is "/".
func (n *Node) Path() string {
	if n.parent == nil {
		return "/"
	}
	segs := make([]string, 0, 8)
	for x := n; x.parent != nil; x = x.parent {
		segs = append(segs, x.name)
	}
	var buf bytes.Buffer
	for i := len(segs) - 1; i >= 0; i-- {
		buf.WriteByte('/')
		buf.WriteString(segs[i])
	}
	return buf.String()
}

// Hash returns the most recently computed content hash for this node, or
// nil if Rehash has never been called on it or an ancestor.
func (n *Node) Hash() []byte { return n.hash }

// Rehash recomputes and stores this node's content hash, recursing into
// children first.  A scalar's hash covers its path and value; a stem's
// hash is the XOR of its active children's hashes, so reordering siblings
// does not change a stem's hash but changing any descendant's value does.
// Tombstoned nodes hash as empty.
func (n *Node) Rehash() []byte {
	if n.deleted {
		n.hash = make([]byte, md5.Size)
		return n.hash
	}
	if n.nodeType != Stem {
		sum := md5.Sum([]byte(n.Path() + ":" + n.value))
		n.hash = sum[:]
		return n.hash
	}
	hash := make([]byte, md5.Size)
	for _, c := range n.children {
		chash := c.Rehash()
		for i := range hash {
			hash[i] ^= chash[i]
		}
	}
	n.hash = hash
	return n.hash
}

// Validate reports whether this node's stored hash matches a freshly
// recomputed one.  It does not mutate the stored hash.
func (n *Node) Validate() bool {
	return bytes.Equal(n.hash, n.recompute())
}

// recompute is Rehash without the side effect of storing the result, so
// Validate can check staleness without disturbing it.
func (n *Node) recompute() []byte {
	if n.deleted {
		return make([]byte, md5.Size)
	}
	if n.nodeType != Stem {
		sum := md5.Sum([]byte(n.Path() + ":" + n.value))
		return sum[:]
	}
	hash := make([]byte, md5.Size)
	for _, c := range n.children {
		chash := c.recompute()
		for i := range hash {
			hash[i] ^= chash[i]
		}
	}
	return hash
}
