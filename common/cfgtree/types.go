/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package cfgtree implements the in-memory node/tree store: the shadow-tree
// write-transaction model, the on-disk grammar, and the triple-revision
// persister.  It is the lowest layer of the configuration core; it knows
// nothing about iterators, schedulers, or sessions.
package cfgtree

// NodeType enumerates the types a node's payload may take.
type NodeType int

// The node types.  Deleted is a tombstone state only meaningful inside a
// shadow tree; it is never the type of a node in a non-shadow tree.
const (
	Empty NodeType = iota
	String
	Int
	Float
	Bool
	Stem
	Deleted
)

func (t NodeType) String() string {
	switch t {
	case Empty:
		return "empty"
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Stem:
		return "stem"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Build-time constants exposed across the external API (spec.md §6).
const (
	// MaxNameLength bounds a single node's name.
	MaxNameLength = 63
	// MaxPathLength bounds the absolute path an iterator reaches through
	// GoToChild or GoTo; the first-child and next-sibling moves do not
	// check it.
	MaxPathLength = 511
	// MaxStringLength bounds a String-typed value.
	MaxStringLength = 4096
	// MaxBinaryLength bounds the decoded length of a Binary value.
	MaxBinaryLength = 4096
	// MaxTreeNameLength bounds a tree's name.
	MaxTreeNameLength = 57
)

// SystemTreeName is the well-known tree that carries daemon configuration
// (spec.md §6): timeouts, per-user/per-app ACL grants.
const SystemTreeName = "system"
