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

import "fmt"

// MergeNotifier lets the change-notification engine (common/cfgnotify)
// learn which paths a merge may have changed, without cfgtree needing to
// know anything about registrations or handlers.
type MergeNotifier interface {
	// Touch marks path itself as possibly changed.
	Touch(path string)
	// TouchSubtree marks path and every descendant of path as possibly
	// changed -- used when a subtree is about to be overwritten or
	// removed wholesale.
	TouchSubtree(path string)
}

// NewShadow creates a transient shadow of t, for the duration of one write
// transaction.  Shadow nodes mirror originals lazily as they are
// traversed; see Node.ensureMirrored.
func NewShadow(t *Tree) *Tree {
	s := &Tree{
		name:     t.name,
		isShadow: true,
		shadowOf: t,
		arena:    make(map[uint64]*Node),
	}
	s.root = newNode(s, nil, "")
	s.root.nodeType = t.root.nodeType
	s.root.originalID = t.root.id
	s.root.mirrored = false
	return s
}

// ensureMirrored lazily populates one shadow child per original child the
// first time a shadow stem is traversed.  Values are not copied, only
// types, so "no uncommitted change" cannot leak into a fresh shadow read.
func (n *Node) ensureMirrored() {
	if !n.owner.isShadow || n.mirrored {
		return
	}
	n.mirrored = true
	orig := n.resolveOriginal()
	if orig == nil {
		return
	}
	for _, oc := range orig.children {
		if n.Child(oc.name) != nil {
			continue
		}
		sc := newNode(n.owner, n, oc.name)
		sc.originalID = oc.id
		sc.nodeType = oc.nodeType
		n.children = append(n.children, sc)
		n.owner.register(sc)
	}
}

// resolveOriginal finds the node in shadowOf that this shadow node
// mirrors, rediscovering the link by name under the shadowed parent if the
// originalID has gone stale (spec.md §4.1 merge step 1).
func (n *Node) resolveOriginal() *Node {
	if !n.owner.isShadow {
		return nil
	}
	if n.originalID != 0 {
		if o := n.owner.shadowOf.byID(n.originalID); o != nil {
			return o
		}
	}
	if n.parent == nil {
		return n.owner.shadowOf.root
	}
	if parentOrig := n.parent.resolveOriginal(); parentOrig != nil {
		return parentOrig.Child(n.name)
	}
	return nil
}

func removeChild(children []*Node, target *Node) []*Node {
	for i, c := range children {
		if c == target {
			return append(children[:i:i], children[i+1:]...)
		}
	}
	return children
}

// Merge walks a shadow tree top-down and applies its changes to the
// original tree it shadows, driving change-notification along the way.
// It must only be called on a shadow tree.
func (s *Tree) Merge(notifier MergeNotifier) error {
	if !s.isShadow {
		return fmt.Errorf("Merge called on a non-shadow tree")
	}
	mergeNode(s.root, nil, "", notifier)
	return nil
}

// mergeNode merges shadow node s into the original tree, where parentOrig
// is the already-merged original parent (nil only for the root).  path is
// s's absolute path, used purely for notification.
func mergeNode(s *Node, parentOrig *Node, path string, notifier MergeNotifier) {
	var realOrig *Node
	if s.originalID != 0 {
		realOrig = s.owner.shadowOf.byID(s.originalID)
	}
	if realOrig == nil {
		if parentOrig != nil {
			realOrig = parentOrig.Child(s.name)
		} else {
			realOrig = s.owner.shadowOf.root
		}
	}

	if s.deleted {
		if realOrig != nil {
			notifier.TouchSubtree(path)
			if realOrig.parent == nil {
				realOrig.SetEmpty()
				realOrig.modified = false
			} else {
				realOrig.free()
			}
		}
		return
	}

	if realOrig == nil {
		nr, err := parentOrig.InsertChild(s.name)
		if err != nil {
			return
		}
		realOrig = nr
	}
	realOrig.deleted = false

	if s.mirrored && (s.nodeType == Stem || realOrig.nodeType == Stem) {
		shadowNames := make(map[string]bool, len(s.children))
		for _, sc := range s.children {
			shadowNames[sc.name] = true
		}
		for _, oc := range append([]*Node{}, realOrig.children...) {
			if !shadowNames[oc.name] {
				notifier.TouchSubtree(path + "/" + oc.name)
				oc.free()
			}
		}
	}

	if s.name != "" {
		realOrig.name = s.name
		realOrig.nameHash = s.nameHash
	}
	realOrig.modified = false

	if s.nodeType == Stem {
		realOrig.nodeType = Stem
		realOrig.value = ""
		for _, sc := range s.children {
			mergeNode(sc, realOrig, path+"/"+sc.name, notifier)
		}
	} else if !s.modified {
		// An untouched scalar mirror carries its original's type but never
		// its value (see ensureMirrored), so the original keeps its value.
	} else if s.EffectiveType() == Empty {
		realOrig.SetEmpty()
		realOrig.modified = false
	} else {
		// realOrig may still own children from before this merge if s
		// was never mirrored deep enough to walk them (the early
		// shadowNames cleanup above only runs when s.mirrored is set).
		// Type=Stem must imply the node owns a child list and nothing
		// else does, so any leftover children are orphaned here.
		if len(realOrig.children) > 0 {
			for _, oc := range append([]*Node{}, realOrig.children...) {
				notifier.TouchSubtree(path + "/" + oc.name)
				oc.free()
			}
			realOrig.modified = false
		}
		realOrig.nodeType = s.nodeType
		realOrig.value = s.value
	}

	if s.modified {
		notifier.Touch(path)
	}
}
