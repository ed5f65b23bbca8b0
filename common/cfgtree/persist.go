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
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
)

// revPath returns the on-disk path for one of a tree's three rotating
// revision files.
func revPath(dir, name string, r Revision) string {
	return filepath.Join(dir, name+"."+r.String())
}

// Save persists t to dir, advancing it to the next revision in the
// paper->rock->scissors cycle.  The new revision is written and fsynced
// under a temporary name, then atomically renamed into place before the
// previous revision's file is removed, so a crash at any point leaves at
// most the old revision and the new one on disk -- never a half-written
// file under a live name.
func Save(dir string, t *Tree) error {
	next := t.revision.Next()
	path := revPath(dir, t.name, next)
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", ErrIO, tmp, err)
	}
	if _, err := f.Write(Serialize(t)); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: writing %s: %v", ErrIO, tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: syncing %s: %v", ErrIO, tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: closing %s: %v", ErrIO, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: renaming %s: %v", ErrIO, tmp, err)
	}

	if old := t.revision; old != RevUnknown {
		os.Remove(revPath(dir, t.name, old))
	}
	t.revision = next
	return nil
}

// Load reads name's tree back from dir.  A tree with no revision files yet
// is not an error: Load returns a fresh empty tree, matching first-ever
// access to a tree name.
//
// Ordinarily exactly one revision file exists.  If a previous Save crashed
// after renaming the new revision into place but before removing the
// stale one, two will exist; Load picks the older of the two -- the one
// whose Next() is the other, since the rotation only ever advances one
// step at a time.
func Load(dir, name string) (*Tree, error) {
	var present []Revision
	for _, r := range []Revision{RevPaper, RevRock, RevScissors} {
		fi, err := os.Stat(revPath(dir, name, r))
		if err == nil && fi.Size() > 0 {
			present = append(present, r)
		}
	}

	switch len(present) {
	case 0:
		return NewTree(name), nil
	case 1:
		return loadRevision(dir, name, present[0])
	default:
		chosen := present[0]
		for _, r := range present {
			for _, o := range present {
				if o != r && r.Next() == o {
					chosen = r
				}
			}
		}
		return loadRevision(dir, name, chosen)
	}
}

func loadRevision(dir, name string, r Revision) (*Tree, error) {
	data, err := ioutil.ReadFile(revPath(dir, name, r))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrIO, revPath(dir, name, r), err)
	}
	t, err := Parse(name, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrFormat, name, r, err)
	}
	t.revision = r
	return t, nil
}
