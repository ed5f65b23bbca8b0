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
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	touched  []string
	subtrees []string
}

func (r *recordingNotifier) Touch(path string)        { r.touched = append(r.touched, path) }
func (r *recordingNotifier) TouchSubtree(path string) { r.subtrees = append(r.subtrees, path) }

func TestShadowWriteThenMerge(t *testing.T) {
	assert := require.New(t)
	orig := NewTree("test")

	shadow := NewShadow(orig)
	port, err := shadow.Root().InsertChild("port")
	assert.NoError(err)
	port.SetInt(8080)

	note := &recordingNotifier{}
	assert.NoError(shadow.Merge(note))

	real := orig.Root().ActiveChild("port")
	assert.NotNil(real)
	assert.Equal(int64(8080), real.GetInt(-1))
	assert.Contains(note.touched, "/port")
}

func TestShadowCancelDiscardsChanges(t *testing.T) {
	assert := require.New(t)
	orig := NewTree("test")
	orig.Root().InsertChild("existing")

	shadow := NewShadow(orig)
	_, err := shadow.Root().InsertChild("scratch")
	assert.NoError(err)
	// Cancel == simply discard the shadow tree without merging.

	assert.Nil(orig.Root().Child("scratch"))
	assert.NotNil(orig.Root().Child("existing"))
}

func TestShadowDeleteTombstonesThenFreesOnMerge(t *testing.T) {
	assert := require.New(t)
	orig := NewTree("test")
	orig.Root().InsertChild("gone")

	shadow := NewShadow(orig)
	target := shadow.Root().Child("gone")
	assert.NotNil(target, "lazy mirror should have populated 'gone'")
	target.Delete()
	assert.True(target.IsDeleted())

	note := &recordingNotifier{}
	assert.NoError(shadow.Merge(note))

	assert.Nil(orig.Root().Child("gone"))
	assert.Contains(note.subtrees, "/gone")
}

func TestShadowLazyMirrorDoesNotCopyValue(t *testing.T) {
	assert := require.New(t)
	orig := NewTree("test")
	n, _ := orig.Root().InsertChild("x")
	n.SetString("original-value")

	shadow := NewShadow(orig)
	sx := shadow.Root().Child("x")
	assert.NotNil(sx)
	assert.Equal(String, sx.Type(), "type is inherited")
	assert.Equal("", sx.GetString(""), "value is not copied into a fresh shadow mirror")
}

func TestMergeRetypeToScalarOrphansOldChildren(t *testing.T) {
	assert := require.New(t)
	orig := NewTree("test")
	cfg, _ := orig.Root().InsertChild("cfg")
	a, _ := cfg.InsertChild("a")
	a.SetInt(1)
	_, _ = cfg.InsertChild("b")

	shadow := NewShadow(orig)
	scfg := shadow.Root().Child("cfg")
	assert.NotNil(scfg, "lazy mirror should have populated 'cfg' at the root")
	assert.NoError(scfg.SetString("scalar"), "retype without ever descending into cfg's own children")

	note := &recordingNotifier{}
	assert.NoError(shadow.Merge(note))

	merged := orig.Root().Child("cfg")
	assert.NotNil(merged)
	assert.Equal(String, merged.Type())
	assert.Nil(merged.Child("a"), "a stem retyped to scalar must not still reach its old children")
	assert.Nil(merged.FirstChild(), "no children may remain reachable once the node is no longer a stem")
}

func TestMergeRenameAndRetype(t *testing.T) {
	assert := require.New(t)
	orig := NewTree("test")
	n, _ := orig.Root().InsertChild("old")
	n.SetInt(1)

	shadow := NewShadow(orig)
	sn := shadow.Root().Child("old")
	assert.NoError(sn.Rename("new"))
	sn.SetString("hi")

	note := &recordingNotifier{}
	assert.NoError(shadow.Merge(note))

	assert.Nil(orig.Root().Child("old"))
	renamed := orig.Root().Child("new")
	assert.NotNil(renamed)
	assert.Equal(String, renamed.Type())
	assert.Equal("hi", renamed.GetString(""))
}
