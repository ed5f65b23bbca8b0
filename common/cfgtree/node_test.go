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

func TestCoercion(t *testing.T) {
	assert := require.New(t)
	tree := NewTree("test")
	n, err := tree.Root().InsertChild("port")
	assert.NoError(err)

	n.SetInt(443)
	assert.Equal(int64(443), n.GetInt(-1))
	assert.Equal(float64(443), n.GetFloat(-1))
	assert.Equal("443", n.GetString("nope"))
	assert.Equal(false, n.GetBool(false))

	n.SetFloat(2.5)
	assert.Equal(int64(3), n.GetInt(-1))
	n.SetFloat(-2.5)
	assert.Equal(int64(-3), n.GetInt(-1))
	n.SetFloat(2.4)
	assert.Equal(int64(2), n.GetInt(-1))

	n.SetBool(true)
	assert.Equal(int64(-1), n.GetInt(-1), "bool does not coerce to int")
	assert.Equal("t", n.GetString("nope"))

	n.SetString("hello")
	assert.Equal(int64(-1), n.GetInt(-1))
}

func TestEffectiveType(t *testing.T) {
	assert := require.New(t)
	tree := NewTree("test")
	n, err := tree.Root().InsertChild("x")
	assert.NoError(err)
	assert.Equal(Empty, n.EffectiveType())

	n.SetString("")
	assert.Equal(Empty, n.EffectiveType())

	n.SetString("a")
	assert.Equal(String, n.EffectiveType())

	stem, err := tree.Root().InsertChild("s")
	assert.NoError(err)
	assert.Equal(Empty, stem.EffectiveType(), "childless stem is Empty")
	_, err = stem.InsertChild("c")
	assert.NoError(err)
	assert.Equal(Stem, stem.EffectiveType())
}

func TestRename(t *testing.T) {
	assert := require.New(t)
	tree := NewTree("test")
	a, _ := tree.Root().InsertChild("a")
	_, _ = tree.Root().InsertChild("b")

	assert.NoError(a.Rename("c"))
	assert.Equal("c", a.Name())

	assert.Error(a.Rename("b"), "renaming onto an existing sibling is an error")
	assert.Error(tree.Root().Rename("x"), "the root cannot be renamed")
}

func TestDeleteOnRealTree(t *testing.T) {
	assert := require.New(t)
	tree := NewTree("test")
	a, _ := tree.Root().InsertChild("a")
	a.Delete()
	assert.Nil(tree.Root().Child("a"), "delete on a real tree frees immediately")
}

func TestValidateName(t *testing.T) {
	assert := require.New(t)
	assert.NoError(ValidateName("ok-name"))
	assert.Error(ValidateName(""))
	assert.Error(ValidateName("."))
	assert.Error(ValidateName(".."))
	assert.Error(ValidateName("a/b"))
	assert.Error(ValidateName("a:b"))
}
