/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

package cfgcore

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bg/common/cfgiter"
	"bg/common/cfgsched"
	"bg/common/cfgsession"
	"bg/common/cfgtree"
)

func newTestCore(t *testing.T) *Core {
	log, err := zap.NewDevelopment()
	require.NoError(t, err)
	met := cfgsched.NewMetrics(prometheus.NewRegistry())
	return New(t.TempDir(), log.Sugar(), met)
}

func TestWriteCommitPersistsAndFires(t *testing.T) {
	assert := require.New(t)
	c := newTestCore(t)

	fired := false
	c.notify.AddHandler("test", "/port", "sess", func(tree, path string) { fired = true })

	assert.NoError(c.OpenWrite("sess", "", "test", func(it *cfgiter.Iterator) {
		assert.NoError(it.GoToChild("port"))
		assert.NoError(it.SetInt(443))
	}))
	assert.NoError(c.Commit("test"))
	assert.True(fired)

	var seen int64
	assert.NoError(c.OpenRead("sess", "", "test", func(it *cfgiter.Iterator) {
		assert.NoError(it.GoToChild("port"))
		seen = it.GetInt(-1)
	}))
	assert.Equal(int64(443), seen)
}

func TestCancelDiscardsWrite(t *testing.T) {
	assert := require.New(t)
	c := newTestCore(t)

	assert.NoError(c.OpenWrite("sess", "", "test", func(it *cfgiter.Iterator) {
		assert.NoError(it.GoToChild("scratch"))
		assert.NoError(it.SetString("x"))
	}))
	c.Cancel("test")

	var existed bool
	assert.NoError(c.OpenRead("sess", "", "test", func(it *cfgiter.Iterator) {
		existed = it.GoToChild("scratch") == nil
	}))
	assert.False(existed, "a cancelled write must leave no trace")
}

func TestACLAllAccessGrantsEveryTree(t *testing.T) {
	assert := require.New(t)
	c := newTestCore(t)

	assert.NoError(c.OpenWrite("sess", "", cfgtree.SystemTreeName, func(it *cfgiter.Iterator) {
		assert.NoError(it.GoTo("/apps/svc0/configLimits/allAccess"))
		assert.NoError(it.SetString("rw"))
	}))
	assert.NoError(c.Commit(cfgtree.SystemTreeName))

	assert.True(c.CheckACL("svc0", "anything", "ro"))
	assert.False(c.CheckACL("unknown-user", "anything", "ro"))
}

func TestOpenWriteDeniesReadOnlyGrant(t *testing.T) {
	assert := require.New(t)
	c := newTestCore(t)

	assert.NoError(c.OpenWrite("sess", "", cfgtree.SystemTreeName, func(it *cfgiter.Iterator) {
		assert.NoError(it.GoTo("/apps/svc0/configLimits/acl/test"))
		assert.NoError(it.SetString("ro"))
	}))
	assert.NoError(c.Commit(cfgtree.SystemTreeName))

	assert.True(c.CheckACL("svc0", "test", "ro"))

	err := c.OpenRead("sess", "svc0", "test", func(it *cfgiter.Iterator) {})
	assert.NoError(err, "a read-only grant still permits opening a read transaction")

	err = c.OpenWrite("sess", "svc0", "test", func(it *cfgiter.Iterator) {})
	assert.Error(err, "a user with only read on a tree must be refused a write iterator")
}

func TestOpenReadImplicitOnOwnNamedTree(t *testing.T) {
	assert := require.New(t)
	c := newTestCore(t)

	err := c.OpenRead("sess", "alice", "alice", func(it *cfgiter.Iterator) {})
	assert.NoError(err, "a user always has read access to the tree named after them")

	err = c.OpenWrite("sess", "alice", "alice", func(it *cfgiter.Iterator) {})
	assert.Error(err, "the own-named-tree exemption only grants read, not write")
}

func TestDisconnectTerminatesIterators(t *testing.T) {
	assert := require.New(t)
	c := newTestCore(t)

	var captured *cfgiter.Iterator
	assert.NoError(c.OpenRead("sess", "", "test", func(it *cfgiter.Iterator) {
		captured = it
	}))
	assert.False(captured.Terminated())

	c.Disconnect(cfgsession.ID("sess"))
	assert.True(captured.Terminated())
}

func TestDisconnectReleasesWriterSlot(t *testing.T) {
	assert := require.New(t)
	c := newTestCore(t)

	assert.NoError(c.OpenWrite("sess", "", "test", func(it *cfgiter.Iterator) {
		assert.NoError(it.GoToChild("scratch"))
		assert.NoError(it.SetString("x"))
	}))
	c.Disconnect(cfgsession.ID("sess"))

	// The writer slot must be free again, or a second write transaction
	// on the same tree would queue forever.
	wrote := false
	assert.NoError(c.OpenWrite("sess2", "", "test", func(it *cfgiter.Iterator) {
		wrote = true
	}))
	assert.True(wrote)
	assert.NoError(c.Commit("test"))
}

func TestDisconnectReleasesReaderSlot(t *testing.T) {
	assert := require.New(t)
	c := newTestCore(t)

	assert.NoError(c.OpenRead("sess", "", "test", func(it *cfgiter.Iterator) {}))
	c.Disconnect(cfgsession.ID("sess"))

	// The reader slot must be free again, or a writer would queue
	// forever behind a reader that already disconnected.
	wrote := false
	assert.NoError(c.OpenWrite("sess2", "", "test", func(it *cfgiter.Iterator) {
		wrote = true
	}))
	assert.True(wrote)
	assert.NoError(c.Commit("test"))
}

// TestInterleavedReadersAndCommit walks through the interleaving a commit
// must survive: a reader active when a write commits must keep seeing the
// pre-commit value until it releases, a concurrently-opened second reader
// must see the same stale value rather than jumping ahead of the parked
// commit, and only a reader opened after the commit finally runs observes
// the new one.
func TestInterleavedReadersAndCommit(t *testing.T) {
	assert := require.New(t)
	c := newTestCore(t)

	assert.NoError(c.OpenWrite("setup", "", "test", func(it *cfgiter.Iterator) {
		assert.NoError(it.GoToChild("port"))
		assert.NoError(it.SetInt(80))
	}))
	assert.NoError(c.Commit("test"))

	var r1 *cfgiter.Iterator
	assert.NoError(c.OpenRead("r1", "", "test", func(it *cfgiter.Iterator) {
		r1 = it
		assert.NoError(it.GoToChild("port"))
		assert.Equal(int64(80), it.GetInt(-1))
	}))

	assert.NoError(c.OpenWrite("w", "", "test", func(it *cfgiter.Iterator) {
		assert.NoError(it.GoToChild("port"))
		assert.NoError(it.SetInt(443))
	}))
	assert.NoError(c.Commit("test"), "commit must be accepted even though it parks behind r1")

	var r2 *cfgiter.Iterator
	var seenByR2 int64
	assert.NoError(c.OpenRead("r2", "", "test", func(it *cfgiter.Iterator) {
		r2 = it
		assert.NoError(it.GoToChild("port"))
		seenByR2 = it.GetInt(-1)
	}))
	assert.Equal(int64(80), seenByR2, "a reader opened while the commit is parked must still see the pre-commit value")
	c.ReleaseRead(r2)

	c.ReleaseRead(r1)

	var seenByR3 int64
	assert.NoError(c.OpenRead("r3", "", "test", func(it *cfgiter.Iterator) {
		assert.NoError(it.GoToChild("port"))
		seenByR3 = it.GetInt(-1)
	}))
	assert.Equal(int64(443), seenByR3, "releasing the last reader must let the parked commit complete")
}
