/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

package cfgsched

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bg/common/cfgreg"
)

func newTestScheduler(t *testing.T) *Scheduler {
	log, err := zap.NewDevelopment()
	require.NoError(t, err)
	reg := cfgreg.New(t.TempDir(), log.Sugar())
	met := NewMetrics(prometheus.NewRegistry())
	return New(reg, log.Sugar(), met)
}

func TestReadsDoNotWaitOnOpenWriter(t *testing.T) {
	assert := require.New(t)
	s := newTestScheduler(t)

	var writerRan, readerRan bool
	assert.NoError(s.Submit(&Request{
		Kind: CreateWriteTxn, TreeName: "t", Run: func() { writerRan = true },
	}))
	assert.True(writerRan)

	assert.NoError(s.Submit(&Request{
		Kind: CreateReadTxn, TreeName: "t", Run: func() { readerRan = true },
	}))
	assert.True(readerRan, "a read must run immediately: it only ever sees the live tree, which an open write txn hasn't touched yet")

	e, _ := s.reg.GetTree("t")
	assert.Empty(e.Queue)
}

func TestCommitParksBehindReaders(t *testing.T) {
	assert := require.New(t)
	s := newTestScheduler(t)

	var readerRan, committed bool
	assert.NoError(s.Submit(&Request{
		Kind: CreateReadTxn, TreeName: "t", Run: func() { readerRan = true },
	}))
	assert.True(readerRan)

	assert.NoError(s.Submit(&Request{Kind: CreateWriteTxn, TreeName: "t", Run: func() {}}))

	assert.NoError(s.Submit(&Request{
		Kind: CommitWriteTxn, TreeName: "t", Run: func() { committed = true },
	}))
	e, _ := s.reg.GetTree("t")
	assert.Len(e.Queue, 1, "commit must park behind the still-open reader")
	assert.False(committed)

	s.ReleaseRead("t")
	assert.True(committed, "releasing the last reader must drain the parked commit")
}

func TestQueueIsFIFO(t *testing.T) {
	assert := require.New(t)
	s := newTestScheduler(t)

	assert.NoError(s.Submit(&Request{Kind: CreateWriteTxn, TreeName: "t", Run: func() {}}))

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		assert.NoError(s.Submit(&Request{
			Kind: CreateWriteTxn, TreeName: "t",
			Run: func() { order = append(order, i) },
		}))
	}
	for i := 0; i < 3; i++ {
		assert.NoError(s.Submit(&Request{Kind: CancelTxn, TreeName: "t", Run: func() {}}))
	}
	assert.Equal([]int{0, 1, 2}, order, "queued writers drain in FIFO order as each prior writer releases")
}

func TestClosedSessionSkippedOnDrain(t *testing.T) {
	assert := require.New(t)
	s := newTestScheduler(t)

	assert.NoError(s.Submit(&Request{Kind: CreateWriteTxn, TreeName: "t", Run: func() {}}))

	skipped := &Request{Kind: CreateWriteTxn, TreeName: "t", Run: func() { t.Fatal("must not run") }}
	skipped.Close()
	assert.NoError(s.Submit(skipped))

	ran := false
	assert.NoError(s.Submit(&Request{
		Kind: CreateWriteTxn, TreeName: "t", Run: func() { ran = true },
	}))

	assert.NoError(s.Submit(&Request{Kind: CancelTxn, TreeName: "t", Run: func() {}}))
	assert.True(ran)
}
