/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package cfgsched is the request scheduler: a single-threaded,
// cooperative event loop that admits or queues every operation against a
// tree (creating a read or write transaction, committing or cancelling
// one, or a one-shot "quick" read/write) and drains the per-tree FIFO
// queue after every event that could have unblocked something.  There are
// no worker goroutines; everything here runs on the loop's own goroutine.
package cfgsched

import (
	"go.uber.org/zap"

	"bg/common/cfgreg"
)

// Kind enumerates the operations the scheduler admits.
type Kind int

const (
	CreateReadTxn Kind = iota
	CreateWriteTxn
	CommitWriteTxn
	CancelTxn
	QuickRead
	QuickWrite
)

func (k Kind) String() string {
	switch k {
	case CreateReadTxn:
		return "create-read-txn"
	case CreateWriteTxn:
		return "create-write-txn"
	case CommitWriteTxn:
		return "commit-write-txn"
	case CancelTxn:
		return "cancel-txn"
	case QuickRead:
		return "quick-read"
	case QuickWrite:
		return "quick-write"
	default:
		return "unknown"
	}
}

// Request is one queued or in-flight scheduler operation.  Run is invoked
// once the operation is admitted; its result is delivered through
// whatever channel or callback the caller embedded when constructing the
// Request (the scheduler itself is transport-agnostic).
type Request struct {
	Kind     Kind
	TreeName string
	Session  string
	Run      func()

	closed bool
}

// SessionClosed satisfies cfgreg.Request, letting an Entry skip requests
// from sessions that disconnected while queued.
func (r *Request) SessionClosed() bool { return r.closed }

// Close marks a queued request's owning session as gone; the scheduler
// skips it the next time the queue drains instead of running it.
func (r *Request) Close() { r.closed = true }

// Scheduler admits operations against cfgreg Entries under simple
// single-writer/multi-reader rules and keeps every tree's FIFO queue
// draining.
type Scheduler struct {
	reg *cfgreg.Registry
	log *zap.SugaredLogger
	met *Metrics
}

// New creates a scheduler over reg.
func New(reg *cfgreg.Registry, log *zap.SugaredLogger, met *Metrics) *Scheduler {
	return &Scheduler{reg: reg, log: log, met: met}
}

// Submit admits req immediately if the tree's state allows it, or
// enqueues it in FIFO order against the tree's Entry otherwise.
func (s *Scheduler) Submit(req *Request) error {
	e, err := s.reg.GetTree(req.TreeName)
	if err != nil {
		return err
	}
	if s.admit(e, req.Kind) {
		s.run(e, req)
		return nil
	}
	e.Queue = append(e.Queue, req)
	if s.met != nil {
		s.met.QueueDepth.WithLabelValues(req.TreeName).Set(float64(len(e.Queue)))
	}
	return nil
}

// admit reports whether kind may run immediately given e's current
// reader/writer occupancy.  A read never waits on an open write
// transaction: a write iterator only ever touches its own shadow, so a
// reader against the live tree is unaffected by one being in flight.
// Creating a write transaction only needs the single writer slot free.
// Cancel always runs immediately: discarding a shadow never touches the
// live tree either, so outstanding readers don't care about that one.
// Commit and a one-shot quick write are the operations that actually
// mutate the live tree in place, so each must park behind any reader
// still holding a pointer into it and wait for Readers to reach zero.
func (s *Scheduler) admit(e *cfgreg.Entry, kind Kind) bool {
	switch kind {
	case CreateReadTxn, QuickRead:
		return true
	case CreateWriteTxn:
		return !e.Writer
	case QuickWrite:
		return !e.Writer && e.Readers == 0
	case CommitWriteTxn:
		return e.Readers == 0
	case CancelTxn:
		return true
	default:
		return false
	}
}

func (s *Scheduler) run(e *cfgreg.Entry, req *Request) {
	switch req.Kind {
	case CreateReadTxn, QuickRead:
		e.Readers++
	case CreateWriteTxn, QuickWrite:
		e.Writer = true
	}
	if s.met != nil {
		s.met.OpsTotal.WithLabelValues(req.TreeName, req.Kind.String()).Inc()
	}
	req.Run()
	switch req.Kind {
	case QuickRead:
		e.Readers--
	case QuickWrite, CommitWriteTxn, CancelTxn:
		e.Writer = false
	}
	s.Drain(req.TreeName)
}

// ReleaseRead tells the scheduler a previously admitted read transaction
// (CreateReadTxn) has closed, then drains the tree's queue since that may
// now admit a waiting writer.
func (s *Scheduler) ReleaseRead(treeName string) {
	s.reg.ReleaseReader(treeName)
	s.Drain(treeName)
}

// Drain re-evaluates treeName's queue in FIFO order, running any
// request admission now allows.  It is called after every event that
// could have unblocked something: a commit, a cancel, or a quick op's
// completion.
func (s *Scheduler) Drain(treeName string) {
	e, err := s.reg.GetTree(treeName)
	if err != nil {
		return
	}
	for len(e.Queue) > 0 {
		next := e.Queue[0]
		if next.SessionClosed() {
			e.Queue = e.Queue[1:]
			continue
		}
		if !s.admit(e, next.Kind) {
			break
		}
		e.Queue = e.Queue[1:]
		s.run(e, next)
	}
	if s.met != nil {
		s.met.QueueDepth.WithLabelValues(treeName).Set(float64(len(e.Queue)))
	}
}
