/*
 * COPYRIGHT 2021 Brightgate Inc.  All rights reserved.
 *
 * This copyright notice is Copyright Management Information under 17 USC 1202
 * and is included to protect this work and deter copyright infringement.
 * Removal or alteration of this Copyright Management Information without the
 * express written permission of Brightgate Inc is prohibited, and any
 * such unauthorized removal or alteration will be a violation of federal law.
 */

// Package cfgsession tracks which iterators, handler registrations, and
// queued scheduler requests belong to each connected client, so that a
// disconnect can unwind all of it in one pass instead of leaking state
// for a client that will never come back.
package cfgsession

import (
	"go.uber.org/zap"

	"github.com/satori/uuid"

	"bg/common/cfgiter"
	"bg/common/cfgnotify"
	"bg/common/cfgsched"
)

// ID identifies one connected client.  Its zero value never names a real
// session.
type ID string

// TreeReleaser lets Disconnect give back the tree-level reader or writer
// slot an iterator held, not just flag the iterator itself as terminated.
// cfgcore.Core satisfies this; it is expressed as an interface here so
// cfgsession need not import cfgcore.
type TreeReleaser interface {
	ReleaseIterator(it *cfgiter.Iterator)
}

type queuedCloser interface {
	Close()
}

// Manager tracks live state per session.
type Manager struct {
	log      *zap.SugaredLogger
	releaser TreeReleaser

	iterators map[ID][]*cfgiter.Iterator
	handlers  map[ID][]uuid.UUID
	queued    map[ID][]queuedCloser

	notify *cfgnotify.Engine
}

// New creates an empty session manager.  notify may be nil if the caller
// does not wire change notification.  releaser is consulted on Disconnect
// to free each tracked iterator's tree-level slot; it may be nil in tests
// that only care about the iterator-termination bookkeeping itself.
func New(log *zap.SugaredLogger, notify *cfgnotify.Engine, releaser TreeReleaser) *Manager {
	return &Manager{
		log:       log,
		releaser:  releaser,
		iterators: make(map[ID][]*cfgiter.Iterator),
		handlers:  make(map[ID][]uuid.UUID),
		queued:    make(map[ID][]queuedCloser),
		notify:    notify,
	}
}

// TrackIterator records it as belonging to session, so Disconnect
// terminates it and releases the tree slot it holds.
func (m *Manager) TrackIterator(session ID, it *cfgiter.Iterator) {
	m.iterators[session] = append(m.iterators[session], it)
}

// TrackHandler records a change-notification handler id as belonging to
// session.
func (m *Manager) TrackHandler(session ID, handlerID uuid.UUID) {
	m.handlers[session] = append(m.handlers[session], handlerID)
}

// TrackQueued records a not-yet-admitted scheduler request as belonging to
// session, so a disconnect before admission cancels it in place rather
// than letting it run for a client that is no longer listening.
func (m *Manager) TrackQueued(session ID, req *cfgsched.Request) {
	m.queued[session] = append(m.queued[session], req)
}

// Disconnect unwinds everything session holds: every open iterator is
// terminated and has its tree-level reader or writer slot released through
// releaser, every change handler is removed, and every request still
// waiting in a scheduler queue is marked closed so the next drain skips
// it.  Without the release step a session that disconnects mid-transaction
// would leave its tree's reader count or writer flag stuck forever.
func (m *Manager) Disconnect(session ID) {
	for _, it := range m.iterators[session] {
		it.Terminate()
		if m.releaser != nil {
			m.releaser.ReleaseIterator(it)
		}
	}
	delete(m.iterators, session)

	if m.notify != nil {
		m.notify.RemoveSession(string(session))
	}
	delete(m.handlers, session)

	for _, q := range m.queued[session] {
		q.Close()
	}
	delete(m.queued, session)

	m.log.Infow("session disconnected", "session", session)
}

// Live reports whether session currently owns any tracked state.
func (m *Manager) Live(session ID) bool {
	return len(m.iterators[session]) > 0 || len(m.handlers[session]) > 0 || len(m.queued[session]) > 0
}
