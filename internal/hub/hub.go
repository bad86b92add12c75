// Package hub fans job status changes out to live subscribers. It is the
// sole notification path between the pipeline and connected clients; the
// durable record in the store stays authoritative and subscribers are
// expected to reconcile by pulling on connect.
package hub

import (
	"sync"

	"github.com/appforge/forge/internal/logger"
	"github.com/appforge/forge/internal/types"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls further behind loses intermediate messages, oldest first, so the
// most recent (and in particular the terminal) snapshot always lands.
const subscriberBuffer = 32

// StatusHub is the in-process pub/sub registry for job status updates
type StatusHub struct {
	mu      sync.RWMutex
	jobSubs map[string]map[*Subscription]struct{}
	allSubs map[*Subscription]struct{}
}

// New creates an empty hub
func New() *StatusHub {
	return &StatusHub{
		jobSubs: make(map[string]map[*Subscription]struct{}),
		allSubs: make(map[*Subscription]struct{}),
	}
}

// Subscription is one subscriber's view of a topic. Updates delivers
// messages in publish order; Cancel detaches and closes the channel without
// affecting any other subscriber.
type Subscription struct {
	hub    *StatusHub
	jobID  string // empty for the aggregate topic
	mu     sync.Mutex
	ch     chan types.StreamMessage
	closed bool
}

// Updates returns the subscriber's message channel
func (s *Subscription) Updates() <-chan types.StreamMessage {
	return s.ch
}

// Cancel detaches the subscription and closes its channel. Safe to call more
// than once.
func (s *Subscription) Cancel() {
	s.hub.detach(s)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// push delivers one message, dropping the oldest buffered message when the
// subscriber is full so the newest snapshot is never the one lost
func (s *Subscription) push(msg types.StreamMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- msg:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- msg:
	default:
		logger.Warnf("dropping status update for slow subscriber (job %q)", s.jobID)
	}
}

// Subscribe attaches a subscriber to one job's status stream
func (h *StatusHub) Subscribe(jobID string) *Subscription {
	sub := &Subscription{hub: h, jobID: jobID, ch: make(chan types.StreamMessage, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.jobSubs[jobID] == nil {
		h.jobSubs[jobID] = make(map[*Subscription]struct{})
	}
	h.jobSubs[jobID][sub] = struct{}{}
	return sub
}

// SubscribeAll attaches a subscriber to the aggregate job-list stream
func (h *StatusHub) SubscribeAll() *Subscription {
	sub := &Subscription{hub: h, ch: make(chan types.StreamMessage, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.allSubs[sub] = struct{}{}
	return sub
}

// JobCreated announces a new job on the aggregate stream
func (h *StatusHub) JobCreated(summary types.JobSummary) {
	h.broadcastAll(types.StreamMessage{Type: types.MessageJobCreated, Data: summary})
}

// JobUpdated delivers a snapshot to the job's subscribers and a summary to
// the aggregate stream. The caller persists the job before calling this, so
// every delivered snapshot is also durable.
func (h *StatusHub) JobUpdated(snapshot types.JobStatusSnapshot, summary types.JobSummary) {
	msg := types.StreamMessage{Type: types.MessageStatusUpdate, Data: snapshot}

	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.jobSubs[snapshot.JobID]))
	for sub := range h.jobSubs[snapshot.JobID] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.push(msg)
	}
	h.broadcastAll(types.StreamMessage{Type: types.MessageJobUpdated, Data: summary})
}

func (h *StatusHub) broadcastAll(msg types.StreamMessage) {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.allSubs))
	for sub := range h.allSubs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.push(msg)
	}
}

func (h *StatusHub) detach(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.jobID != "" {
		if set, ok := h.jobSubs[sub.jobID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.jobSubs, sub.jobID)
			}
		}
		return
	}
	delete(h.allSubs, sub)
}
