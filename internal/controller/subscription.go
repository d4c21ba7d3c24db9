package controller

import "github.com/skyfleet/missionctl/pkg/core"

// Subscription receives a snapshot after every change of a mission.
// A slow reader loses the oldest pending snapshots, never the newest.
type Subscription struct {
	C <-chan core.Snapshot

	ch     chan core.Snapshot
	ctrl   *Controller
	closed bool
}

// Close stops delivery and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.ctrl.mu.Lock()
	defer s.ctrl.mu.Unlock()
	s.ctrl.unsubscribeLocked(s)
}

// deliver must be called with the controller lock held so snapshots stay ordered.
func (s *Subscription) deliver(snap core.Snapshot) {
	if s.closed {
		return
	}
	select {
	case s.ch <- snap:
		return
	default:
	}

	// Full: drop the oldest and retry once.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}

func (s *Subscription) close() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
